// Float implementation of the StackBlur algorithm described here:
// http://incubator.quasimondo.com/processing/fast_blur_deluxe.php

package homwarp

import "github.com/emasquil/homwarp/utils"

// StackBlur blurs the channel with a triangular kernel of the given radius,
// first horizontally then vertically. Borders are extended by replication.
// The result is a new channel; src is left untouched.
func StackBlur(src *Channel, radius int) *Channel {
	if radius < 1 || src.Width == 0 || src.Height == 0 {
		dst := NewChannel(src.Width, src.Height)
		copy(dst.Pix, src.Pix)
		return dst
	}

	tmp := NewChannel(src.Width, src.Height)
	for y := 0; y < src.Height; y++ {
		off := y * src.Width
		blurLine(tmp.Pix[off:off+src.Width], src.Pix[off:off+src.Width], 1, radius)
	}

	dst := NewChannel(src.Width, src.Height)
	for x := 0; x < src.Width; x++ {
		blurLine(dst.Pix[x:], tmp.Pix[x:], src.Width, radius)
	}
	return dst
}

// blurLine blurs the n = len/stride samples of src spaced by stride into dst.
//
// The stack holds the 2r+1 samples around the current position: sum is the weighted
// total, sumOut the left half (centre included) whose weights decrease when moving right,
// and sumIn the right half whose weights increase.
func blurLine(dst, src []float32, stride, radius int) {
	n := (len(src) + stride - 1) / stride
	at := func(i int) float64 {
		if i < 0 {
			i = 0
		} else if i >= n {
			i = n - 1
		}
		return float64(src[i*stride])
	}

	var sum, sumIn, sumOut float64
	for k := -radius; k <= radius; k++ {
		v := at(k)
		sum += float64(radius+1-utils.Abs(k)) * v
		if k <= 0 {
			sumOut += v
		} else {
			sumIn += v
		}
	}

	div := float64((radius + 1) * (radius + 1))
	for i := 0; i < n; i++ {
		dst[i*stride] = float32(sum / div)

		incoming := at(i + radius + 1)
		sum += sumIn - sumOut + incoming
		sumOut += at(i+1) - at(i-radius)
		sumIn += incoming - at(i+1)
	}
}
