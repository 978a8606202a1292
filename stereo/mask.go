package stereo

import (
	"math"

	"github.com/emasquil/homwarp"
)

// RejectionMask marks the matched pixels present in both images of the pair:
// 1 where the disparity d, the left sample and the right sample bilinearly
// interpolated at (x+d, y) are all finite, 0 elsewhere.
func RejectionMask(disp, left, right *homwarp.Channel) *homwarp.Channel {
	mask := homwarp.NewChannel(disp.Width, disp.Height)
	for y := 0; y < disp.Height; y++ {
		for x := 0; x < disp.Width; x++ {
			d := disp.At(x, y)
			if !finite(d) {
				continue
			}
			if x >= left.Width || y >= left.Height || !finite(left.At(x, y)) {
				continue
			}
			if !finite(right.Bilinear(float64(x)+float64(d), float64(y))) {
				continue
			}
			mask.Set(x, y, 1)
		}
	}
	return mask
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
