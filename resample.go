package homwarp

import (
	"math"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Interpolation selects the resampling kernel.
type Interpolation int

// The supported kernels. The values match the interpolation orders.
const (
	Nearest  Interpolation = 0
	Bilinear Interpolation = 1
	Bicubic  Interpolation = 3
)

func (i Interpolation) String() string {
	switch i {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	case Bicubic:
		return "bicubic"
	}
	return "unknown"
}

// ParseInterpolation converts a kernel name into an Interpolation.
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(s) {
	case "nearest", "0":
		return Nearest, nil
	case "bilinear", "1":
		return Bilinear, nil
	case "bicubic", "3":
		return Bicubic, nil
	}
	return Nearest, newError(InvalidArgument, "parse interpolation", errors.Errorf("unknown interpolation %q", s))
}

// Params holds the resampling parameters of one run.
type Params struct {
	Interpolation Interpolation
	Width         int
	Height        int
	Verbose       bool
	AntiAliasing  bool
}

// Resampler renders one output channel from a source channel.
// h maps source coordinates to output coordinates; the output is Width x Height pixels
// and its pixel (x, y) takes the source value at h⁻¹(x, y).
type Resampler interface {
	Resample(src *Channel, h Homography, p Params) (*Channel, error)
}

// WarpResampler is the default Resampler. Output pixels whose preimage falls outside
// the source are NaN. With anti-aliasing, a minifying transform first low-pass filters
// the source with a stack blur sized after the local scale of the transform.
type WarpResampler struct{}

var _ Resampler = WarpResampler{}

// Resample implements Resampler.
func (WarpResampler) Resample(src *Channel, h Homography, p Params) (*Channel, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, newError(InvalidArgument, "resample",
			errors.Errorf("invalid output size %dx%d", p.Width, p.Height))
	}
	inv, err := h.Inverse()
	if err != nil {
		return nil, err
	}

	sample, err := samplerFor(p.Interpolation)
	if err != nil {
		return nil, err
	}
	if p.AntiAliasing {
		if radius := blurRadius(inv, p.Width, p.Height); radius > 0 {
			src = StackBlur(src, radius)
		}
	}

	out := NewChannel(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		row := out.Pix[y*p.Width : (y+1)*p.Width]
		for x := range row {
			q := inv.Apply(r2.Point{X: float64(x), Y: float64(y)})
			row[x] = sample(src, q.X, q.Y)
		}
	}
	return out, nil
}

type samplerFn func(c *Channel, x, y float64) float32

func samplerFor(i Interpolation) (samplerFn, error) {
	switch i {
	case Nearest:
		return sampleNearest, nil
	case Bilinear:
		return (*Channel).Bilinear, nil
	case Bicubic:
		return sampleBicubic, nil
	}
	return nil, newError(InvalidArgument, "resample", errors.Errorf("unsupported interpolation %d", int(i)))
}

func sampleNearest(c *Channel, x, y float64) float32 {
	xi := math.Floor(x + 0.5)
	yi := math.Floor(y + 0.5)
	if !(xi >= 0 && yi >= 0 && xi < float64(c.Width) && yi < float64(c.Height)) {
		return float32(math.NaN())
	}
	return c.At(int(xi), int(yi))
}

// cubic is the Keys cubic convolution kernel with a = -0.5 (Catmull-Rom).
func cubic(t float64) float64 {
	t = math.Abs(t)
	switch {
	case t < 1:
		return (1.5*t-2.5)*t*t + 1
	case t < 2:
		return ((-0.5*t+2.5)*t-4)*t + 2
	}
	return 0
}

func sampleBicubic(c *Channel, x, y float64) float32 {
	if !(x >= 0 && y >= 0 && x <= float64(c.Width-1) && y <= float64(c.Height-1)) {
		return float32(math.NaN())
	}
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))

	var sum float64
	for j := -1; j <= 2; j++ {
		wy := cubic(y - float64(y0+j))
		yy := clampIndex(y0+j, c.Height)
		for i := -1; i <= 2; i++ {
			wx := cubic(x - float64(x0+i))
			sum += wx * wy * float64(c.At(clampIndex(x0+i, c.Width), yy))
		}
	}
	return float32(sum)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// blurRadius returns the stack blur radius needed before sampling through inv, or 0
// when the transform does not minify. The local scale is measured at the centre of
// the output window; a Gaussian of sigma 0.8*sqrt(s²-1) is approximated by the
// triangular stack blur kernel of matching variance r(r+2)/6.
func blurRadius(inv Homography, w, h int) int {
	c := r2.Point{X: float64(w) / 2, Y: float64(h) / 2}
	p0 := inv.Apply(c)
	px := inv.Apply(c.Add(r2.Point{X: 1}))
	py := inv.Apply(c.Add(r2.Point{Y: 1}))
	if !isFinite(p0) || !isFinite(px) || !isFinite(py) {
		return 0
	}

	scale := math.Max(px.Sub(p0).Norm(), py.Sub(p0).Norm())
	if scale <= 1 {
		return 0
	}
	sigma := 0.8 * math.Sqrt(scale*scale-1)
	return int(math.Ceil(math.Sqrt(6*sigma*sigma+1) - 1))
}
