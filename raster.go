package homwarp

import (
	"math"

	"github.com/pkg/errors"
)

// Channel is a single-channel grid of float32 samples stored row by row.
type Channel struct {
	Width  int
	Height int
	Pix    []float32
}

// NewChannel allocates a zeroed width x height channel.
func NewChannel(width, height int) *Channel {
	return &Channel{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// At returns the sample at (x, y).
func (c *Channel) At(x, y int) float32 {
	return c.Pix[y*c.Width+x]
}

// Set stores the sample at (x, y).
func (c *Channel) Set(x, y int, v float32) {
	c.Pix[y*c.Width+x] = v
}

// Bilinear interpolates the channel at the real position (x, y).
// Positions outside [0,Width-1]x[0,Height-1] give NaN.
func (c *Channel) Bilinear(x, y float64) float32 {
	if !(x >= 0 && y >= 0 && x <= float64(c.Width-1) && y <= float64(c.Height-1)) {
		return float32(math.NaN())
	}
	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 > c.Width-1 {
		x1 = c.Width - 1
	}
	if y1 > c.Height-1 {
		y1 = c.Height - 1
	}
	fx := float32(x - float64(x0))
	fy := float32(y - float64(y0))

	top := c.At(x0, y0)*(1-fx) + c.At(x1, y0)*fx
	bottom := c.At(x0, y1)*(1-fx) + c.At(x1, y1)*fx
	return top*(1-fy) + bottom*fy
}

// DepthFloat is the depth of 32-bit float samples.
const DepthFloat = 32

// Raster is a multi-channel image: one plane per channel, every plane Width*Height long.
type Raster struct {
	Width  int
	Height int
	Planes [][]float32
	// Depth is the bit depth of the data the samples come from: 8, 16 or DepthFloat.
	// Zero means unknown.
	Depth int
}

// NewRaster allocates a zeroed raster with the given number of channels.
func NewRaster(width, height, channels int) *Raster {
	planes := make([][]float32, channels)
	for i := range planes {
		planes[i] = make([]float32, width*height)
	}
	return &Raster{Width: width, Height: height, Planes: planes}
}

// Channels returns the number of channels.
func (r *Raster) Channels() int {
	return len(r.Planes)
}

// Channel returns a view over the l-th plane. Writes through the view modify the raster.
func (r *Raster) Channel(l int) *Channel {
	return &Channel{Width: r.Width, Height: r.Height, Pix: r.Planes[l]}
}

// SetChannel copies c into the l-th plane.
func (r *Raster) SetChannel(l int, c *Channel) error {
	if l < 0 || l >= len(r.Planes) {
		return newError(InvalidArgument, "set channel",
			errors.Errorf("channel %d out of range [0, %d)", l, len(r.Planes)))
	}
	if c.Width != r.Width || c.Height != r.Height || len(c.Pix) != len(r.Planes[l]) {
		return newError(InvalidArgument, "set channel",
			errors.Errorf("channel is %dx%d, raster is %dx%d", c.Width, c.Height, r.Width, r.Height))
	}
	copy(r.Planes[l], c.Pix)
	return nil
}
