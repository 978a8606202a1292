package homwarp

import (
	"fmt"
	"image"
	"math"

	"github.com/emasquil/homwarp/utils"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// coordLimit bounds the back-projected coordinates before the integer conversion.
// Corners close to the horizon line project arbitrarily far away; clamping them keeps
// the conversion well defined and the clipper trims the box to the image anyway.
const coordLimit = 1 << 30

// BoundingBox is an axis-aligned integer box in pixel units.
// A box with a non-positive width or height is empty.
type BoundingBox struct {
	X, Y int
	W, H int
}

// Rect returns the box as an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Empty reports whether the box covers no pixel.
func (b BoundingBox) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("{x:%d y:%d w:%d h:%d}", b.X, b.Y, b.W, b.H)
}

// intBoundingBox returns the integer bounding box of the points. The width and height
// are derived from the floored origin, so that the origin used for the crop and the
// origin used for the compensating translation are the same pixel-grid point.
func intBoundingBox(pts [4]r2.Point) BoundingBox {
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = utils.Clamp(p.X, -coordLimit, coordLimit)
		ys[i] = utils.Clamp(p.Y, -coordLimit, coordLimit)
	}

	x0 := math.Floor(utils.MinN(xs...))
	y0 := math.Floor(utils.MinN(ys...))
	return BoundingBox{
		X: int(x0),
		Y: int(y0),
		W: int(math.Ceil(utils.MaxN(xs...) - x0)),
		H: int(math.Ceil(utils.MaxN(ys...) - y0)),
	}
}

// ComputeNeededROI back-projects the output window [0,w]x[0,ht] through the inverse of h
// and returns the source region needed to render it. The box may lie partially or
// entirely outside the source image and must be clipped before use.
func ComputeNeededROI(h Homography, w, ht int) (BoundingBox, error) {
	inv, err := h.Inverse()
	if err != nil {
		return BoundingBox{}, err
	}

	corners := [4]r2.Point{
		{X: 0, Y: 0},
		{X: float64(w), Y: 0},
		{X: float64(w), Y: float64(ht)},
		{X: 0, Y: float64(ht)},
	}
	var back [4]r2.Point
	for i, c := range corners {
		p := inv.Apply(c)
		if !isFinite(p) {
			return BoundingBox{}, newError(SingularTransform, "compute needed roi",
				errors.Errorf("output corner (%g, %g) back-projects to infinity", c.X, c.Y))
		}
		back[i] = p
	}
	return intBoundingBox(back), nil
}

// Clip restricts the box to the [0,sx)x[0,sy) source extent. Trimming the left or top side
// keeps the right and bottom edges in place. It fails with an EmptyROI error when nothing
// of the box is left.
func (b BoundingBox) Clip(sx, sy int) (BoundingBox, error) {
	if b.X < 0 {
		b.W += b.X
		b.X = 0
	}
	if b.Y < 0 {
		b.H += b.Y
		b.Y = 0
	}
	if b.X+b.W > sx {
		b.W = sx - b.X
	}
	if b.Y+b.H > sy {
		b.H = sy - b.Y
	}
	if b.Empty() {
		return b, newError(EmptyROI, "clip roi",
			errors.Errorf("box %v has no intersection with the %dx%d source", b, sx, sy))
	}
	return b, nil
}
