package homwarp

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// maxCondition is the largest 1-norm condition number accepted for an invertible homography.
const maxCondition = 1e12

// Homography is a 3x3 projective transform stored in row-major order.
// It is a value type: every operation returns a new matrix and leaves the receiver untouched.
type Homography [9]float64

// NewHomography builds a homography from its 9 row-major coefficients.
func NewHomography(vals []float64) (Homography, error) {
	var h Homography
	if len(vals) != len(h) {
		return h, newError(InvalidArgument, "new homography",
			errors.Errorf("expected 9 coefficients, got %d", len(vals)))
	}
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return h, newError(InvalidArgument, "new homography",
				errors.Errorf("coefficient %d is not finite: %v", i, v))
		}
		h[i] = v
	}
	return h, nil
}

// Identity returns the identity transform.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Translation returns the transform mapping (x, y) to (x+tx, y+ty).
func Translation(tx, ty float64) Homography {
	return Homography{1, 0, tx, 0, 1, ty, 0, 0, 1}
}

// At returns the coefficient at the given row and column.
func (h Homography) At(row, col int) float64 {
	return h[3*row+col]
}

// Mul returns the matrix product h·o.
func (h Homography) Mul(o Homography) Homography {
	var res Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			res[3*i+j] = h[3*i]*o[j] + h[3*i+1]*o[3+j] + h[3*i+2]*o[6+j]
		}
	}
	return res
}

// Inverse returns the inverse transform. It fails with a SingularTransform error
// when the matrix is singular or too badly conditioned to be inverted reliably.
//
// The conditioning is assessed with gonum; the inverse itself is the closed-form
// adjugate so that integer and power-of-two transforms invert without rounding.
func (h Homography) Inverse() (Homography, error) {
	var inv Homography

	m := mat.NewDense(3, 3, h[:])
	if cond := mat.Cond(m, 1); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > maxCondition {
		return inv, newError(SingularTransform, "invert homography",
			errors.Errorf("condition number %g exceeds %g", cond, maxCondition))
	}

	det := h[0]*(h[4]*h[8]-h[5]*h[7]) -
		h[1]*(h[3]*h[8]-h[5]*h[6]) +
		h[2]*(h[3]*h[7]-h[4]*h[6])
	if det == 0 {
		return inv, newError(SingularTransform, "invert homography", errors.New("zero determinant"))
	}

	inv[0] = (h[4]*h[8] - h[5]*h[7]) / det
	inv[1] = (h[2]*h[7] - h[1]*h[8]) / det
	inv[2] = (h[1]*h[5] - h[2]*h[4]) / det
	inv[3] = (h[5]*h[6] - h[3]*h[8]) / det
	inv[4] = (h[0]*h[8] - h[2]*h[6]) / det
	inv[5] = (h[2]*h[3] - h[0]*h[5]) / det
	inv[6] = (h[3]*h[7] - h[4]*h[6]) / det
	inv[7] = (h[1]*h[6] - h[0]*h[7]) / det
	inv[8] = (h[0]*h[4] - h[1]*h[3]) / det
	return inv, nil
}

// Apply maps a point through the homography, including the homogeneous divide.
// A point sent to infinity yields non-finite coordinates.
func (h Homography) Apply(p r2.Point) r2.Point {
	x := h[0]*p.X + h[1]*p.Y + h[2]
	y := h[3]*p.X + h[4]*p.Y + h[5]
	z := h[6]*p.X + h[7]*p.Y + h[8]
	return r2.Point{X: x / z, Y: y / z}
}

// ApplyPoints maps every point of pts through h.
func ApplyPoints(h Homography, pts []r2.Point) []r2.Point {
	res := make([]r2.Point, len(pts))
	for i, p := range pts {
		res[i] = h.Apply(p)
	}
	return res
}

func (h Homography) String() string {
	return fmt.Sprintf("[[%g %g %g] [%g %g %g] [%g %g %g]]",
		h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], h[8])
}

func isFinite(p r2.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
