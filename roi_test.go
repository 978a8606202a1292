package homwarp

import (
	"image"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestROI_ScaleAndTranslateScenario(t *testing.T) {
	h := Homography{2, 0, 100, 0, 2, 50, 0, 0, 1}

	needed, err := ComputeNeededROI(h, 200, 200)
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{X: -50, Y: -25, W: 100, H: 100}, needed)

	roi, err := needed.Clip(1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{X: 0, Y: 0, W: 50, H: 75}, roi)

	plan, err := PlanROI(h, 200, 200, 1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, needed, plan.Needed)
	assert.Equal(t, roi, plan.ROI)
	assert.Equal(t, h, plan.Compensated)
}

func TestROI_IdentityCoversTheWholeImage(t *testing.T) {
	plan, err := PlanROI(Identity(), 640, 480, 640, 480)
	require.NoError(t, err)

	want := BoundingBox{X: 0, Y: 0, W: 640, H: 480}
	assert.Equal(t, want, plan.Needed)
	assert.Equal(t, want, plan.ROI)
	assert.Equal(t, Identity(), plan.Compensated)
}

func TestROI_FractionalCornersAreFlooredAndCeiled(t *testing.T) {
	needed, err := ComputeNeededROI(Translation(-0.5, -0.5), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{X: 0, Y: 0, W: 11, H: 11}, needed)

	needed, err = ComputeNeededROI(Translation(0.25, 0), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{X: -1, Y: 0, W: 11, H: 10}, needed)
}

func TestROI_ClipKeepsFarEdges(t *testing.T) {
	testCases := []struct {
		name string
		box  BoundingBox
		want BoundingBox
	}{
		{"negative origin", BoundingBox{X: -10, Y: -5, W: 30, H: 20}, BoundingBox{X: 0, Y: 0, W: 20, H: 15}},
		{"overflow", BoundingBox{X: 90, Y: 95, W: 30, H: 20}, BoundingBox{X: 90, Y: 95, W: 10, H: 5}},
		{"both sides", BoundingBox{X: -1, Y: -1, W: 200, H: 300}, BoundingBox{X: 0, Y: 0, W: 100, H: 100}},
		{"inside", BoundingBox{X: 3, Y: 4, W: 5, H: 6}, BoundingBox{X: 3, Y: 4, W: 5, H: 6}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.box.Clip(100, 100)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestROI_ClipOffImage(t *testing.T) {
	for _, box := range []BoundingBox{
		{X: 200, Y: 200, W: 10, H: 10},
		{X: -30, Y: 0, W: 10, H: 10},
		{X: 0, Y: -10, W: 10, H: 10},
		{X: 100, Y: 0, W: 10, H: 10},
	} {
		_, err := box.Clip(100, 100)
		assert.ErrorIs(t, err, ErrEmptyROI, "box %v", box)
	}
}

func TestROI_ClipMatchesIntersection(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		sx, sy := 1+rnd.Intn(300), 1+rnd.Intn(300)
		box := BoundingBox{
			X: rnd.Intn(800) - 400,
			Y: rnd.Intn(800) - 400,
			W: 1 + rnd.Intn(600),
			H: 1 + rnd.Intn(600),
		}
		want := box.Rect().Intersect(image.Rect(0, 0, sx, sy))

		got, err := box.Clip(sx, sy)
		if want.Empty() {
			assert.ErrorIs(t, err, ErrEmptyROI)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, want, got.Rect())
		assert.True(t, got.X >= 0 && got.Y >= 0 && got.X+got.W <= sx && got.Y+got.H <= sy)
	}
}

func TestROI_ShouldRejectSingularTransform(t *testing.T) {
	_, err := ComputeNeededROI(Homography{}, 10, 10)
	assert.ErrorIs(t, err, ErrSingularTransform)

	// The output corner (10, 0) back-projects to the line at infinity.
	_, err = ComputeNeededROI(Homography{1, 0, 0, 0, 1, 0, 0.1, 0, 1}, 10, 10)
	assert.ErrorIs(t, err, ErrSingularTransform)
}

func TestCompensate_RoundTrip(t *testing.T) {
	h := Homography{1.1, 0.05, -3, 0.02, 0.9, 2, 0.0005, 0.0003, 1}
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		x0, y0 := rnd.Intn(2000)-1000, rnd.Intn(2000)-1000
		p := r2.Point{X: rnd.Float64() * 500, Y: rnd.Float64() * 500}

		got := Compensate(h, x0, y0).Apply(p)
		want := h.Apply(r2.Point{X: p.X + float64(x0), Y: p.Y + float64(y0)})
		assert.InDelta(t, want.X, got.X, 1e-9)
		assert.InDelta(t, want.Y, got.Y, 1e-9)
	}
	assert.Equal(t, Translation(3, 4), Compensate(Identity(), 3, 4))
}

func TestPlanROI_EmptyKeepsNeededBox(t *testing.T) {
	plan, err := PlanROI(Translation(-5000, 0), 100, 100, 1000, 1000)
	assert.ErrorIs(t, err, ErrEmptyROI)
	assert.Equal(t, BoundingBox{X: 5000, Y: 0, W: 100, H: 100}, plan.Needed)
	assert.True(t, plan.ROI.Empty())
}
