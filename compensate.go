package homwarp

// Compensate folds the crop offset (x0, y0) into h. The returned homography applied to
// crop-local coordinates gives the same result as h applied to full-image coordinates:
//
//	Compensate(h, x0, y0).Apply(p) == h.Apply(p + (x0, y0))
//
// x0 and y0 must be the exact integer origin of the crop.
func Compensate(h Homography, x0, y0 int) Homography {
	return h.Mul(Translation(float64(x0), float64(y0)))
}

// Plan describes how an output window is produced from a source image.
type Plan struct {
	// Needed is the back-projected region before clipping.
	Needed BoundingBox
	// ROI is the region actually read from the source.
	ROI BoundingBox
	// Compensated maps ROI-local source coordinates to output coordinates.
	Compensated Homography
}

// PlanROI computes the source region needed by a outW x outH output window, clips it to the
// srcW x srcH source and compensates h for the resulting crop origin.
//
// The translation uses the post-clip origin: the crop starts there, so the transform must too.
func PlanROI(h Homography, outW, outH, srcW, srcH int) (Plan, error) {
	needed, err := ComputeNeededROI(h, outW, outH)
	if err != nil {
		return Plan{}, err
	}
	roi, err := needed.Clip(srcW, srcH)
	if err != nil {
		return Plan{Needed: needed}, err
	}
	return Plan{
		Needed:      needed,
		ROI:         roi,
		Compensated: Compensate(h, roi.X, roi.Y),
	}, nil
}
