package homwarp

import (
	"context"
	"fmt"
	"runtime"

	"github.com/emasquil/homwarp/utils"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Rectifier options
type Rectifier struct {
	Width         int
	Height        int
	Interpolation Interpolation
	AntiAliasing  bool
	Verbose       bool
	// Workers bounds the number of channels processed concurrently.
	// Zero or a negative value uses one worker per CPU.
	Workers   int
	Resampler Resampler
	Logger    *zap.Logger
}

func (r *Rectifier) validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return newError(InvalidArgument, "rectify", errors.Errorf("invalid output size %dx%d", r.Width, r.Height))
	}
	return nil
}

func (r *Rectifier) params() Params {
	return Params{
		Interpolation: r.Interpolation,
		Width:         r.Width,
		Height:        r.Height,
		Verbose:       r.Verbose,
		AntiAliasing:  r.AntiAliasing,
	}
}

func (r *Rectifier) resampler() Resampler {
	if r.Resampler == nil {
		return WarpResampler{}
	}
	return r.Resampler
}

func (r *Rectifier) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Rectifier) workers() int {
	if r.Workers <= 0 {
		return runtime.NumCPU()
	}
	return r.Workers
}

// logStage reports the duration of a pipeline stage when running verbosely.
func (r *Rectifier) logStage(t *utils.Timer, stage string, fields ...zap.Field) {
	if !r.Verbose {
		return
	}
	fields = append(fields, zap.String("elapsed", utils.FormatTime(t.Lap())))
	r.logger().Info(stage, fields...)
}

// Rectify renders the Width x Height output window of src seen through h.
// Only the source region that can contribute to the window is read.
func (r *Rectifier) Rectify(ctx context.Context, src Source, h Homography) (*Raster, error) {
	order := make([]int, src.Channels())
	for i := range order {
		order[i] = i
	}
	return r.RectifyOrder(ctx, src, h, order)
}

// RectifyOrder is Rectify with an explicit channel processing order. order must be a
// permutation of the source channels. The result does not depend on the order.
func (r *Rectifier) RectifyOrder(ctx context.Context, src Source, h Homography, order []int) (*Raster, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if err := checkOrder(order, src.Channels()); err != nil {
		return nil, err
	}

	timer := utils.NewTimer()
	plan, err := PlanROI(h, r.Width, r.Height, src.Width(), src.Height())
	if err != nil {
		return nil, err
	}
	r.logStage(timer, "compute needed ROI",
		zap.Stringer("needed", plan.Needed),
		zap.Stringer("roi", plan.ROI),
		zap.Stringer("homography", plan.Compensated),
	)

	out := NewRaster(r.Width, r.Height, src.Channels())
	if d, ok := src.(interface{ Depth() int }); ok {
		out.Depth = d.Depth()
	}
	params := r.params()
	resampler := r.resampler()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for _, l := range order {
		l := l
		g.Go(func() error {
			return r.rectifyChannel(ctx, src, l, plan, params, resampler, out)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// rectifyChannel crops, resamples and stores channel l. Each call writes only its own plane.
func (r *Rectifier) rectifyChannel(
	ctx context.Context,
	src Source,
	l int,
	plan Plan,
	params Params,
	resampler Resampler,
	out *Raster,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := utils.NewTimer()

	roi := plan.ROI
	view := NewChannel(roi.W, roi.H)
	if err := src.ReadRegion(l, roi.Rect(), view.Pix); err != nil {
		return ioError(fmt.Sprintf("read channel %d", l), err)
	}
	r.logStage(timer, "read needed ROI", zap.Int("channel", l))

	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := resampler.Resample(view, plan.Compensated, params)
	if err != nil {
		return errors.Wrapf(err, "resample channel %d", l)
	}
	r.logStage(timer, "apply homography", zap.Int("channel", l))

	return out.SetChannel(l, res)
}

func checkOrder(order []int, channels int) error {
	if channels <= 0 {
		return newError(InvalidArgument, "rectify", errors.New("source has no channel"))
	}
	if len(order) != channels {
		return newError(InvalidArgument, "rectify",
			errors.Errorf("channel order lists %d channels, source has %d", len(order), channels))
	}
	seen := make([]bool, channels)
	for _, l := range order {
		if l < 0 || l >= channels || seen[l] {
			return newError(InvalidArgument, "rectify", errors.Errorf("invalid channel order %v", order))
		}
		seen[l] = true
	}
	return nil
}

// Run rectifies src and hands the result to dst. Nothing is written unless every
// channel succeeded.
func (r *Rectifier) Run(ctx context.Context, src Source, h Homography, dst Writer) error {
	out, err := r.Rectify(ctx, src, h)
	if err != nil {
		return err
	}

	timer := utils.NewTimer()
	if err := dst.Write(out); err != nil {
		return ioError("write output", err)
	}
	r.logStage(timer, "write output")
	return nil
}

// Process rectifies the image stored at srcPath (a file or a URL) and writes the result to dst.
// A transform that is singular or sends part of the output window to infinity is
// rejected before the source is opened.
func (r *Rectifier) Process(ctx context.Context, srcPath string, h Homography, dst Writer) (err error) {
	if err := r.validate(); err != nil {
		return err
	}
	if _, err := ComputeNeededROI(h, r.Width, r.Height); err != nil {
		return err
	}

	src, err := OpenSource(ctx, srcPath)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, src.Close())
	}()

	return r.Run(ctx, src, h, dst)
}
