package stereo

import (
	"context"
	"math"
	"sync"

	"github.com/emasquil/homwarp"
	"github.com/emasquil/homwarp/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrClosed is returned by a Matcher used after Close.
var ErrClosed = errors.New("stereo: matcher is closed")

// Engine computes a fixed-point disparity map from a rectified 16-bit pair.
// Disparities follow the engine convention: negated, scaled by SubpixelScale when
// subpixel estimation is on, and set to InvalidDisparity where no match was found.
type Engine interface {
	Execute(left, right []uint16, disp []int16) error
	InvalidDisparity() int16
	Close() error
}

// EngineFactory builds an engine for w x h images.
type EngineFactory func(p Params, w, h int) (Engine, error)

// Matcher runs an engine on rectified pairs. The engine is created on first use and
// reused as long as the image size does not change. A Matcher is safe for concurrent use;
// executions are serialized.
type Matcher struct {
	params  Params
	factory EngineFactory
	logger  *zap.Logger

	mu     sync.Mutex
	engine Engine
	w, h   int
	closed bool
}

// NewMatcher validates p and returns a matcher building its engines with factory.
func NewMatcher(p Params, factory EngineFactory, logger *zap.Logger) (*Matcher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, errors.New("stereo: nil engine factory")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{params: p, factory: factory, logger: logger}, nil
}

// Exec computes the disparity map of a rectified pair. Invalid disparities are NaN.
func (m *Matcher) Exec(ctx context.Context, left, right *homwarp.Channel) (*homwarp.Channel, error) {
	if left.Width != right.Width || left.Height != right.Height {
		return nil, errors.Errorf("stereo: pair size mismatch %dx%d vs %dx%d",
			left.Width, left.Height, right.Width, right.Height)
	}
	if left.Width == 0 || left.Height == 0 {
		return nil, errors.New("stereo: empty pair")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	engine, err := m.engineFor(left.Width, left.Height)
	if err != nil {
		return nil, err
	}

	timer := utils.NewTimer()
	raw := make([]int16, len(left.Pix))
	if err := engine.Execute(toUint16(left.Pix), toUint16(right.Pix), raw); err != nil {
		return nil, errors.Wrap(err, "stereo: engine execution")
	}
	if m.params.Verbose {
		m.logger.Info("sgm processing",
			zap.Int("width", left.Width),
			zap.Int("height", left.Height),
			zap.String("elapsed", utils.FormatTime(timer.Lap())),
		)
	}

	disp := homwarp.NewChannel(left.Width, left.Height)
	invalid := engine.InvalidDisparity()
	for i, d := range raw {
		if d == invalid {
			disp.Pix[i] = float32(math.NaN())
			continue
		}
		v := -float32(d)
		if m.params.Subpixel {
			v /= SubpixelScale
		}
		disp.Pix[i] = v
	}
	return disp, nil
}

// ExecRasters converts both rasters to luminance before matching.
func (m *Matcher) ExecRasters(ctx context.Context, left, right *homwarp.Raster) (*homwarp.Channel, error) {
	l, err := homwarp.Luminance(left)
	if err != nil {
		return nil, err
	}
	r, err := homwarp.Luminance(right)
	if err != nil {
		return nil, err
	}
	return m.Exec(ctx, l, r)
}

// engineFor returns the cached engine, rebuilding it when the size changed. m.mu must be held.
func (m *Matcher) engineFor(w, h int) (Engine, error) {
	if m.engine != nil && m.w == w && m.h == h {
		return m.engine, nil
	}
	if m.engine != nil {
		if err := m.engine.Close(); err != nil {
			m.logger.Warn("closing stale engine", zap.Error(err))
		}
		m.engine = nil
	}

	timer := utils.NewTimer()
	engine, err := m.factory(m.params, w, h)
	if err != nil {
		return nil, errors.Wrap(err, "stereo: engine initialization")
	}
	if m.params.Verbose {
		m.logger.Info("sgm initialization",
			zap.Int("width", w),
			zap.Int("height", h),
			zap.String("elapsed", utils.FormatTime(timer.Lap())),
		)
	}
	m.engine, m.w, m.h = engine, w, h
	return engine, nil
}

// Close releases the engine. Further calls are no-ops.
func (m *Matcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.engine == nil {
		return nil
	}
	err := m.engine.Close()
	m.engine = nil
	return err
}

// toUint16 converts samples for the engine: NaN becomes 0, the rest is truncated
// and clamped to the uint16 range.
func toUint16(pix []float32) []uint16 {
	res := make([]uint16, len(pix))
	for i, v := range pix {
		if v != v {
			continue
		}
		res[i] = uint16(utils.Clamp(v, 0, math.MaxUint16))
	}
	return res
}
