// Package stereo wraps a semi-global matching engine behind a Go lifecycle and
// provides the disparity post-processing applied to rectified pairs.
package stereo

import (
	"fmt"

	"github.com/pkg/errors"
)

// CensusSize selects the census transform window of the matching cost.
type CensusSize int

// The census windows supported by the engine.
const (
	Census5x5 CensusSize = iota
	Census7x5
	Census7x7
	Census9x7
)

func (c CensusSize) String() string {
	switch c {
	case Census5x5:
		return "5x5"
	case Census7x5:
		return "7x5"
	case Census7x7:
		return "7x7"
	case Census9x7:
		return "9x7"
	}
	return fmt.Sprintf("CensusSize(%d)", int(c))
}

// SubpixelScale is the fixed-point scale of subpixel disparities returned by an engine.
const SubpixelScale = 16

// Params configures a semi-global matching engine.
type Params struct {
	// DispSize is the number of disparities searched: 64, 128, 256 or 512.
	DispSize int
	// P1 and P2 penalize disparity changes of one and more than one pixel.
	P1, P2     int
	Uniqueness float32
	// NumPaths is the number of aggregation directions, 4 or 8.
	NumPaths   int
	MinDisp    int
	LRMaxDiff  int
	Subpixel   bool
	CensusSize CensusSize
	Verbose    bool
}

// DefaultParams returns the parameters used for satellite stereo pairs.
func DefaultParams() Params {
	return Params{
		DispSize:   512,
		P1:         10,
		P2:         40,
		Uniqueness: 0.95,
		NumPaths:   8,
		MinDisp:    0,
		LRMaxDiff:  1,
		Subpixel:   true,
		CensusSize: Census9x7,
	}
}

// Validate checks the parameters an engine cannot run with.
func (p Params) Validate() error {
	switch p.DispSize {
	case 64, 128, 256, 512:
	default:
		return errors.Errorf("disparity size must be 64, 128, 256 or 512, got %d", p.DispSize)
	}
	if p.NumPaths != 4 && p.NumPaths != 8 {
		return errors.Errorf("number of paths must be 4 or 8, got %d", p.NumPaths)
	}
	if p.P1 < 0 || p.P2 < p.P1 {
		return errors.Errorf("invalid penalties P1=%d P2=%d", p.P1, p.P2)
	}
	if p.Uniqueness <= 0 || p.Uniqueness > 1 {
		return errors.Errorf("uniqueness must be in (0, 1], got %v", p.Uniqueness)
	}
	if p.CensusSize < Census5x5 || p.CensusSize > Census9x7 {
		return errors.Errorf("unsupported census size %v", p.CensusSize)
	}
	return nil
}
