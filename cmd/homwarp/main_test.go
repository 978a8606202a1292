package main

import (
	"testing"

	"github.com/emasquil/homwarp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
)

func TestParseHomography(t *testing.T) {
	want := homwarp.Homography{2, 0, 100, 0, 2, 50, 0, 0, 1}

	for _, in := range []string{
		"2,0,100,0,2,50,0,0,1",
		"2 0 100 0 2 50 0 0 1",
		"[[2, 0, 100]; [0, 2, 50]; [0, 0, 1]]",
	} {
		h, err := parseHomography(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, h, in)
	}

	_, err := parseHomography("1,0,0")
	assert.ErrorIs(t, err, homwarp.ErrInvalidArgument)

	_, err = parseHomography("1,0,0,0,1,0,0,0,x")
	assert.Error(t, err)
}

func TestFatalMessage(t *testing.T) {
	assert := assert.New(t)
	errBad := errors.New("bad.png: i/o failure")

	// Reported failures were already printed, so only their count is repeated.
	msg := fatalMessage(errBad, []status{{path: "bad.png", err: errBad}})
	assert.Equal("Rectification failed for 1 file(s)", msg)
	assert.NotContains(msg, "i/o failure")

	errs := multierr.Append(errBad, errors.New("c.png: empty roi"))
	msg = fatalMessage(errs, []status{{path: "a.png"}, {path: "bad.png", err: errBad}, {path: "c.png", err: errBad}})
	assert.Equal("Rectification failed for 2 file(s)", msg)

	// Nothing was reported, or the walk failed on top of the files: keep the reason.
	errWrite := errors.New(".xyz file type not supported")
	assert.Contains(fatalMessage(errWrite, nil), ".xyz file type not supported")
	walk := multierr.Append(errBad, errors.New("directory walk cancelled"))
	assert.Contains(fatalMessage(walk, []status{{path: "bad.png", err: errBad}}), "directory walk cancelled")
}
