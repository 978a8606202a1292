package homwarp

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies the failures of a rectification request.
// None of them is retryable: the same inputs reproduce the same failure.
type ErrorKind int

// The error kinds reported by the package.
const (
	InvalidArgument ErrorKind = iota + 1
	SingularTransform
	EmptyROI
	IOFailure
)

// Sentinel errors matching each ErrorKind through errors.Is.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrSingularTransform = errors.New("singular transform")
	ErrEmptyROI          = errors.New("empty roi")
	ErrIOFailure         = errors.New("i/o failure")
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case SingularTransform:
		return "singular transform"
	case EmptyROI:
		return "empty roi"
	case IOFailure:
		return "i/o failure"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) sentinel() error {
	switch k {
	case InvalidArgument:
		return ErrInvalidArgument
	case SingularTransform:
		return ErrSingularTransform
	case EmptyROI:
		return ErrEmptyROI
	case IOFailure:
		return ErrIOFailure
	}
	return nil
}

// Error is the error type returned by the rectification pipeline.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the ErrorKind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// ioError wraps err as an IOFailure unless it is already classified.
func ioError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := KindOf(err); ok {
		return errors.Wrap(err, op)
	}
	return newError(IOFailure, op, err)
}
