// Package apperror defines the error kinds surfaced by a vision-analyzer run.
//
// Every component wraps its failures in an *Error so that the caller can tell
// configuration problems apart from service, file and image failures.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindService
	KindIO
	KindImageProcessing
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindService:
		return "service"
	case KindIO:
		return "io"
	case KindImageProcessing:
		return "image processing"
	default:
		return "unknown"
	}
}

// Error is a failure tagged with its kind and the operation that produced it
type Error struct {
	Kind Kind
	Op   string
	// StatusCode is the remote status for service errors, 0 otherwise
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with kind and op
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configuration wraps err as a configuration error
func Configuration(op string, err error) error {
	return E(KindConfiguration, op, err)
}

// IO wraps err as a file I/O error
func IO(op string, err error) error {
	return E(KindIO, op, err)
}

// ImageProcessing wraps err as an image decode/encode error
func ImageProcessing(op string, err error) error {
	return E(KindImageProcessing, op, err)
}

// Service wraps err as a remote service error with an optional status code
func Service(op string, status int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindService, Op: op, StatusCode: status, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode returns the remote status code carried by err, or 0
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
