package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies terminal pipeline failures.
type Kind int

const (
	// KindDocumentOpen means the input could not be opened or is not a valid
	// document.
	KindDocumentOpen Kind = iota + 1
	// KindEncode means a page could not be materialized, even after the
	// quality-downgrade retry ladder.
	KindEncode
	// KindAssembly means output construction or serialization failed.
	KindAssembly
	// KindCompressionRegression means the output was not smaller than the
	// input; the original is preserved untouched.
	KindCompressionRegression
)

func (k Kind) String() string {
	switch k {
	case KindDocumentOpen:
		return "document_open"
	case KindEncode:
		return "encode"
	case KindAssembly:
		return "assembly"
	case KindCompressionRegression:
		return "compression_regression"
	default:
		return "unknown"
	}
}

// Error is a terminal pipeline failure carrying a display-ready message.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether err is a pipeline error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}
