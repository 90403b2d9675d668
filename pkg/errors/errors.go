// Package errors defines the index's error kinds.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the index's fixed error categories.
type Kind string

const (
	// KindNotIndexed means a geometry vertex given to remove/get is not
	// reachable from the layer's index root.
	KindNotIndexed Kind = "NOT_INDEXED"
	// KindInternalInvariant means an invariant of the data model was
	// observed violated. Fatal: the caller should treat the layer as
	// corrupt.
	KindInternalInvariant Kind = "INTERNAL_INVARIANT"
	// KindReadOnlyView means a mutation was attempted on a dynamic
	// sub-layer; the caller must target the base layer.
	KindReadOnlyView Kind = "READ_ONLY_VIEW"
	// KindEncoderMismatch means a bbox property was present but in an
	// unrecognised width.
	KindEncoderMismatch Kind = "ENCODER_MISMATCH"
	// KindHostStoreError means a transaction or I/O failure came back
	// from the host graph store.
	KindHostStoreError Kind = "HOST_STORE_ERROR"
)

// IndexError is the error type every package in this module returns.
// Callers distinguish kinds with errors.Is against the sentinels below,
// not by type-asserting IndexError directly.
type IndexError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *IndexError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *IndexError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an IndexError of the same Kind. This lets
// errors.Is(err, ErrNotIndexed) work without the caller knowing Message
// or Err.
func (e *IndexError) Is(target error) bool {
	t, ok := target.(*IndexError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an IndexError with no wrapped cause.
func New(kind Kind, message string) *IndexError {
	return &IndexError{Kind: kind, Message: message}
}

// Wrap builds an IndexError around an underlying cause.
func Wrap(kind Kind, message string, err error) *IndexError {
	return &IndexError{Kind: kind, Message: message, Err: err}
}

// Sentinels for errors.Is comparisons; Message/Err are ignored by Is.
var (
	ErrNotIndexed        = New(KindNotIndexed, "geometry not reachable from layer root")
	ErrInternalInvariant = New(KindInternalInvariant, "internal invariant violated")
	ErrReadOnlyView      = New(KindReadOnlyView, "dynamic layer is read-only")
	ErrEncoderMismatch   = New(KindEncoderMismatch, "bbox property has unrecognised shape")
	ErrHostStoreError    = New(KindHostStoreError, "host graph store error")
)

// Is reports whether err (or anything it wraps) is an IndexError of kind.
func Is(err error, kind Kind) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or "" if err is not an IndexError.
func KindOf(err error) Kind {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}
