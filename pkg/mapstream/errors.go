package mapstream

import "errors"

// Sentinel errors returned by mapstream operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, mapstream.ErrMarkNotSet) {
//	    // nothing to rewind to
//	}
var (
	// ErrInvalidArgument indicates an argument outside its valid range:
	// a negative length, a position outside [0, Length], an invalid option.
	//
	// This is a programming error.
	ErrInvalidArgument = errors.New("mapstream: invalid argument")

	// ErrClosed indicates the handle (or the whole stream) has been closed.
	//
	// This is a programming error.
	ErrClosed = errors.New("mapstream: closed")

	// ErrUnsupportedResize indicates a resize was requested but no [Resizer]
	// is registered, or the registered one refused.
	//
	// Recovery: register a Resizer via [Stream.SetResizer] or
	// [Stream.OutputView], or use [Stream.NotifyLengthChange] when the file
	// was resized by someone else.
	ErrUnsupportedResize = errors.New("mapstream: resize not supported")

	// ErrConflictingCapability indicates an attempt to register a [Resizer]
	// different from the one already registered.
	//
	// A stream accepts exactly one Resizer for its lifetime.
	ErrConflictingCapability = errors.New("mapstream: conflicting resizer")

	// ErrMarkNotSet indicates [Stream.Reset] was called without a mark, or
	// the mark was cleared because the stream shrank below it.
	ErrMarkNotSet = errors.New("mapstream: mark not set")

	// ErrMapping indicates the underlying map, resize, sync or close failed.
	//
	// The error wraps the cause. Nothing is retried; the failed operation
	// can be repeated by the caller.
	ErrMapping = errors.New("mapstream: mapping failed")

	// ErrReadOnly indicates a write-side operation on a stream opened with
	// [MapReadOnly].
	ErrReadOnly = errors.New("mapstream: read-only")
)

// errInconsistent marks a broken chunk table invariant. Never expected.
var errInconsistent = errors.New("mapstream: internal: chunk table inconsistent")
