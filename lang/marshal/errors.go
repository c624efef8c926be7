package marshal

import (
	"errors"
	"fmt"
)

// The error taxonomy below covers every way a marshal or unmarshal call can
// fail. Every failure is fatal to the current call; there is no partial
// success and no internal recovery. Use errors.Is against these sentinels to
// distinguish failure kinds; the returned error also carries a
// human-readable diagnostic via its Error() string.
var (
	// ErrTruncated means the decoder read past the end of the input.
	ErrTruncated = errors.New("marshal: truncated")
	// ErrBadOpcode means the decoder encountered a byte with no meaning in
	// the current position.
	ErrBadOpcode = errors.New("marshal: bad opcode")
	// ErrBadReference means a back-reference id fell outside the range of
	// the lookup array, or the definition or environment id tables.
	ErrBadReference = errors.New("marshal: bad reference")
	// ErrBadBytecode means the host verifier rejected a decoded function
	// definition.
	ErrBadBytecode = errors.New("marshal: bad bytecode")
	// ErrBadFrame means a coroutine frame failed its consistency check
	// (slot count, program counter, or previous-frame offset).
	ErrBadFrame = errors.New("marshal: bad frame")
	// ErrAliveCoroutine means the encoder was asked to serialize a
	// currently-running coroutine.
	ErrAliveCoroutine = errors.New("marshal: cannot marshal a running coroutine")
	// ErrNativeFrame means a coroutine frame's function is a host-native
	// routine rather than a bytecode closure.
	ErrNativeFrame = errors.New("marshal: cannot marshal a native call frame")
	// ErrUnregisteredOpaque means an opaque value's type has no
	// marshal/unmarshal pair installed, or its type name is unknown on
	// decode.
	ErrUnregisteredOpaque = errors.New("marshal: unregistered opaque type")
	// ErrNoEncoding means the value's kind has no encoding rule.
	ErrNoEncoding = errors.New("marshal: value has no encoding")
	// ErrStackOverflow means the recursion depth guard was exceeded.
	ErrStackOverflow = errors.New("marshal: stack overflow")
)

// wrapf annotates a sentinel error with a formatted diagnostic, preserving
// errors.Is behavior against the sentinel.
func wrapf(sentinel error, format string, args ...any) error {
	return &wrappedError{sentinel: sentinel, msg: fmt.Sprintf(format, args...)}
}

type wrappedError struct {
	sentinel error
	msg      string
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.sentinel }
