// Package streamerr defines the error kinds shared by the SSE and WebSocket
// layers. Every error returned by those layers matches exactly one kind with
// errors.Is, and keeps its cause reachable through errors.Unwrap. The one
// exception is the error of the context passed to the failing call, which is
// returned unchanged.
package streamerr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDecode marks an SSE byte stream that is not valid UTF-8.
	ErrDecode = errors.New("sse decode error")
	// ErrTransport marks a failure reported by the underlying byte source or
	// message channel.
	ErrTransport = errors.New("transport error")
	// ErrConversion marks a typed conversion failure for a single item.
	ErrConversion = errors.New("conversion error")
	// ErrSend marks a failure to forward an outgoing message.
	ErrSend = errors.New("send error")
	// ErrClosed is returned when a handle is used after Close or Split.
	ErrClosed = errors.New("stream handle closed")
)

type kindError struct {
	kind  error
	cause error
	msg   string
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return e.kind.Error() + ": " + e.msg
	}
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.cause }

// Decode reports invalid UTF-8 input.
func Decode(format string, args ...any) error {
	return &kindError{kind: ErrDecode, msg: fmt.Sprintf(format, args...)}
}

// Transport wraps an error produced by a byte source or message channel.
// A context error is wrapped too: callers return their own context's error
// before reaching here, so any that arrives came from another context.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransport) {
		return err
	}
	return &kindError{kind: ErrTransport, cause: err}
}

// Conversion wraps a from-wire conversion failure.
func Conversion(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConversion) {
		return err
	}
	return &kindError{kind: ErrConversion, cause: err}
}

// Conversionf builds a conversion error from a message.
func Conversionf(format string, args ...any) error {
	return &kindError{kind: ErrConversion, msg: fmt.Sprintf(format, args...)}
}

// Send wraps a failure to forward an outgoing message.
func Send(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSend) || errors.Is(err, ErrClosed) || isContextErr(err) {
		return err
	}
	return &kindError{kind: ErrSend, cause: err}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
