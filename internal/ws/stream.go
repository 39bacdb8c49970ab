package ws

import (
	"context"
	"io"
	"iter"

	"github.com/namikmesic/streamgate/internal/streamerr"
)

// Stream is a bidirectional WebSocket connection carrying values of type T.
//
// Ping and Pong frames are skipped on receive and a Close frame ends the
// receive sequence. A Stream must not be used from more than one goroutine;
// Split it to drive the two directions concurrently.
type Stream[T any] struct {
	sender   *Sender[T]
	receiver *Receiver[T]
}

func NewStream[T any](sink MessageSink, src MessageSource, conv Converter[T]) *Stream[T] {
	return &Stream[T]{
		sender:   &Sender[T]{sink: sink, conv: conv},
		receiver: &Receiver[T]{src: src, conv: conv},
	}
}

// Send converts v and forwards it to the transport.
func (s *Stream[T]) Send(ctx context.Context, v T) error {
	if s.sender == nil {
		return streamerr.ErrClosed
	}
	return s.sender.Send(ctx, v)
}

// Recv returns the next Text or Binary message converted to T, or io.EOF once
// the connection has closed. A transport error is returned once; every later
// call returns io.EOF.
func (s *Stream[T]) Recv(ctx context.Context) (T, error) {
	if s.receiver == nil {
		var zero T
		return zero, streamerr.ErrClosed
	}
	return s.receiver.Recv(ctx)
}

// All returns the remaining received items as an iterator.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[T, error] {
	if s.receiver == nil {
		return func(yield func(T, error) bool) {
			var zero T
			yield(zero, streamerr.ErrClosed)
		}
	}
	return s.receiver.All(ctx)
}

// Close sends a Close frame without code or reason, then releases the sink
// and, when it implements io.Closer, the source. The Stream cannot be used
// afterwards.
func (s *Stream[T]) Close(ctx context.Context) error {
	if s.sender == nil {
		return streamerr.ErrClosed
	}
	sender, receiver := s.sender, s.receiver
	s.sender, s.receiver = nil, nil
	err := sender.Close(ctx)
	if c, ok := receiver.src.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = streamerr.Transport(cerr)
		}
	}
	return err
}

// Split hands the two directions to independent owners. The Stream cannot be
// used afterwards.
func (s *Stream[T]) Split() (*Sender[T], *Receiver[T]) {
	sender, receiver := s.sender, s.receiver
	s.sender, s.receiver = nil, nil
	return sender, receiver
}
