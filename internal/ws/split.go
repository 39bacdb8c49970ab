package ws

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/namikmesic/streamgate/internal/stream"
	"github.com/namikmesic/streamgate/internal/streamerr"
)

// Sender is the send half of a split Stream.
type Sender[T any] struct {
	sink   MessageSink
	conv   Converter[T]
	closed bool
}

// Send converts v and forwards it. A transport failure is returned as
// streamerr.ErrSend and does not close the sender.
func (s *Sender[T]) Send(ctx context.Context, v T) error {
	if s == nil || s.closed {
		return streamerr.ErrClosed
	}
	return s.sendRaw(ctx, s.conv.ToMessage(v))
}

func (s *Sender[T]) sendRaw(ctx context.Context, msg Message) error {
	if err := s.sink.Send(ctx, msg); err != nil {
		return streamerr.Send(err)
	}
	return nil
}

// Close sends a Close frame without code or reason and releases the sink.
func (s *Sender[T]) Close(ctx context.Context) error {
	if s == nil || s.closed {
		return streamerr.ErrClosed
	}
	s.closed = true
	sendErr := s.sendRaw(ctx, CloseWith(nil))
	if err := s.sink.Close(); err != nil && sendErr == nil {
		return streamerr.Send(err)
	}
	return sendErr
}

// ForwardBody sends every chunk of src as a message until src ends. Chunks
// that are valid UTF-8 go out as Text, others as Binary.
func (s *Sender[T]) ForwardBody(ctx context.Context, src stream.Source) error {
	if s == nil || s.closed {
		return streamerr.ErrClosed
	}
	for {
		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return err
			}
			return streamerr.Transport(err)
		}
		if err := s.sendRaw(ctx, FromChunk(chunk)); err != nil {
			return err
		}
	}
}

// Receiver is the receive half of a split Stream.
type Receiver[T any] struct {
	src  MessageSource
	conv Converter[T]
	done bool
	// detached is set once the receiver was turned into a body source.
	detached bool
}

// Recv returns the next data message converted to T. See Stream.Recv.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	if r == nil || r.detached {
		return zero, streamerr.ErrClosed
	}
	msg, err := r.next(ctx)
	if err != nil {
		return zero, err
	}
	v, err := r.conv.FromMessage(msg)
	if err != nil {
		return zero, streamerr.Conversion(err)
	}
	return v, nil
}

// next returns the next Text or Binary message.
func (r *Receiver[T]) next(ctx context.Context) (Message, error) {
	for {
		if r.done {
			return Message{}, io.EOF
		}
		msg, err := r.src.Receive(ctx)
		switch {
		case errors.Is(err, io.EOF):
			r.done = true
			return Message{}, io.EOF
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return Message{}, err
			}
			r.done = true
			return Message{}, streamerr.Transport(err)
		}

		switch msg.Type {
		case PingMessage, PongMessage:
			continue
		case CloseMessage:
			r.done = true
			return Message{}, io.EOF
		default:
			return msg, nil
		}
	}
}

// All returns the remaining items as an iterator. Conversion failures are
// yielded and iteration continues; any other failure ends it.
func (r *Receiver[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := r.Recv(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(v, err) {
				return
			}
			if err != nil && !errors.Is(err, streamerr.ErrConversion) {
				return
			}
		}
	}
}

// BodySource turns the remaining Text and Binary payloads into a body
// Source, for example to feed a proxied request body. The receiver cannot be
// used afterwards.
func (r *Receiver[T]) BodySource() stream.Source {
	if r == nil || r.detached {
		return stream.SourceFunc(func(context.Context) ([]byte, error) {
			return nil, streamerr.ErrClosed
		})
	}
	r.detached = true
	return stream.SourceFunc(func(ctx context.Context) ([]byte, error) {
		msg, err := r.next(ctx)
		if err != nil {
			return nil, err
		}
		return msg.Data, nil
	})
}
