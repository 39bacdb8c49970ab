package stream

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/namikmesic/streamgate/internal/streamerr"
)

// Stream pulls chunks from a Source and yields converted events one at a
// time. Chunks are only pulled once every event parsed from earlier chunks
// has been delivered.
//
// Next returns io.EOF after the last event. A transport or decode failure is
// returned once, after which the stream reports io.EOF. A conversion failure
// is returned for that event only.
type Stream[T any] struct {
	src     Source
	conv    Converter[T]
	parser  *Parser
	pending []Event
	done    bool
}

func NewStream[T any](src Source, conv Converter[T]) *Stream[T] {
	return &Stream[T]{
		src:    src,
		conv:   conv,
		parser: NewParser(),
	}
}

// Events returns a stream of raw events.
func Events(src Source) *Stream[Event] {
	return NewStream[Event](src, Raw{})
}

// Next blocks until the next event is available, the source ends, or ctx is
// done.
func (s *Stream[T]) Next(ctx context.Context) (T, error) {
	var zero T
	ev, err := s.nextEvent(ctx)
	if err != nil {
		return zero, err
	}
	v, err := s.conv.FromServerEvent(ev)
	if err != nil {
		return zero, streamerr.Conversion(err)
	}
	return v, nil
}

func (s *Stream[T]) nextEvent(ctx context.Context) (Event, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.done {
			return Event{}, io.EOF
		}

		chunk, err := s.src.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			s.done = true
			if ev, ok := s.parser.Flush(); ok {
				return ev, nil
			}
			return Event{}, io.EOF
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return Event{}, err
			}
			s.done = true
			return Event{}, streamerr.Transport(err)
		}

		events, err := s.parser.ParseChunk(chunk)
		if err != nil {
			s.done = true
			s.pending = nil
			return Event{}, err
		}
		s.pending = events
	}
}

// All returns the remaining items as an iterator. Iteration stops after the
// last event or after a transport or decode failure; conversion failures are
// yielded and iteration continues.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := s.Next(ctx)
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
