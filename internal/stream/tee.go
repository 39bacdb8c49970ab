package stream

import (
	"context"
	"errors"
	"io"
)

// Tap observes the raw chunks flowing through a tee'd Source.
type Tap interface {
	// Chunk is called with every chunk before the consumer sees it.
	Chunk(b []byte)
	// End is called once, with nil when the source finished cleanly.
	End(err error)
}

type teeSource struct {
	src   Source
	tap   Tap
	ended bool
}

// TeeSource splits a Source so that chunks flow to both the caller and tap.
// Context errors are not reported to the tap since the source may still be
// resumed.
func TeeSource(src Source, tap Tap) Source {
	return &teeSource{src: src, tap: tap}
}

func (t *teeSource) Next(ctx context.Context) ([]byte, error) {
	chunk, err := t.src.Next(ctx)
	if err == nil {
		t.tap.Chunk(chunk)
		return chunk, nil
	}
	if t.ended || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	t.ended = true
	if errors.Is(err, io.EOF) {
		t.tap.End(nil)
	} else {
		t.tap.End(err)
	}
	return nil, err
}
