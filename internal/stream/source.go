package stream

import (
	"context"
	"io"
)

const readChunkSize = 32 * 1024

// Source is a forward-only sequence of body chunks. Next returns io.EOF once
// the source is exhausted; any other error is a transport failure. A Source
// cannot be restarted.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// SourceFunc adapts a function into a Source.
type SourceFunc func(ctx context.Context) ([]byte, error)

func (f SourceFunc) Next(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

type readerSource struct {
	r   io.Reader
	buf []byte
	err error
}

// ReaderSource reads chunks of up to 32 KiB from r. Chunk boundaries follow
// whatever each Read returns.
func ReaderSource(r io.Reader) Source {
	return &readerSource{r: r, buf: make([]byte, readChunkSize)}
}

func (s *readerSource) Next(ctx context.Context) ([]byte, error) {
	for {
		if s.err != nil {
			return nil, s.err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := s.r.Read(s.buf)
		if err != nil {
			s.err = err
		}
		if n > 0 {
			out := make([]byte, n)
			copy(out, s.buf[:n])
			return out, nil
		}
	}
}

type sliceSource struct {
	chunks [][]byte
}

// Chunks returns a Source that yields the given chunks in order, then io.EOF.
func Chunks(chunks ...[]byte) Source {
	return &sliceSource{chunks: chunks}
}

// StringChunks is Chunks for string input.
func StringChunks(chunks ...string) Source {
	b := make([][]byte, len(chunks))
	for i, c := range chunks {
		b[i] = []byte(c)
	}
	return Chunks(b...)
}

func (s *sliceSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.chunks) == 0 {
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}
