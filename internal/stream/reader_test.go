package stream

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/namikmesic/streamgate/internal/streamerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("connection reset")

// failingSource yields its chunks, then err forever.
func failingSource(err error, chunks ...string) Source {
	inner := StringChunks(chunks...)
	return SourceFunc(func(ctx context.Context) ([]byte, error) {
		b, e := inner.Next(ctx)
		if errors.Is(e, io.EOF) {
			return nil, err
		}
		return b, e
	})
}

func TestStream_TransportError(t *testing.T) {
	ctx := context.Background()
	s := Events(failingSource(errBoom, "data: a\n\n", "data: partial"))

	ev, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", ev.Data)

	_, err = s.Next(ctx)
	require.ErrorIs(t, err, streamerr.ErrTransport)
	assert.ErrorIs(t, err, errBoom)

	// The buffered partial event is not flushed after a failure.
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_ConversionErrorContinues(t *testing.T) {
	conv := ConverterFunc[int](func(ev Event) (int, error) {
		return strconv.Atoi(ev.Data)
	})
	s := NewStream[int](StringChunks("data: 1\n\ndata: two\n\ndata: 3\n\n"), conv)

	var got []int
	var errs []error
	for v, err := range s.All(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got = append(got, v)
	}

	assert.Equal(t, []int{1, 3}, got)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], streamerr.ErrConversion)
	var numErr *strconv.NumError
	assert.ErrorAs(t, errs[0], &numErr)
}

func TestStream_AllStopsAfterTransportError(t *testing.T) {
	var items, failures int
	for _, err := range Events(failingSource(errBoom, "data: a\n\ndata: b\n\n")).All(context.Background()) {
		if err != nil {
			failures++
			assert.ErrorIs(t, err, streamerr.ErrTransport)
			continue
		}
		items++
	}
	assert.Equal(t, 2, items)
	assert.Equal(t, 1, failures)
}

func TestStream_AllEarlyBreak(t *testing.T) {
	s := Events(StringChunks("data: a\n\ndata: b\n\ndata: c\n\n"))
	for ev, err := range s.All(context.Background()) {
		require.NoError(t, err)
		assert.Equal(t, "a", ev.Data)
		break
	}

	// The stream resumes where the iterator stopped.
	ev, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", ev.Data)
}

func TestStream_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := Events(StringChunks("data: a\n\n", "data: b\n\n"))

	ev, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", ev.Data)

	cancel()
	_, err = s.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, streamerr.ErrTransport)

	// Cancellation does not end the stream.
	ev, err = s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", ev.Data)
}

func TestStream_ForeignCancellationIsTransport(t *testing.T) {
	// The body belongs to a request whose context was cancelled elsewhere.
	s := Events(failingSource(context.Canceled, "data: a\n\n"))
	ctx := context.Background()

	_, err := s.Next(ctx)
	require.NoError(t, err)

	_, err = s.Next(ctx)
	require.ErrorIs(t, err, streamerr.ErrTransport)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_PullsLazily(t *testing.T) {
	pulls := 0
	inner := StringChunks("data: a\n\ndata: b\n\n", "data: c\n\n")
	src := SourceFunc(func(ctx context.Context) ([]byte, error) {
		pulls++
		return inner.Next(ctx)
	})
	s := Events(src)
	ctx := context.Background()

	_, err := s.Next(ctx)
	require.NoError(t, err)
	_, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pulls)

	_, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pulls)
}

func TestReaderSource(t *testing.T) {
	body := strings.Repeat("data: x\n\n", 10000)
	var events int
	for _, err := range Events(ReaderSource(strings.NewReader(body))).All(context.Background()) {
		require.NoError(t, err)
		events++
	}
	assert.Equal(t, 10000, events)
}

func TestReaderSource_StickyError(t *testing.T) {
	src := ReaderSource(io.MultiReader(strings.NewReader("abc"), &errReader{err: errBoom}))
	ctx := context.Background()

	b, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, errBoom)
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, errBoom)
}

type errReader struct{ err error }

func (r *errReader) Read([]byte) (int, error) { return 0, r.err }

func TestEvent_JSON(t *testing.T) {
	ev := Event{ID: Ptr("7"), Type: Ptr("delta"), Data: `{"n":1}`, Retry: Ptr(uint64(0))}

	b, err := ev.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"7","event":"delta","data":"{\"n\":1}","retry":0}`, string(b))

	var payload struct{ N int }
	require.NoError(t, ev.JSON(&payload))
	assert.Equal(t, 1, payload.N)

	b, err = Event{Data: "x"}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":"x"}`, string(b))
}
