package bus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/namikmesic/streamgate/internal/stream"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// maxQueuedChunks bounds how far a slow consumer may fall behind one tapped
// body before the tap gives up on it.
const maxQueuedChunks = 4096

var errTapOverflow = errors.New("tap consumer fell behind")

// StreamHandler is called once per tapped request, from the NATS dispatch
// goroutine. It must not block; start a goroutine to consume src.
type StreamHandler func(requestID string, src stream.Source)

// Demux routes tap messages into one stream.Source per request id.
type Demux struct {
	mu      sync.Mutex
	streams map[string]*chunkSource
	handler StreamHandler
	sub     *nats.Subscription
}

// Subscribe starts routing every tap subject on nc to handler.
func Subscribe(nc *nats.Conn, handler StreamHandler) (*Demux, error) {
	d := NewDemux(handler)
	sub, err := nc.Subscribe(TapSubject, func(msg *nats.Msg) {
		d.Dispatch(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, err
	}
	d.sub = sub
	return d, nil
}

func NewDemux(handler StreamHandler) *Demux {
	return &Demux{
		streams: make(map[string]*chunkSource),
		handler: handler,
	}
}

// Dispatch routes one tap message.
func (d *Demux) Dispatch(subject string, data []byte) {
	requestID, done, ok := ParseSubject(subject)
	if !ok {
		log.Debug().Str("subject", subject).Msg("ignoring unexpected tap subject")
		return
	}

	d.mu.Lock()
	src, exists := d.streams[requestID]
	if !exists && !done {
		src = newChunkSource()
		d.streams[requestID] = src
	}
	if done {
		delete(d.streams, requestID)
	}
	d.mu.Unlock()

	if !exists && !done {
		d.handler(requestID, src)
	}
	if src == nil {
		return
	}
	if done {
		src.finish(doneError(data))
		return
	}
	src.push(data)
}

// Close unsubscribes and ends every open source with io.EOF.
func (d *Demux) Close() error {
	var err error
	if d.sub != nil {
		err = d.sub.Unsubscribe()
	}
	d.mu.Lock()
	streams := d.streams
	d.streams = make(map[string]*chunkSource)
	d.mu.Unlock()
	for _, src := range streams {
		src.finish(nil)
	}
	return err
}

func doneError(data []byte) error {
	var m doneMarker
	if len(data) == 0 || json.Unmarshal(data, &m) != nil || m.Error == "" {
		return nil
	}
	return errors.New(m.Error)
}

type chunkSource struct {
	mu     sync.Mutex
	queue  [][]byte
	end    error
	notify chan struct{}
}

func newChunkSource() *chunkSource {
	return &chunkSource{notify: make(chan struct{}, 1)}
}

func (s *chunkSource) push(b []byte) {
	s.mu.Lock()
	if s.end == nil {
		if len(s.queue) >= maxQueuedChunks {
			log.Warn().Int("queued", len(s.queue)).Msg("tap queue full, dropping stream")
			s.end = errTapOverflow
		} else {
			s.queue = append(s.queue, b)
		}
	}
	s.mu.Unlock()
	s.signal()
}

// finish ends the source after the queued chunks; nil means a clean end.
func (s *chunkSource) finish(err error) {
	if err == nil {
		err = io.EOF
	}
	s.mu.Lock()
	if s.end == nil {
		s.end = err
	}
	s.mu.Unlock()
	s.signal()
}

func (s *chunkSource) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *chunkSource) Next(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			b := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return b, nil
		}
		end := s.end
		s.mu.Unlock()
		if end != nil {
			return nil, end
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		}
	}
}
