package bus

import (
	"encoding/json"
	"sync"

	"github.com/namikmesic/streamgate/internal/stream"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Publisher is the publishing side of the NATS connection. *nats.Conn
// satisfies it.
type Publisher interface {
	Publish(subj string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Tap publishes the raw chunks of one upstream body, then a done marker.
// It implements stream.Tap. Only the first End publishes.
type Tap struct {
	pub       Publisher
	requestID string
	endOnce   sync.Once
}

var _ stream.Tap = (*Tap)(nil)

func NewTap(pub Publisher, requestID string) *Tap {
	return &Tap{pub: pub, requestID: requestID}
}

func (t *Tap) Chunk(b []byte) {
	if err := t.pub.Publish(ChunkSubject(t.requestID), b); err != nil {
		log.Warn().Err(err).Str("request_id", t.requestID).Msg("tap publish failed")
	}
}

// doneMarker is the payload of the done subject.
type doneMarker struct {
	Error string `json:"error,omitempty"`
}

func (t *Tap) End(err error) {
	t.endOnce.Do(func() { t.publishDone(err) })
}

func (t *Tap) publishDone(err error) {
	var m doneMarker
	if err != nil {
		m.Error = err.Error()
	}
	payload, _ := json.Marshal(m)
	if err := t.pub.Publish(DoneSubject(t.requestID), payload); err != nil {
		log.Warn().Err(err).Str("request_id", t.requestID).Msg("tap done publish failed")
	}
}
