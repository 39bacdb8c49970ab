package codec

import (
	"encoding/json"
	"fmt"

	"github.com/PaesslerAG/jsonpath"
	"github.com/namikmesic/streamgate/internal/stream"
	"github.com/namikmesic/streamgate/internal/streamerr"
	"github.com/namikmesic/streamgate/internal/ws"
)

// JSONPath decodes the node selected by Path out of a larger JSON payload,
// e.g. "$.choices[0].delta.content" from an OpenAI completion chunk.
type JSONPath[T any] struct {
	Path string
}

var (
	_ stream.Converter[string] = JSONPath[string]{}
	_ ws.Converter[string]     = JSONPath[string]{}
)

func (p JSONPath[T]) FromServerEvent(ev stream.Event) (T, error) {
	return p.extract([]byte(ev.Data))
}

func (p JSONPath[T]) FromMessage(msg ws.Message) (T, error) {
	if msg.Type != ws.TextMessage {
		var zero T
		return zero, streamerr.Conversionf("expected text message for JSON decoding, got %s", msg.Type)
	}
	return p.extract(msg.Data)
}

// ToMessage encodes v as-is; the selected node is not re-wrapped.
func (p JSONPath[T]) ToMessage(v T) ws.Message {
	return JSON[T]{}.ToMessage(v)
}

func (p JSONPath[T]) extract(payload []byte) (T, error) {
	var v T
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return v, streamerr.Conversion(err)
	}
	// jsonpath.Get returns an error when the path is not found or
	// traverses a value of the wrong kind.
	node, err := jsonpath.Get(p.Path, doc)
	if err != nil {
		return v, streamerr.Conversion(fmt.Errorf("jsonpath %s: %w", p.Path, err))
	}
	b, err := json.Marshal(node)
	if err != nil {
		return v, streamerr.Conversion(err)
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, streamerr.Conversion(fmt.Errorf("jsonpath %s: %w", p.Path, err))
	}
	return v, nil
}
