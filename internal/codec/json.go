// Package codec provides typed converters shared by the SSE and WebSocket
// layers.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/namikmesic/streamgate/internal/stream"
	"github.com/namikmesic/streamgate/internal/streamerr"
	"github.com/namikmesic/streamgate/internal/ws"
)

// JSON converts between JSON payloads and T. For SSE the payload is the
// event's data field; for WebSocket it is the body of a Text message.
type JSON[T any] struct{}

var (
	_ stream.Converter[struct{}] = JSON[struct{}]{}
	_ ws.Converter[struct{}]     = JSON[struct{}]{}
)

func (JSON[T]) FromServerEvent(ev stream.Event) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(ev.Data), &v); err != nil {
		return v, streamerr.Conversion(err)
	}
	return v, nil
}

// FromMessage decodes a Text message. Binary messages are rejected.
func (JSON[T]) FromMessage(msg ws.Message) (T, error) {
	var v T
	if msg.Type != ws.TextMessage {
		return v, streamerr.Conversionf("expected text message for JSON decoding, got %s", msg.Type)
	}
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		return v, streamerr.Conversion(err)
	}
	return v, nil
}

// ToMessage encodes v as a Text message. It panics when v cannot be encoded,
// which only happens for types that are not JSON representable.
func (JSON[T]) ToMessage(v T) ws.Message {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("codec: encode %T as JSON: %v", v, err))
	}
	return ws.Message{Type: ws.TextMessage, Data: b}
}
