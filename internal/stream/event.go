// Package stream turns upstream HTTP body bytes into Server-Sent Events.
//
// The parser follows the W3C EventSource field rules: chunks may split lines,
// events and multi-byte UTF-8 sequences at any offset, and the resulting event
// sequence is the same as if the whole body had arrived in one piece.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package stream

import (
	"encoding/json"
)

// Event is a single parsed SSE event.
type Event struct {
	// ID is the "id" field. Nil when the block carried no usable id.
	ID *string
	// Type is the "event" field. Nil means the default "message" type.
	Type *string
	// Data is all "data" lines of the block joined with "\n".
	Data string
	// Retry is the "retry" field in milliseconds. Zero is a valid hint.
	Retry *uint64
}

// IsEmpty reports whether the event carries no field at all. Empty events are
// never handed to consumers.
func (e Event) IsEmpty() bool {
	return e.Data == "" && e.ID == nil && e.Type == nil && e.Retry == nil
}

// EventType returns the event type, or "message" when none was set.
func (e Event) EventType() string {
	if e.Type == nil {
		return "message"
	}
	return *e.Type
}

// JSON decodes Data into v.
func (e Event) JSON(v any) error {
	return json.Unmarshal([]byte(e.Data), v)
}

type eventJSON struct {
	ID    *string `json:"id,omitempty"`
	Event *string `json:"event,omitempty"`
	Data  string  `json:"data"`
	Retry *uint64 `json:"retry,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{ID: e.ID, Event: e.Type, Data: e.Data, Retry: e.Retry})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var v eventJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*e = Event{ID: v.ID, Type: v.Event, Data: v.Data, Retry: v.Retry}
	return nil
}

// Ptr returns a pointer to v. Handy for building events in literals.
func Ptr[T any](v T) *T { return &v }
