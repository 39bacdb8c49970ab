package codec

import (
	"errors"
	"strings"

	"github.com/namikmesic/streamgate/internal/stream"
	"github.com/namikmesic/streamgate/internal/streamerr"
)

// DoneSentinel is the data payload OpenAI-style APIs send as their last event.
const DoneSentinel = "[DONE]"

// ErrDone is returned by UntilDone for the sentinel event. It matches
// streamerr.ErrConversion so the stream keeps going; callers usually stop.
var ErrDone = streamerr.Conversion(errors.New("stream done sentinel"))

// UntilDone wraps a converter and reports ErrDone for the sentinel payload
// instead of handing it to Inner.
type UntilDone[T any] struct {
	Inner stream.Converter[T]
	// Sentinel defaults to DoneSentinel.
	Sentinel string
}

func (u UntilDone[T]) FromServerEvent(ev stream.Event) (T, error) {
	sentinel := u.Sentinel
	if sentinel == "" {
		sentinel = DoneSentinel
	}
	if strings.TrimSpace(ev.Data) == sentinel {
		var zero T
		return zero, ErrDone
	}
	return u.Inner.FromServerEvent(ev)
}
