package metrics

import (
	"context"
	"errors"

	"github.com/namikmesic/streamgate/internal/streamerr"
)

// ErrorKind maps an error onto the label used by the Errors counter.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, streamerr.ErrDecode):
		return "decode"
	case errors.Is(err, streamerr.ErrConversion):
		return "conversion"
	case errors.Is(err, streamerr.ErrSend):
		return "send"
	case errors.Is(err, streamerr.ErrTransport):
		return "transport"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

// ObserveError counts err under its kind. Nil errors are ignored.
func (m *Metrics) ObserveError(err error) {
	if m == nil || err == nil {
		return
	}
	m.Errors.WithLabelValues(ErrorKind(err)).Inc()
}

// ObserveTokens adds the token counts of one finished stream.
func (m *Metrics) ObserveTokens(input, output int) {
	if m == nil {
		return
	}
	if input > 0 {
		m.Tokens.WithLabelValues("input").Add(float64(input))
	}
	if output > 0 {
		m.Tokens.WithLabelValues("output").Add(float64(output))
	}
}
