package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/namikmesic/streamgate/internal/streamerr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKind(t *testing.T) {
	cause := errors.New("x")
	tests := []struct {
		err  error
		want string
	}{
		{streamerr.Decode("bad"), "decode"},
		{streamerr.Conversion(cause), "conversion"},
		{streamerr.Send(cause), "send"},
		{fmt.Errorf("read: %w", streamerr.Transport(cause)), "transport"},
		{context.Canceled, "canceled"},
		{context.DeadlineExceeded, "canceled"},
		{cause, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveError(streamerr.Decode("bad"))
	m.ObserveError(streamerr.Decode("bad"))
	m.ObserveError(nil)
	m.ObserveTokens(10, 0)
	m.Requests.WithLabelValues(KindSSE).Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Errors.WithLabelValues("decode")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.Tokens.WithLabelValues("input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(KindSSE)))

	n, err := testutil.GatherAndCount(reg, "streamgate_stream_errors_total", "streamgate_proxy_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveError(errors.New("x"))
		m.ObserveTokens(1, 1)
	})
}
