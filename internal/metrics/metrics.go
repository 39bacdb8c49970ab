// Package metrics holds the Prometheus collectors exported by the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "streamgate"

// Request kinds.
const (
	KindSSE         = "sse"
	KindPassthrough = "passthrough"
	KindWebSocket   = "websocket"
	KindFailed      = "failed"
)

// WebSocket directions, seen from the client.
const (
	DirectionUpstream   = "upstream"
	DirectionDownstream = "downstream"
)

type Metrics struct {
	Requests   *prometheus.CounterVec
	SSEEvents  prometheus.Counter
	Errors     *prometheus.CounterVec
	WSMessages *prometheus.CounterVec
	// Tokens counts LLM tokens reported by tapped streams.
	Tokens *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Proxied requests by handling path",
		}, []string{"kind"}),
		SSEEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sse",
			Name:      "events_total",
			Help:      "SSE events re-serialized to clients",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "errors_total",
			Help:      "Stream failures by error kind",
		}, []string{"kind"}),
		WSMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "messages_total",
			Help:      "WebSocket data messages bridged, by direction",
		}, []string{"direction"}),
		Tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tap",
			Name:      "tokens_total",
			Help:      "LLM tokens reported by tapped streams, by token type",
		}, []string{"type"}),
	}
	reg.MustRegister(m.Requests, m.SSEEvents, m.Errors, m.WSMessages, m.Tokens)
	return m
}
