package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/namikmesic/streamgate/internal/bus"
	"github.com/namikmesic/streamgate/internal/config"
	"github.com/namikmesic/streamgate/internal/metrics"
	"github.com/namikmesic/streamgate/internal/processor"
	"github.com/namikmesic/streamgate/internal/stream"
	"github.com/rs/zerolog/log"
)

// Handler is the gateway reverse proxy. SSE responses are normalized into
// discrete events and re-serialized, other responses are copied untouched,
// and WebSocket upgrades are bridged message by message.
type Handler struct {
	cfg      *config.Config
	upstream *url.URL
	client   *http.Client
	dialer   *websocket.Dialer
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	// tap receives the raw chunks of every SSE upstream body. Nil disables it.
	tap bus.Publisher
}

func NewHandler(cfg *config.Config, m *metrics.Metrics, tap bus.Publisher) (*Handler, error) {
	upstream, err := parseUpstream(cfg.UpstreamURL)
	if err != nil {
		return nil, err
	}
	return &Handler{
		cfg:      cfg,
		upstream: upstream,
		client: &http.Client{
			// No timeout, streaming responses can be long-lived
			Timeout: 0,
			// Don't follow redirects
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.WSHandshakeTimeout,
		},
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.WSHandshakeTimeout,
			// Origin policy belongs to the upstream, which sees the
			// forwarded Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		metrics: m,
		tap:     tap,
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New()
	start := time.Now()

	if websocket.IsWebSocketUpgrade(r) {
		h.serveWebSocket(w, r, requestID)
		return
	}

	var reqBody []byte
	if r.Body != nil {
		var err error
		reqBody, err = io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			log.Error().Err(err).Msg("failed to read request body")
			http.Error(w, "failed to read request body", http.StatusBadGateway)
			return
		}
	}

	reqParsed := processor.ParseRequest(reqBody)

	targetURL := buildTargetURL(h.upstream, r.URL.Path, r.URL.RawQuery)
	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL, bytes.NewReader(reqBody))
	if err != nil {
		log.Error().Err(err).Msg("failed to create upstream request")
		http.Error(w, "failed to create upstream request", http.StatusBadGateway)
		return
	}

	upstreamReq.Header = prepareUpstreamHeaders(r.Header, h.cfg.UpstreamAPIKey)
	setForwarded(upstreamReq.Header, r)

	resp, err := h.client.Do(upstreamReq)
	if err != nil {
		log.Error().Err(err).Str("url", targetURL).Msg("upstream request failed")
		h.metrics.Requests.WithLabelValues(metrics.KindFailed).Inc()
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	isStreaming := stream.IsEventStream(resp.Header)

	copyHeaders(w.Header(), prepareClientHeaders(resp.Header))

	var events int
	if isStreaming {
		h.metrics.Requests.WithLabelValues(metrics.KindSSE).Inc()
		events = h.handleStreaming(r.Context(), w, resp, requestID.String())
	} else {
		h.metrics.Requests.WithLabelValues(metrics.KindPassthrough).Inc()
		h.handlePassthrough(w, resp)
	}

	log.Info().
		Str("request_id", requestID.String()).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("model", reqParsed.Model).
		Int("status", resp.StatusCode).
		Bool("stream", isStreaming).
		Int("events", events).
		Dur("duration", time.Since(start)).
		Msg("proxied request")
}

var errStreamAbandoned = errors.New("stream abandoned before upstream finished")

type streamItem struct {
	ev  stream.Event
	err error
}

// handleStreaming re-serializes the upstream SSE body event by event and
// returns the number of events sent.
func (h *Handler) handleStreaming(ctx context.Context, w http.ResponseWriter, resp *http.Response, requestID string) int {
	reqCtx := ctx
	ctx, cancel := context.WithCancel(ctx)

	var src stream.Source = stream.ReaderSource(resp.Body)
	if h.tap != nil {
		tap := bus.NewTap(h.tap, requestID)
		src = stream.TeeSource(src, tap)
		// Runs after the reader goroutine has finished. A no-op when the
		// upstream body already ended the tap.
		defer func() {
			cause := context.Cause(reqCtx)
			if cause == nil {
				cause = errStreamAbandoned
			}
			tap.End(cause)
		}()
	}
	events := stream.Events(src)

	items := make(chan streamItem)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer close(items)
		for ev, err := range events.All(ctx) {
			select {
			case items <- streamItem{ev: ev, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	defer func() {
		cancel()
		// Unblocks a pending body read.
		resp.Body.Close()
		<-finished
	}()

	sw := stream.NewWriter(w)
	sw.WriteHeaders(resp.StatusCode)

	var keepAlive <-chan time.Time
	if h.cfg.SSEKeepAlive > 0 {
		ticker := time.NewTicker(h.cfg.SSEKeepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	sent := 0
	for {
		select {
		case item, ok := <-items:
			if !ok {
				return sent
			}
			if item.err != nil {
				h.metrics.ObserveError(item.err)
				if !errors.Is(item.err, context.Canceled) {
					log.Warn().Err(item.err).Str("request_id", requestID).Msg("upstream event stream failed")
				}
				return sent
			}
			if err := sw.Send(item.ev); err != nil {
				log.Debug().Err(err).Str("request_id", requestID).Msg("client went away")
				return sent
			}
			sent++
			h.metrics.SSEEvents.Inc()
		case <-keepAlive:
			if err := sw.Comment("keep-alive"); err != nil {
				return sent
			}
		case <-ctx.Done():
			return sent
		}
	}
}

func (h *Handler) handlePassthrough(w http.ResponseWriter, resp *http.Response) {
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Error().Err(err).Msg("failed to copy response body")
	}
}
