package proxy

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/namikmesic/streamgate/internal/metrics"
	"github.com/namikmesic/streamgate/internal/streamerr"
	"github.com/namikmesic/streamgate/internal/ws"
	"github.com/namikmesic/streamgate/internal/ws/gorillaws"
	"github.com/rs/zerolog/log"
)

const closeWait = time.Second

// serveWebSocket dials the upstream first so that a refused handshake can
// still be reported to the client as a plain HTTP error.
func (h *Handler) serveWebSocket(w http.ResponseWriter, r *http.Request, requestID uuid.UUID) {
	start := time.Now()
	targetURL := buildWebSocketURL(h.upstream, r.URL.Path, r.URL.RawQuery)

	dialer := *h.dialer
	dialer.Subprotocols = websocket.Subprotocols(r)

	header := prepareDialHeaders(r.Header, h.cfg.UpstreamAPIKey)
	setForwarded(header, r)

	upstreamConn, resp, err := dialer.DialContext(r.Context(), targetURL, header)
	if err != nil {
		status := http.StatusBadGateway
		if resp != nil {
			status = resp.StatusCode
			resp.Body.Close()
		}
		log.Error().Err(err).Str("url", targetURL).Int("status", status).Msg("upstream websocket dial failed")
		h.metrics.Requests.WithLabelValues(metrics.KindFailed).Inc()
		http.Error(w, "upstream websocket dial failed", status)
		return
	}

	var respHeader http.Header
	if proto := upstreamConn.Subprotocol(); proto != "" {
		respHeader = http.Header{"Sec-Websocket-Protocol": {proto}}
	}
	clientConn, err := h.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Error().Err(err).Msg("client websocket upgrade failed")
		upstreamConn.Close()
		h.metrics.Requests.WithLabelValues(metrics.KindFailed).Inc()
		return
	}
	h.metrics.Requests.WithLabelValues(metrics.KindWebSocket).Inc()

	if h.cfg.WSReadLimit > 0 {
		clientConn.SetReadLimit(h.cfg.WSReadLimit)
		upstreamConn.SetReadLimit(h.cfg.WSReadLimit)
	}

	// The request context is not used past the upgrade: the hijacked
	// connection outlives it on some servers.
	up, down := h.bridge(context.Background(), gorillaws.New(clientConn), gorillaws.New(upstreamConn))

	log.Info().
		Str("request_id", requestID.String()).
		Str("path", r.URL.Path).
		Str("subprotocol", upstreamConn.Subprotocol()).
		Int("messages_upstream", up).
		Int("messages_downstream", down).
		Dur("duration", time.Since(start)).
		Msg("websocket session closed")
}

// bridge relays data messages both ways until either side closes, then
// closes both connections. It returns the number of messages relayed in each
// direction.
func (h *Handler) bridge(ctx context.Context, client, upstream *gorillaws.Conn) (up, down int) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clientStream := ws.NewStream[ws.Message](client.Sink(), client.Source(), ws.Raw{})
	upstreamStream := ws.NewStream[ws.Message](upstream.Sink(), upstream.Source(), ws.Raw{})
	toClient, fromClient := clientStream.Split()
	toUpstream, fromUpstream := upstreamStream.Split()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		up = h.pump(ctx, cancel, fromClient, toUpstream, metrics.DirectionUpstream)
	}()
	go func() {
		defer wg.Done()
		down = h.pump(ctx, cancel, fromUpstream, toClient, metrics.DirectionDownstream)
	}()
	wg.Wait()

	client.Close()
	upstream.Close()
	return up, down
}

// pump forwards messages from one side to the other. When the receiving side
// ends it sends a Close frame to the other and cancels the session.
func (h *Handler) pump(ctx context.Context, cancel context.CancelFunc, from *ws.Receiver[ws.Message], to *ws.Sender[ws.Message], direction string) int {
	n := 0
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), closeWait)
		defer closeCancel()
		if err := to.Close(closeCtx); err != nil {
			log.Debug().Err(err).Str("direction", direction).Msg("websocket close frame not delivered")
		}
		cancel()
	}()

	for msg, err := range from.All(ctx) {
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				h.metrics.ObserveError(err)
				log.Debug().Err(err).Str("direction", direction).Msg("websocket receive ended")
			}
			return n
		}
		if err := to.Send(ctx, msg); err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, streamerr.ErrClosed) {
				h.metrics.ObserveError(err)
				log.Debug().Err(err).Str("direction", direction).Msg("websocket send failed")
			}
			return n
		}
		n++
		h.metrics.WSMessages.WithLabelValues(direction).Inc()
	}
	return n
}
