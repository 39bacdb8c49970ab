package proxy

import (
	"net"
	"net/http"
	"strings"
)

// Hop-by-hop headers that must not be forwarded.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// Handshake headers the websocket dialer generates itself.
var websocketHandshakeHeaders = []string{
	"Sec-Websocket-Key",
	"Sec-Websocket-Version",
	"Sec-Websocket-Extensions",
	"Sec-Websocket-Protocol",
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// stripHopByHop removes the fixed hop-by-hop set plus every header the
// Connection header names.
func stripHopByHop(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, key := range hopByHopHeaders {
		h.Del(key)
	}
}

func prepareUpstreamHeaders(original http.Header, apiKey string) http.Header {
	h := original.Clone()
	if h == nil {
		h = make(http.Header)
	}
	stripHopByHop(h)
	h.Del("Host")

	if apiKey != "" && h.Get("Authorization") == "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}

	// SSE parsing needs the body uncompressed.
	h.Del("Accept-Encoding")
	return h
}

// prepareDialHeaders is prepareUpstreamHeaders for a websocket dial: the
// dialer rejects handshake headers it sets on its own.
func prepareDialHeaders(original http.Header, apiKey string) http.Header {
	h := prepareUpstreamHeaders(original, apiKey)
	for _, key := range websocketHandshakeHeaders {
		h.Del(key)
	}
	return h
}

// setForwarded records the client hop in the X-Forwarded-* headers.
func setForwarded(h http.Header, r *http.Request) {
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if prior := h.Values("X-Forwarded-For"); len(prior) > 0 {
			ip = strings.Join(prior, ", ") + ", " + ip
		}
		h.Set("X-Forwarded-For", ip)
	}
	if h.Get("X-Forwarded-Host") == "" && r.Host != "" {
		h.Set("X-Forwarded-Host", r.Host)
	}
	if h.Get("X-Forwarded-Proto") == "" {
		proto := "http"
		if r.TLS != nil {
			proto = "https"
		}
		h.Set("X-Forwarded-Proto", proto)
	}
}

func prepareClientHeaders(upstream http.Header) http.Header {
	h := make(http.Header)
	copyHeaders(h, upstream)
	stripHopByHop(h)
	// Accept-Encoding was dropped upstream, and the length changes when the
	// body is re-framed.
	h.Del("Content-Encoding")
	h.Del("Content-Length")
	return h
}
