package stream

import (
	"net/http"
	"strconv"
	"strings"
)

// AppendEvent appends the wire form of ev to dst: id, event and retry lines
// when set, one data line per line of Data, then a blank line.
func AppendEvent(dst []byte, ev Event) []byte {
	if ev.ID != nil {
		dst = append(dst, "id: "...)
		dst = append(dst, *ev.ID...)
		dst = append(dst, '\n')
	}
	if ev.Type != nil {
		dst = append(dst, "event: "...)
		dst = append(dst, *ev.Type...)
		dst = append(dst, '\n')
	}
	if ev.Retry != nil {
		dst = append(dst, "retry: "...)
		dst = strconv.AppendUint(dst, *ev.Retry, 10)
		dst = append(dst, '\n')
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		dst = append(dst, "data: "...)
		dst = append(dst, line...)
		dst = append(dst, '\n')
	}
	return append(dst, '\n')
}

// Writer re-serializes events onto an HTTP response.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	buf     []byte
}

func NewWriter(w http.ResponseWriter) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: f}
}

// WriteHeaders sets the SSE response framing and writes the status line.
func (sw *Writer) WriteHeaders(status int) {
	h := sw.w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	// Stops nginx style reverse proxies from buffering the stream.
	h.Set("X-Accel-Buffering", "no")
	h.Del("Content-Length")
	sw.w.WriteHeader(status)
	sw.flush()
}

// Send writes one event and flushes it to the client.
func (sw *Writer) Send(ev Event) error {
	sw.buf = AppendEvent(sw.buf[:0], ev)
	if _, err := sw.w.Write(sw.buf); err != nil {
		return err
	}
	sw.flush()
	return nil
}

// Comment writes a comment line, typically as a keep-alive.
func (sw *Writer) Comment(text string) error {
	sw.buf = append(sw.buf[:0], ':')
	if text != "" {
		sw.buf = append(sw.buf, ' ')
		sw.buf = append(sw.buf, strings.ReplaceAll(text, "\n", " ")...)
	}
	sw.buf = append(sw.buf, '\n', '\n')
	if _, err := sw.w.Write(sw.buf); err != nil {
		return err
	}
	sw.flush()
	return nil
}

func (sw *Writer) flush() {
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}
