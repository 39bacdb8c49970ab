package stream

import (
	"net/http"
	"strings"
)

const ContentType = "text/event-stream"

// IsEventStream reports whether the Content-Type header announces an SSE
// body. Parameters such as "; charset=utf-8" are allowed after the media type.
func IsEventStream(h http.Header) bool {
	ct := h.Get("Content-Type")
	return len(ct) >= len(ContentType) && strings.EqualFold(ct[:len(ContentType)], ContentType)
}

// FromResponse wraps resp.Body in a Stream when resp is an SSE response.
// Otherwise it returns false and leaves resp untouched so the caller can
// handle it as a regular response. The caller still owns resp.Body and must
// close it once done with the stream.
func FromResponse[T any](resp *http.Response, conv Converter[T]) (*Stream[T], bool) {
	if resp == nil || resp.Body == nil || !IsEventStream(resp.Header) {
		return nil, false
	}
	return NewStream(ReaderSource(resp.Body), conv), true
}
