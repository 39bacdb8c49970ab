package stream

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/namikmesic/streamgate/internal/streamerr"
)

const byteOrderMark = "\uFEFF"

// Parser maintains state across chunks to handle partial lines, partial
// events and multi-byte UTF-8 sequences split between chunks.
//
// A Parser is owned by exactly one stream and is not safe for concurrent use.
type Parser struct {
	buf string
	// tail holds the bytes of an incomplete UTF-8 sequence at the end of the
	// previous chunk.
	tail []byte
	// started is set once the first non-empty text has been seen.
	started bool
	// skipLF is set when the previous text ended in '\r', so a '\n' opening
	// the next chunk belongs to the same line ending.
	skipLF bool
	err    error
}

func NewParser() *Parser {
	return &Parser{}
}

// ParseChunk processes raw bytes from the stream and returns every event
// completed by them, in arrival order.
//
// The only error is streamerr.ErrDecode for bytes that are not valid UTF-8.
// After that the parser is poisoned and returns the same error forever.
func (p *Parser) ParseChunk(chunk []byte) ([]Event, error) {
	if p.err != nil {
		return nil, p.err
	}

	data := chunk
	if len(p.tail) > 0 {
		data = make([]byte, 0, len(p.tail)+len(chunk))
		data = append(data, p.tail...)
		data = append(data, chunk...)
		p.tail = nil
	}

	valid, err := validUTF8Prefix(data)
	if err != nil {
		p.err = err
		return nil, err
	}
	if valid < len(data) {
		p.tail = append([]byte(nil), data[valid:]...)
	}

	text := string(data[:valid])
	if text == "" {
		return nil, nil
	}
	if !p.started {
		p.started = true
		text = strings.TrimPrefix(text, byteOrderMark)
	}
	if p.skipLF && strings.HasPrefix(text, "\n") {
		text = text[1:]
	}
	p.skipLF = strings.HasSuffix(text, "\r")

	p.buf += normalizeLineEndings(text)
	return p.extractEvents(), nil
}

// Flush parses whatever remains buffered once the source is exhausted. A
// trailing event does not need a terminating blank line. An incomplete UTF-8
// sequence left over at this point is dropped.
func (p *Parser) Flush() (Event, bool) {
	rest := p.buf
	p.buf = ""
	p.tail = nil
	if p.err != nil || strings.TrimSpace(rest) == "" {
		return Event{}, false
	}
	ev := parseBlock(rest)
	return ev, !ev.IsEmpty()
}

// extractEvents splits the buffer on blank-line boundaries, leaving any
// unterminated block in place.
func (p *Parser) extractEvents() []Event {
	var events []Event
	for {
		idx := strings.Index(p.buf, "\n\n")
		if idx == -1 {
			return events
		}
		if block := p.buf[:idx]; block != "" {
			if ev := parseBlock(block); !ev.IsEmpty() {
				events = append(events, ev)
			}
		}
		// Runs of three or more newlines collapse into one boundary.
		p.buf = strings.TrimLeft(p.buf[idx+2:], "\n")
	}
}

func parseBlock(block string) Event {
	var ev Event
	for _, line := range strings.Split(block, "\n") {
		parseLine(line, &ev)
	}
	return ev
}

// parseLine applies one field line to ev. Malformed and unknown lines are
// ignored.
func parseLine(line string, ev *Event) {
	if strings.HasPrefix(line, ":") {
		return
	}

	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if ev.Data != "" {
			ev.Data += "\n"
		}
		ev.Data += value
	case "event":
		ev.Type = &value
	case "id":
		if !strings.ContainsRune(value, 0) {
			ev.ID = &value
		}
	case "retry":
		if ms, err := strconv.ParseUint(value, 10, 64); err == nil {
			ev.Retry = &ms
		}
	}
}

// normalizeLineEndings rewrites CRLF and bare CR to LF.
func normalizeLineEndings(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// validUTF8Prefix returns the length of the longest decodable prefix of b.
// Bytes after it are an incomplete sequence cut off by the chunk boundary.
// Bytes that can never become valid produce a decode error.
func validUTF8Prefix(b []byte) (int, error) {
	if utf8.Valid(b) {
		return len(b), nil
	}
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(b[i:]) {
				return i, nil
			}
			return 0, streamerr.Decode("invalid UTF-8 at byte offset %d", i)
		}
		i += size
	}
	return len(b), nil
}
