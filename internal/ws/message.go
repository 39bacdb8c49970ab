// Package ws is a transport-independent WebSocket message layer.
//
// A transport adapter supplies a raw MessageSink and MessageSource. Stream
// wraps them with typed conversion, hides control frames from the receive
// side and can be split into independently owned send and receive halves.
package ws

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// MessageType values are the RFC 6455 opcodes.
type MessageType int

const (
	TextMessage   MessageType = 1
	BinaryMessage MessageType = 2
	CloseMessage  MessageType = 8
	PingMessage   MessageType = 9
	PongMessage   MessageType = 10
)

func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	case CloseMessage:
		return "close"
	case PingMessage:
		return "ping"
	case PongMessage:
		return "pong"
	default:
		return fmt.Sprintf("opcode(%d)", int(t))
	}
}

// CloseFrame is the optional payload of a Close message (RFC 6455 §7.4).
type CloseFrame struct {
	Code   uint16
	Reason string
}

// Message is one WebSocket frame with the wire framing already removed.
type Message struct {
	Type MessageType
	// Data is the payload of Text, Binary, Ping and Pong messages.
	Data []byte
	// Close is the frame carried by a Close message, if any.
	Close *CloseFrame
}

func Text(s string) Message { return Message{Type: TextMessage, Data: []byte(s)} }

func Binary(b []byte) Message { return Message{Type: BinaryMessage, Data: b} }

func Ping(b []byte) Message { return Message{Type: PingMessage, Data: b} }

func Pong(b []byte) Message { return Message{Type: PongMessage, Data: b} }

// CloseWith builds a Close message. A nil frame sends no code or reason.
func CloseWith(frame *CloseFrame) Message { return Message{Type: CloseMessage, Close: frame} }

// IsControl reports whether m is a Ping, Pong or Close frame.
func (m Message) IsControl() bool {
	return m.Type == PingMessage || m.Type == PongMessage || m.Type == CloseMessage
}

// Text returns the payload as a string.
func (m Message) Text() string { return string(m.Data) }

func (m Message) String() string {
	switch m.Type {
	case TextMessage:
		return fmt.Sprintf("Text(%q)", m.Data)
	case CloseMessage:
		if m.Close == nil {
			return "Close()"
		}
		return fmt.Sprintf("Close(%d, %q)", m.Close.Code, m.Close.Reason)
	default:
		return fmt.Sprintf("%s(%d bytes)", m.Type, len(m.Data))
	}
}

// FromChunk maps a body chunk to a message: Text when the bytes are valid
// UTF-8, Binary otherwise.
func FromChunk(b []byte) Message {
	if utf8.Valid(b) {
		return Text(string(b))
	}
	return Binary(b)
}

// MessageSink is the send direction of a raw message channel. Send blocks
// until the transport accepted the message.
type MessageSink interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// MessageSource is the receive direction of a raw message channel. Receive
// returns io.EOF when the channel is exhausted. A source that holds a
// resource may also implement io.Closer; Stream.Close calls it.
type MessageSource interface {
	Receive(ctx context.Context) (Message, error)
}
