// Package gorillaws adapts gorilla/websocket connections to the raw message
// channel used by package ws.
package gorillaws

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/namikmesic/streamgate/internal/ws"
)

const controlWriteWait = 5 * time.Second

// Conn owns one gorilla connection. The sink and source it hands out may be
// driven from two different goroutines; the connection is closed once both
// have finished, or when Close is called.
type Conn struct {
	ws *websocket.Conn

	mu         sync.Mutex
	sinkDone   bool
	sourceDone bool
	closed     bool

	sink   *sink
	source *source
}

func New(c *websocket.Conn) *Conn {
	conn := &Conn{ws: c}
	conn.sink = &sink{conn: conn}
	conn.source = &source{conn: conn}

	c.SetPingHandler(func(data string) error {
		conn.source.queue = append(conn.source.queue, ws.Ping([]byte(data)))
		err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(controlWriteWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return err
	})
	c.SetPongHandler(func(data string) error {
		conn.source.queue = append(conn.source.queue, ws.Pong([]byte(data)))
		return nil
	})
	return conn
}

// Split wraps c and returns its two directions.
func Split(c *websocket.Conn) (ws.MessageSink, ws.MessageSource) {
	conn := New(c)
	return conn.Sink(), conn.Source()
}

// NewStream wraps c as a typed ws.Stream.
func NewStream[T any](c *websocket.Conn, conv ws.Converter[T]) *ws.Stream[T] {
	sink, source := Split(c)
	return ws.NewStream(sink, source, conv)
}

func (c *Conn) Sink() ws.MessageSink { return c.sink }

func (c *Conn) Source() ws.MessageSource { return c.source }

// Close closes the underlying network connection without a close handshake.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}

func (c *Conn) release(sinkSide bool) {
	c.mu.Lock()
	if sinkSide {
		c.sinkDone = true
	} else {
		c.sourceDone = true
	}
	done := c.sinkDone && c.sourceDone && !c.closed
	if done {
		c.closed = true
	}
	c.mu.Unlock()
	if done {
		_ = c.ws.Close()
	}
}

type sink struct {
	conn   *Conn
	closed bool
}

func (s *sink) Send(ctx context.Context, msg ws.Message) error {
	if s.closed {
		return net.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c := s.conn.ws

	if msg.IsControl() {
		deadline := time.Now().Add(controlWriteWait)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		payload := msg.Data
		if msg.Type == ws.CloseMessage {
			payload = nil
			if msg.Close != nil {
				payload = websocket.FormatCloseMessage(int(msg.Close.Code), msg.Close.Reason)
			}
		}
		return c.WriteControl(int(msg.Type), payload, deadline)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.SetWriteDeadline(time.Now())
	})
	err := c.WriteMessage(int(msg.Type), msg.Data)
	if !stop() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

func (s *sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.conn.release(true)
	return nil
}

type source struct {
	conn *Conn
	// queue holds control frames seen by the gorilla handlers and the data
	// message read after them, in arrival order.
	queue []ws.Message
	err   error
}

// Close gives up the receive side without reading to the end. Later calls to
// Receive return net.ErrClosed.
func (s *source) Close() error {
	if s.err == nil {
		s.err = net.ErrClosed
	}
	s.queue = nil
	s.conn.release(false)
	return nil
}

func (s *source) Receive(ctx context.Context) (ws.Message, error) {
	for {
		if len(s.queue) > 0 {
			msg := s.queue[0]
			s.queue = s.queue[1:]
			return msg, nil
		}
		if s.err != nil {
			return ws.Message{}, s.err
		}
		if err := ctx.Err(); err != nil {
			return ws.Message{}, err
		}

		c := s.conn.ws
		stop := context.AfterFunc(ctx, func() {
			_ = c.SetReadDeadline(time.Now())
		})
		typ, data, err := c.ReadMessage()
		stopped := stop()

		if err == nil {
			s.queue = append(s.queue, ws.Message{Type: ws.MessageType(typ), Data: data})
			continue
		}

		// gorilla read errors are permanent, so every outcome below ends
		// the source.
		s.conn.release(false)
		var ce *websocket.CloseError
		switch {
		case errors.As(err, &ce) && isPeerClose(ce.Code):
			s.queue = append(s.queue, closeMessage(ce))
			s.err = io.EOF
		case !stopped && ctx.Err() != nil:
			s.err = ctx.Err()
			return ws.Message{}, s.err
		default:
			s.err = io.EOF
			return ws.Message{}, err
		}
	}
}

// isPeerClose reports whether code came from a Close frame the peer sent.
// gorilla reports a connection dropped without a handshake as 1006, and 1015
// is never sent on the wire.
func isPeerClose(code int) bool {
	return code != websocket.CloseAbnormalClosure && code != websocket.CloseTLSHandshake
}

func closeMessage(ce *websocket.CloseError) ws.Message {
	if ce.Code == websocket.CloseNoStatusReceived {
		return ws.CloseWith(nil)
	}
	return ws.CloseWith(&ws.CloseFrame{Code: uint16(ce.Code), Reason: ce.Text})
}
