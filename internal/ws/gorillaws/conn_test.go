package gorillaws

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/namikmesic/streamgate/internal/codec"
	"github.com/namikmesic/streamgate/internal/streamerr"
	"github.com/namikmesic/streamgate/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newServer starts a websocket endpoint running handle on every connection.
func newServer(t *testing.T, handle func(c *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		handle(c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	c, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return c
}

type chat struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func TestStream_Echo(t *testing.T) {
	url := newServer(t, func(c *websocket.Conn) {
		for {
			typ, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(typ, data); err != nil {
				return
			}
		}
	})

	conn := New(dial(t, url))
	defer conn.Close()
	s := ws.NewStream[chat](conn.Sink(), conn.Source(), codec.JSON[chat]{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	want := chat{Role: "user", Text: "héllo"}
	require.NoError(t, s.Send(ctx, want))
	got, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Close(ctx))
}

func TestSource_ControlFramesAndClose(t *testing.T) {
	url := newServer(t, func(c *websocket.Conn) {
		deadline := time.Now().Add(time.Second)
		_ = c.WriteControl(websocket.PingMessage, []byte("hb"), deadline)
		_ = c.WriteMessage(websocket.TextMessage, []byte("data"))
		_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), deadline)
		// Wait for the client to go away.
		_, _, _ = c.ReadMessage()
	})

	conn := New(dial(t, url))
	defer conn.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src := conn.Source()
	var raw []ws.Message
	for {
		msg, err := src.Receive(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		raw = append(raw, msg)
	}
	require.Len(t, raw, 3)
	assert.Equal(t, ws.Ping([]byte("hb")), raw[0])
	assert.Equal(t, ws.Text("data"), raw[1])
	assert.Equal(t, ws.CloseWith(&ws.CloseFrame{Code: 1000, Reason: "bye"}), raw[2])
}

func TestStream_ReceiveFiltersControl(t *testing.T) {
	url := newServer(t, func(c *websocket.Conn) {
		deadline := time.Now().Add(time.Second)
		_ = c.WriteControl(websocket.PingMessage, nil, deadline)
		_ = c.WriteControl(websocket.PongMessage, nil, deadline)
		_ = c.WriteMessage(websocket.TextMessage, []byte("data"))
		_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_, _, _ = c.ReadMessage()
	})

	s := NewStream[ws.Message](dial(t, url), ws.Raw{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []ws.Message
	for msg, err := range s.All(ctx) {
		require.NoError(t, err)
		got = append(got, msg)
	}
	assert.Equal(t, []ws.Message{ws.Text("data")}, got)
	_ = s.Close(ctx)
}

func TestSource_AbruptDisconnect(t *testing.T) {
	url := newServer(t, func(c *websocket.Conn) {
		_ = c.WriteMessage(websocket.BinaryMessage, []byte{1})
		// Drop the TCP connection without a close handshake.
		_ = c.UnderlyingConn().Close()
	})

	s := NewStream[ws.Message](dial(t, url), ws.Raw{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, ws.Binary([]byte{1}), msg)

	_, err = s.Recv(ctx)
	require.ErrorIs(t, err, streamerr.ErrTransport)
	_, err = s.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)
	_ = s.Close(ctx)
}

func TestSource_AbruptDisconnectIsNotClose(t *testing.T) {
	url := newServer(t, func(c *websocket.Conn) {
		_ = c.UnderlyingConn().Close()
	})

	conn := New(dial(t, url))
	defer conn.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src := conn.Source()
	msg, err := src.Receive(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.Equal(t, ws.Message{}, msg)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseAbnormalClosure))

	_, err = src.Receive(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSource_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	url := newServer(t, func(c *websocket.Conn) {
		<-release
	})
	defer close(release)

	conn := New(dial(t, url))
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := conn.Source().Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConn_ClosesWhenBothSidesDone(t *testing.T) {
	url := newServer(t, func(c *websocket.Conn) {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	conn := New(dial(t, url))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, rx := ws.NewStream[ws.Message](conn.Sink(), conn.Source(), ws.Raw{}).Split()
	require.NoError(t, tx.Close(ctx))

	// The server answers our Close with its own, ending the receive side.
	for _, err := range rx.All(ctx) {
		require.NoError(t, err)
	}

	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	assert.True(t, closed)
}

func TestStream_CloseReleasesConnection(t *testing.T) {
	url := newServer(t, func(c *websocket.Conn) {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	conn := New(dial(t, url))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := ws.NewStream[ws.Message](conn.Sink(), conn.Source(), ws.Raw{})
	require.NoError(t, s.Close(ctx))

	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	assert.True(t, closed)

	_, err := conn.Source().Receive(ctx)
	assert.ErrorIs(t, err, net.ErrClosed)
}
