package bus

import (
	"fmt"
	"time"

	server "github.com/nats-io/nats-server/v2/server"
	nats "github.com/nats-io/nats.go"
)

const readyTimeout = 5 * time.Second

// Server is an in-process NATS server carrying the tap traffic. It does not
// listen on any network port and keeps no state on disk.
type Server struct{ ns *server.Server }

func NewServer() (*Server, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName: "streamgate-tap",
		DontListen: true,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create tap server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("tap server not ready after %s", readyTimeout)
	}
	return &Server{ns: ns}, nil
}

// Connect opens an in-process client connection to the server.
func (s *Server) Connect() (*nats.Conn, error) {
	return nats.Connect(s.ns.ClientURL(),
		nats.InProcessServer(s.ns),
		nats.Name("streamgate"),
		nats.NoReconnect(),
	)
}

func (s *Server) Shutdown() {
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}
