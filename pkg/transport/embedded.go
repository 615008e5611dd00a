package transport

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer wraps an embedded NATS server with JetStream enabled.
// Used by tests and by graphd's --embedded mode.
type EmbeddedServer struct {
	server *server.Server
	url    string
}

// StartEmbeddedServer starts an embedded NATS server on a random port.
func StartEmbeddedServer(storeDir string) (*EmbeddedServer, error) {
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  storeDir,
	}

	s, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded server: %w", err)
	}

	go s.Start()

	if !s.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("embedded server not ready")
	}

	return &EmbeddedServer{server: s, url: s.ClientURL()}, nil
}

// URL returns the connection URL for the embedded server.
func (e *EmbeddedServer) URL() string {
	return e.url
}

// Shutdown stops the embedded server.
func (e *EmbeddedServer) Shutdown() {
	if e.server != nil {
		e.server.Shutdown()
		e.server.WaitForShutdown()
	}
}

// NewEmbeddedBus starts an embedded server and a bus connected to it.
func NewEmbeddedBus(storeDir string) (*NatsBus, *EmbeddedServer, error) {
	srv, err := StartEmbeddedServer(storeDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded server: %w", err)
	}

	config := DefaultConfig()
	config.URL = srv.URL()

	bus, err := NewNatsBus(config)
	if err != nil {
		srv.Shutdown()
		return nil, nil, fmt.Errorf("failed to create bus: %w", err)
	}
	return bus, srv, nil
}
