package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// RRServer accepts request/reply connections and hands each one to Handler
// in its own goroutine. Handler is expected to loop Recv/Send on the given
// Peer until the connection closes, mirroring a ROUTER socket's per-client
// session.
type RRServer struct {
	Handler  func(ctx context.Context, peer *Peer)
	upgrader websocket.Upgrader
}

// NewRRServer builds an RRServer around handler.
func NewRRServer(handler func(ctx context.Context, peer *Peer)) *RRServer {
	return &RRServer{
		Handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and dispatches it to Handler.
func (s *RRServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	peer := NewPeer(conn)
	go func() {
		defer peer.Close()
		s.Handler(r.Context(), peer)
	}()
}

// RRClient is a single request/reply connection. Calls are serialized: like
// the socket it replaces, one RRClient carries one request in flight at a
// time, so concurrent callers need a pool or their own dial.
type RRClient struct {
	peer *Peer
}

// DialRR connects to a meshstate RR endpoint at url (e.g. "ws://host:port/state").
func DialRR(ctx context.Context, url string) (*RRClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	return &RRClient{peer: NewPeer(conn)}, nil
}

// Call sends req and waits for the corresponding reply, decoding it into
// resp. It honors ctx's deadline by translating it into a read deadline on
// the underlying connection.
func (c *RRClient) Call(ctx context.Context, req, resp any) error {
	if err := c.peer.Send(req); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.peer.SetReadDeadline(deadline); err != nil {
			return err
		}
		defer c.peer.SetReadDeadline(time.Time{})
	}
	return c.peer.Recv(resp)
}

// Close closes the underlying connection.
func (c *RRClient) Close() error {
	return c.peer.Close()
}
