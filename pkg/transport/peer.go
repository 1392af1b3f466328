package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cuemby/meshstate/pkg/wire"
)

// Peer wraps one websocket connection with CBOR framing. A Peer is the
// duplex, identity-preserving channel the RR connection shape is built
// from.
type Peer struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	readMu  sync.Mutex
}

// NewPeer wraps an already-established websocket connection.
func NewPeer(conn *websocket.Conn) *Peer {
	return &Peer{conn: conn}
}

// Send encodes v as CBOR and writes it as a single binary websocket
// message. Writes are serialized: gorilla/websocket connections support at
// most one concurrent writer.
func (p *Peer) Send(v any) error {
	data, err := wire.Marshal(v)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Recv blocks for the next binary message and decodes it into v.
func (p *Peer) Recv(v any) error {
	p.readMu.Lock()
	defer p.readMu.Unlock()
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("transport: recv: %w", err)
	}
	return wire.Unmarshal(data, v)
}

// SetReadDeadline bounds the next Recv call, used to implement request
// timeouts without a background goroutine per call.
func (p *Peer) SetReadDeadline(t time.Time) error {
	return p.conn.SetReadDeadline(t)
}

// RemoteAddr returns the underlying connection's remote address string.
func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// Close closes the underlying connection.
func (p *Peer) Close() error {
	return p.conn.Close()
}
