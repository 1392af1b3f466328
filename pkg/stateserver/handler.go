package stateserver

import (
	"context"
	"time"

	"github.com/cuemby/meshstate/pkg/log"
	"github.com/cuemby/meshstate/pkg/transport"
	"github.com/cuemby/meshstate/pkg/wire"
)

// requestTimeout bounds how long a single connection's in-flight command
// may wait on the command loop before the connection gives up on it.
const requestTimeout = 30 * time.Second

// Handler adapts Server to transport.RRServer: each connection loops
// reading one Envelope at a time and replying, the way a single DEALER
// socket would carry a strict request/reply sequence.
func (s *Server) Handler() func(ctx context.Context, peer *transport.Peer) {
	return func(ctx context.Context, peer *transport.Peer) {
		for {
			var env wire.Envelope
			if err := peer.Recv(&env); err != nil {
				return
			}
			execCtx, cancel := context.WithTimeout(ctx, requestTimeout)
			reply := s.Execute(execCtx, env)
			cancel()
			if err := peer.Send(reply); err != nil {
				log.Error("state server: failed writing reply: " + err.Error())
				return
			}
		}
	}
}
