package watcher

import (
	"context"

	"github.com/cuemby/meshstate/pkg/transport"
	"github.com/cuemby/meshstate/pkg/wire"
)

// Handler adapts Broker to transport.RRServer. Each connection repeatedly
// sends a WatcherRequest and blocks for the matching WatcherReply, the
// same long-poll shape the raw client in this package drives.
func (b *Broker) Handler() func(ctx context.Context, peer *transport.Peer) {
	return func(ctx context.Context, peer *transport.Peer) {
		for {
			var req wire.WatcherRequest
			if err := peer.Recv(&req); err != nil {
				return
			}

			awaitCtx := ctx
			var cancel context.CancelFunc
			if _, ok := ctx.Deadline(); !ok {
				awaitCtx, cancel = context.WithTimeout(ctx, defaultAwaitTimeout)
			}
			update, timedOut, err := b.Await(awaitCtx, req)
			if cancel != nil {
				cancel()
			}
			if err != nil {
				return
			}
			if err := peer.Send(wire.WatcherReply{Update: update, Timeout: timedOut}); err != nil {
				return
			}
		}
	}
}
