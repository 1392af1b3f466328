package taskproxy

import (
	"context"

	"github.com/cuemby/meshstate/pkg/transport"
	"github.com/cuemby/meshstate/pkg/wire"
)

// Handler adapts Proxy to transport.RRServer for remote submitters: each
// connection sends a TaskDispatch and gets back an ack once it's queued.
// Collecting the result is a separate round trip against taskstore.Store.
func (p *Proxy) Handler() func(ctx context.Context, peer *transport.Peer) {
	return func(ctx context.Context, peer *transport.Peer) {
		for {
			var d wire.TaskDispatch
			if err := peer.Recv(&d); err != nil {
				return
			}
			reply := wire.OKReply(nil)
			if err := p.Submit(ctx, d); err != nil {
				reply = wire.ErrReply(wire.NewRemoteError(err))
			}
			if err := peer.Send(reply); err != nil {
				return
			}
		}
	}
}
