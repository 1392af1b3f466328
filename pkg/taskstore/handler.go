package taskstore

import (
	"context"

	"github.com/cuemby/meshstate/pkg/transport"
	"github.com/cuemby/meshstate/pkg/wire"
)

// Handler adapts Store to transport.RRServer: each connection sends a
// TaskLookupRequest and blocks for its TaskLookupReply.
func (s *Store) Handler() func(ctx context.Context, peer *transport.Peer) {
	return func(ctx context.Context, peer *transport.Peer) {
		for {
			var req wire.TaskLookupRequest
			if err := peer.Recv(&req); err != nil {
				return
			}
			value, taskErr, err := s.Lookup(ctx, req.ChunkID)
			if err != nil {
				return
			}
			if err := peer.Send(wire.TaskLookupReply{Result: value, Err: taskErr}); err != nil {
				return
			}
		}
	}
}
