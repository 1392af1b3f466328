package watcher

import (
	"context"
	"time"

	"github.com/cuemby/meshstate/pkg/transport"
	"github.com/cuemby/meshstate/pkg/wire"
)

// RawClient is the low-level connection to a watcher service: one call,
// one qualifying update (or a timeout). StateWatcher builds the
// cursor-tracking iterator and predicate sugar on top of it.
type RawClient struct {
	conn      *transport.RRClient
	clientID  wire.ClientID
	namespace string
}

// Dial connects to a watcher endpoint at url for namespace, identified by
// clientID so the server can apply echo suppression against updates this
// same client originated.
func Dial(ctx context.Context, url string, namespace string, clientID wire.ClientID) (*RawClient, error) {
	conn, err := transport.DialRR(ctx, url)
	if err != nil {
		return nil, err
	}
	return &RawClient{conn: conn, clientID: clientID, namespace: namespace}, nil
}

// Close closes the underlying connection.
func (c *RawClient) Close() error {
	return c.conn.Close()
}

// Next asks for the next update in the client's namespace after
// onlyAfter, waiting until ctx is done if none is available yet.
func (c *RawClient) Next(ctx context.Context, onlyAfter float64, identicalOkay bool) (wire.StateUpdate, bool, error) {
	req := wire.WatcherRequest{
		ClientID:      c.clientID,
		Namespace:     c.namespace,
		IdenticalOkay: identicalOkay,
		OnlyAfter:     onlyAfter,
	}
	var reply wire.WatcherReply
	if err := c.conn.Call(ctx, req, &reply); err != nil {
		return wire.StateUpdate{}, false, err
	}
	return reply.Update, reply.Timeout, nil
}

// now is the wall-clock source StateWatcher uses for cursor resets; it's a
// package variable so tests can make it deterministic.
var now = func() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
