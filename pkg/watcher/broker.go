package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/meshstate/pkg/metrics"
	"github.com/cuemby/meshstate/pkg/transport"
	"github.com/cuemby/meshstate/pkg/wire"
)

// Broker is the server side of the watcher service. It implements
// stateserver.UpdateSink, so the state server can publish into it
// directly, and answers "give me the next update after my cursor"
// requests either immediately (if one has already landed) or by waiting
// on the namespace's fanout topic for the next one that qualifies.
type Broker struct {
	fan *transport.Fan

	mu     sync.RWMutex
	latest map[string]wire.StateUpdate
}

// NewBroker returns an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		fan:    transport.NewFan(),
		latest: make(map[string]wire.StateUpdate),
	}
}

// Publish records update as the namespace's latest and fans it out to any
// goroutine currently blocked in Await for that namespace. It satisfies
// stateserver.UpdateSink.
func (b *Broker) Publish(namespace string, origin wire.ClientID, update wire.StateUpdate) {
	b.mu.Lock()
	b.latest[namespace] = update
	b.mu.Unlock()
	metrics.WatcherUpdatesTotal.WithLabelValues(namespace).Inc()
	b.fan.Publish(namespace, origin, update)
}

// Await blocks until a StateUpdate in req.Namespace satisfies req (newer
// than req.OnlyAfter and — unless req.IdenticalOkay — not a no-op
// commit), or until ctx is done. Updates that arrive while waiting are
// also skipped when they came from a non-zero req.ClientID; the latest
// update returned immediately by peek is not checked for origin. timeout
// is true only when ctx ended the wait with nothing qualifying.
func (b *Broker) Await(ctx context.Context, req wire.WatcherRequest) (update wire.StateUpdate, timeout bool, err error) {
	if u, ok := b.peek(req); ok {
		return u, false, nil
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.WatcherAwaitDuration)

	metrics.WatcherSubscribersActive.Inc()
	defer metrics.WatcherSubscribersActive.Dec()

	sub := b.fan.Subscribe(req.Namespace)
	defer b.fan.Unsubscribe(sub)

	// A commit may have landed between the peek above and the Subscribe
	// call; check once more now that we're guaranteed not to miss any
	// commit after this point.
	if u, ok := b.peek(req); ok {
		return u, false, nil
	}

	for {
		select {
		case <-ctx.Done():
			return wire.StateUpdate{}, true, nil
		case msg, ok := <-sub.C:
			if !ok {
				return wire.StateUpdate{}, true, nil
			}
			u, ok := msg.Payload.(wire.StateUpdate)
			if !ok {
				continue
			}
			origin, _ := msg.Origin.(wire.ClientID)
			if qualifies(u, origin, req) {
				return u, false, nil
			}
		}
	}
}

func (b *Broker) peek(req wire.WatcherRequest) (wire.StateUpdate, bool) {
	b.mu.RLock()
	u, ok := b.latest[req.Namespace]
	b.mu.RUnlock()
	if !ok {
		return wire.StateUpdate{}, false
	}
	// The latest recorded update carries no origin by the time it's
	// stashed in b.latest, so an immediate reply can't apply echo
	// suppression; only the live fan path (which retains Origin on each
	// Message) can. A client with a stale cursor that happens to match
	// its own last write will simply see it again on the next Await,
	// which is the same behavior a fresh long-poll request would produce.
	if u.Timestamp <= req.OnlyAfter {
		return wire.StateUpdate{}, false
	}
	if u.IsIdentical && !req.IdenticalOkay {
		return wire.StateUpdate{}, false
	}
	return u, true
}

func qualifies(u wire.StateUpdate, origin wire.ClientID, req wire.WatcherRequest) bool {
	if u.Timestamp <= req.OnlyAfter {
		return false
	}
	if u.IsIdentical && !req.IdenticalOkay {
		return false
	}
	if !origin.IsZero() && origin == req.ClientID {
		return false
	}
	return true
}

// defaultAwaitTimeout bounds an Await call that carries no deadline of its
// own, so a client that never reconnects doesn't pin a goroutine forever.
const defaultAwaitTimeout = 5 * time.Minute
