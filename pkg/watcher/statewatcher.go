package watcher

import (
	"context"
	"time"

	"github.com/cuemby/meshstate/pkg/wire"
)

// Callback decides what a StateWatcher yields for one qualifying update.
// Returning ErrSkip continues the loop without counting this update
// against a bounded iteration.
type Callback func(update wire.StateUpdate) (any, error)

// Option configures a StateWatcher at construction.
type Option func(*StateWatcher)

// Live makes the watcher reset its cursor to "now" before every request,
// discarding any backlog that accumulated while the previous callback ran
// — useful for a caller that only wants to react to genuinely fresh
// changes, not catch up on everything it missed.
func Live() Option {
	return func(sw *StateWatcher) { sw.live = true }
}

// IdenticalOkay makes the watcher also report commits whose before/after
// state turned out to be unchanged, which are dropped by default.
func IdenticalOkay() Option {
	return func(sw *StateWatcher) { sw.identicalOkay = true }
}

// StartAfter sets the initial cursor, so the first Next call only
// considers updates strictly newer than t.
func StartAfter(t float64) Option {
	return func(sw *StateWatcher) { sw.onlyAfter = t }
}

// Count bounds how many updates Consume will collect. The zero value
// (the default) means unbounded.
func Count(n int) Option {
	return func(sw *StateWatcher) { sw.count = n }
}

// Deadline bounds how long the watcher will wait across its entire
// lifetime, not just a single Next call.
func Deadline(t time.Time) Option {
	return func(sw *StateWatcher) { sw.deadline = t }
}

// Requester is the subset of RawClient's behavior StateWatcher depends on,
// broken out so tests can drive the iterator without a real connection.
type Requester interface {
	Next(ctx context.Context, onlyAfter float64, identicalOkay bool) (wire.StateUpdate, bool, error)
}

// StateWatcher drives a Requester in a loop, applying a Callback to each
// qualifying update and tracking the cursor between calls.
type StateWatcher struct {
	raw      Requester
	callback Callback

	live          bool
	identicalOkay bool
	onlyAfter     float64
	deadline      time.Time
	count         int
	emitted       int
}

// New builds a StateWatcher over raw, starting from "now" unless
// overridden by StartAfter. Unless the watcher is Live, a *RawClient raw
// is switched to the zero ClientID, so the server suppresses no echoes
// and the watcher sees every update after its cursor, its own client's
// included.
func New(raw Requester, callback Callback, opts ...Option) *StateWatcher {
	sw := &StateWatcher{raw: raw, callback: callback, onlyAfter: now()}
	for _, opt := range opts {
		opt(sw)
	}
	if rc, ok := raw.(*RawClient); ok && !sw.live {
		rc.clientID = wire.ClientID{}
	}
	return sw
}

// GoLive resets the cursor to the current time, so the next Next call
// ignores any update committed before this call.
func (sw *StateWatcher) GoLive() {
	sw.onlyAfter = now()
}

// Next blocks until the callback accepts an update (returns a value
// without ErrSkip), the configured Count is reached (ErrDone), the
// Deadline passes (ErrTimeout), or ctx is canceled.
func (sw *StateWatcher) Next(ctx context.Context) (any, error) {
	for {
		if sw.count > 0 && sw.emitted >= sw.count {
			return nil, ErrDone
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if !sw.deadline.IsZero() {
			if !time.Now().Before(sw.deadline) {
				return nil, ErrTimeout
			}
			reqCtx, cancel = context.WithDeadline(ctx, sw.deadline)
		}

		if sw.live {
			sw.onlyAfter = now()
		}

		update, timedOut, err := sw.raw.Next(reqCtx, sw.onlyAfter, sw.identicalOkay)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			if reqCtx.Err() != nil && ctx.Err() == nil {
				return nil, ErrTimeout
			}
			return nil, err
		}
		if timedOut {
			return nil, ErrTimeout
		}

		sw.onlyAfter = update.Timestamp

		result, err := sw.callback(update)
		if err == ErrSkip {
			continue
		}
		if err != nil {
			return nil, err
		}
		sw.emitted++
		return result, nil
	}
}

// Consume drains the watcher until Count updates have been collected (or
// forever, if Count was never set) or an error other than ErrDone occurs.
func (sw *StateWatcher) Consume(ctx context.Context) ([]any, error) {
	var results []any
	for {
		v, err := sw.Next(ctx)
		if err == ErrDone {
			return results, nil
		}
		if err != nil {
			return results, err
		}
		results = append(results, v)
	}
}
