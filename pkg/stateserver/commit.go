package stateserver

import (
	"fmt"

	"github.com/cuemby/meshstate/pkg/metrics"
	"github.com/cuemby/meshstate/pkg/wire"
)

// mutateFunc transforms a namespace's current state into its next state,
// returning a caller-facing result. Returning a non-nil error, or
// panicking, aborts the commit: the namespace is left exactly as it was
// before mutateFunc ran.
type mutateFunc func(current map[string]any) (next map[string]any, result any, err error)

// commit runs fn against namespace's current state under the snapshot
// that gives it the deep-copy-before-mutate, rollback-on-failure guarantee
// every state mutation needs, and publishes exactly one StateUpdate per
// successful commit.
func (s *Server) commit(namespace string, origin wire.ClientID, fn mutateFunc) (any, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CommitDuration)

	current := s.namespace(namespace)
	before := wire.CloneState(current)

	next, result, err := s.safeMutate(current, fn)
	if err != nil {
		s.namespaces[namespace] = before
		metrics.CommitsTotal.WithLabelValues(namespace, "error").Inc()
		return nil, err
	}

	s.namespaces[namespace] = next
	metrics.CommitsTotal.WithLabelValues(namespace, "ok").Inc()
	after := wire.CloneState(next)
	update := wire.StateUpdate{
		Before:      before,
		After:       after,
		Timestamp:   nowFunc(),
		IsIdentical: wire.StatesEqual(before, after),
	}
	if s.sink != nil {
		s.sink.Publish(namespace, origin, update)
	}
	return result, nil
}

func (s *Server) safeMutate(current map[string]any, fn mutateFunc) (next map[string]any, result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, result, err = nil, nil, fmt.Errorf("stateserver: mutation panicked: %v", r)
		}
	}()
	return fn(current)
}

func (s *Server) handleSetState(env wire.Envelope) wire.Reply {
	value, ok := env.Info.(map[string]any)
	if !ok {
		return wire.ErrReply(wire.RemoteErrorf(wire.ErrKindBadRequest, "set_state requires a map, got %T", env.Info))
	}
	_, err := s.commit(env.Namespace, env.ClientID, func(current map[string]any) (map[string]any, any, error) {
		return wire.CloneState(value), nil, nil
	})
	if err != nil {
		return wire.ErrReply(err)
	}
	return wire.OKReply(nil)
}

func (s *Server) handleRunDictMethod(env wire.Envelope) wire.Reply {
	name, ok := env.Info.(string)
	if !ok {
		return wire.ErrReply(wire.RemoteErrorf(wire.ErrKindBadRequest, "run_dict_method requires a method name, got %T", env.Info))
	}
	result, err := s.commit(env.Namespace, env.ClientID, func(current map[string]any) (map[string]any, any, error) {
		result, err := wire.ApplyDictMethod(current, wire.DictMethod(name), env.Args)
		return current, result, err
	})
	if err != nil {
		return wire.ErrReply(err)
	}
	return wire.OKReply(result)
}

func (s *Server) handleRunFnAtomically(env wire.Envelope) wire.Reply {
	name, ok := env.Info.(string)
	if !ok {
		return wire.ErrReply(wire.RemoteErrorf(wire.ErrKindBadRequest, "run_fn_atomically requires an operation name, got %T", env.Info))
	}

	if s.inAtomic {
		return wire.ErrReply(wire.RemoteErrorf(wire.ErrKindNested, "atomic operation %q attempted to call another atomic operation", name))
	}

	fn, ok := s.atomicFuncs[name]
	if !ok {
		return wire.ErrReply(wire.RemoteErrorf(wire.ErrKindUnknownOp, "no atomic operation registered as %q", name))
	}

	result, err := s.commit(env.Namespace, env.ClientID, func(current map[string]any) (map[string]any, any, error) {
		s.inAtomic = true
		result, err := fn(current, env.Args, env.Kwargs)
		s.inAtomic = false
		return current, result, err
	})
	if err != nil {
		return wire.ErrReply(err)
	}
	return wire.OKReply(result)
}
