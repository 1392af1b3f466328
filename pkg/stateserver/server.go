package stateserver

import (
	"context"
	"os"
	"time"

	"github.com/cuemby/meshstate/pkg/log"
	"github.com/cuemby/meshstate/pkg/wire"
)

// UpdateSink receives one StateUpdate per successful commit. The watcher
// service implements this to bridge committed mutations into its fanout;
// stateserver never imports watcher directly so the two packages can be
// wired together however cmd/meshstate sees fit.
type UpdateSink interface {
	Publish(namespace string, origin wire.ClientID, update wire.StateUpdate)
}

// AtomicFunc is a registered, server-side operation run against a
// namespace's live state map with exclusive access for its duration. It
// stands in for the predecessor's pickled-closure payload: instead of
// shipping code across the wire, callers ship a name and arguments, and
// the server looks the name up in its registry.
type AtomicFunc func(state map[string]any, args []any, kwargs map[string]any) (any, error)

type request struct {
	ctx    context.Context
	env    wire.Envelope
	respCh chan wire.Reply
}

// Server is meshstate's state server: every namespace's state, and the
// single goroutine that is the only thing ever allowed to touch it.
type Server struct {
	reqCh chan request

	namespaces  map[string]map[string]any
	atomicFuncs map[string]AtomicFunc
	inAtomic    bool

	sink    UpdateSink
	meta    wire.ServerMeta
	startAt time.Time
}

// NewServer builds a Server that publishes committed updates to sink. sink
// may be nil, in which case commits still apply but nothing is notified.
func NewServer(sink UpdateSink, meta wire.ServerMeta) *Server {
	return &Server{
		reqCh:       make(chan request),
		namespaces:  make(map[string]map[string]any),
		atomicFuncs: make(map[string]AtomicFunc),
		sink:        sink,
		meta:        meta,
		startAt:     time.Now(),
	}
}

// RegisterAtomic adds fn to the server's named-operation registry under
// name, overwriting any previous registration of the same name. Call this
// before Run starts serving requests.
func (s *Server) RegisterAtomic(name string, fn AtomicFunc) {
	s.atomicFuncs[name] = fn
}

// Run processes requests until ctx is canceled. It is the command loop:
// the only goroutine that ever reads or writes s.namespaces.
func (s *Server) Run(ctx context.Context) {
	log.Info("state server command loop starting")
	for {
		select {
		case <-ctx.Done():
			log.Info("state server command loop stopping")
			return
		case req := <-s.reqCh:
			req.respCh <- s.dispatch(req.ctx, req.env)
		}
	}
}

// Execute submits env to the command loop and waits for its reply,
// respecting ctx's deadline on both the submit and the wait.
func (s *Server) Execute(ctx context.Context, env wire.Envelope) wire.Reply {
	respCh := make(chan wire.Reply, 1)
	select {
	case s.reqCh <- request{ctx: ctx, env: env, respCh: respCh}:
	case <-ctx.Done():
		return wire.ErrReply(ctx.Err())
	}
	select {
	case reply := <-respCh:
		return reply
	case <-ctx.Done():
		return wire.ErrReply(ctx.Err())
	}
}

func (s *Server) dispatch(ctx context.Context, env wire.Envelope) wire.Reply {
	switch env.Cmd {
	case wire.CmdPing:
		return wire.OKReply(pingResult{Echo: env.Info, PID: os.Getpid()})
	case wire.CmdGetServerMeta:
		return wire.OKReply(s.meta)
	case wire.CmdTime:
		return wire.OKReply(nowFunc())
	}

	// Every remaining command addresses a namespace, and the empty string
	// is reserved rather than an alias for DefaultNamespace.
	if env.Namespace == "" {
		return wire.ErrReply(wire.RemoteErrorf(wire.ErrKindBadRequest, "namespace must not be empty"))
	}

	switch env.Cmd {
	case wire.CmdGetState:
		return wire.OKReply(wire.CloneState(s.namespace(env.Namespace)))
	case wire.CmdSetState:
		return s.handleSetState(env)
	case wire.CmdRunDictMethod:
		return s.handleRunDictMethod(env)
	case wire.CmdRunFnAtomically:
		return s.handleRunFnAtomically(env)
	default:
		return wire.ErrReply(wire.RemoteErrorf(wire.ErrKindUnknownOp, "unknown command %d", env.Cmd))
	}
}

// pingResult is the wire payload for a Ping reply: the predecessor echoed
// back whatever the caller sent plus its own process id, which is enough
// for a client to confirm it is talking to a live, distinct server process.
type pingResult struct {
	Echo any `cbor:"echo"`
	PID  int `cbor:"pid"`
}

// namespace returns name's state map, creating it on first use. Callers
// reach this only through dispatch, which has already rejected an empty
// name, so there's no implicit default to coerce into here.
func (s *Server) namespace(name string) map[string]any {
	ns, ok := s.namespaces[name]
	if !ok {
		ns = make(map[string]any)
		s.namespaces[name] = ns
	}
	return ns
}

// nowFunc is overridden in tests so StateUpdate timestamps are
// deterministic.
var nowFunc = func() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
