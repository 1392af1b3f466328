package stateserver

import (
	"fmt"

	"github.com/cuemby/meshstate/pkg/wire"
)

// Builtin atomic operation names, registered by RegisterBuiltins. These
// cover the same ground as the predecessor's ready-made atomic helpers, so
// common "fetch, compute, write back" patterns don't need a bespoke
// registered function.
const (
	AtomicKeysName     = "keys"
	AtomicValuesName   = "values"
	AtomicItemsName    = "items"
	AtomicClearName    = "clear"
	AtomicContainsName = "contains"
	AtomicGetName      = "get"
	AtomicSetName      = "set"
	AtomicMergeName    = "merge"
	AtomicCallName     = "call"
	AtomicApplyName    = "apply"
)

// RegisterBuiltins installs the standard library of atomic operations on s.
func RegisterBuiltins(s *Server) {
	s.RegisterAtomic(AtomicKeysName, atomicKeys)
	s.RegisterAtomic(AtomicValuesName, atomicValues)
	s.RegisterAtomic(AtomicItemsName, atomicItems)
	s.RegisterAtomic(AtomicClearName, atomicClear)
	s.RegisterAtomic(AtomicContainsName, atomicContains)
	s.RegisterAtomic(AtomicGetName, atomicGet)
	s.RegisterAtomic(AtomicSetName, atomicSet)
	s.RegisterAtomic(AtomicMergeName, atomicMerge)
	s.RegisterAtomic(AtomicCallName, atomicCall)
	s.RegisterAtomic(AtomicApplyName, atomicApply)
}

func atomicKeys(state map[string]any, _ []any, _ map[string]any) (any, error) {
	return wire.ApplyDictMethod(state, wire.DictMethodKeys, nil)
}

func atomicValues(state map[string]any, _ []any, _ map[string]any) (any, error) {
	return wire.ApplyDictMethod(state, wire.DictMethodValues, nil)
}

func atomicItems(state map[string]any, _ []any, _ map[string]any) (any, error) {
	return wire.ApplyDictMethod(state, wire.DictMethodItems, nil)
}

func atomicClear(state map[string]any, _ []any, _ map[string]any) (any, error) {
	return wire.ApplyDictMethod(state, wire.DictMethodClear, nil)
}

// atomicContains reports whether args[0] (a dotted path) resolves to a
// value in state.
func atomicContains(state map[string]any, args []any, _ map[string]any) (any, error) {
	path, err := pathArg(args, 0)
	if err != nil {
		return nil, err
	}
	_, ok := wire.DeepGet(state, path)
	return ok, nil
}

// atomicGet returns the whole state if called with no arguments, or the
// value at the dotted path args[0].
func atomicGet(state map[string]any, args []any, _ map[string]any) (any, error) {
	if len(args) == 0 {
		return wire.CloneState(state), nil
	}
	path, err := pathArg(args, 0)
	if err != nil {
		return nil, err
	}
	v, ok := wire.DeepGet(state, path)
	if !ok {
		return nil, wire.RemoteErrorf(wire.ErrKindNotFound, "path %q not present", path)
	}
	return v, nil
}

// atomicSet writes args[1] at the dotted path args[0], creating
// intermediate maps as needed.
func atomicSet(state map[string]any, args []any, _ map[string]any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("stateserver: set requires (path, value), got %d args", len(args))
	}
	path, err := pathArg(args, 0)
	if err != nil {
		return nil, err
	}
	if err := wire.DeepSet(state, path, args[1]); err != nil {
		return nil, err
	}
	return nil, nil
}

// atomicMerge shallow-merges every map argument into the top-level state,
// later arguments taking precedence over earlier ones.
func atomicMerge(state map[string]any, args []any, _ map[string]any) (any, error) {
	for i, arg := range args {
		other, ok := arg.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("stateserver: merge arg %d must be a map, got %T", i, arg)
		}
		for k, v := range other {
			state[k] = v
		}
	}
	return nil, nil
}

// atomicCall runs a dict method against the value at a dotted path without
// writing its result back, for read-oriented calls like checking the
// length of a nested collection.
func atomicCall(state map[string]any, args []any, _ map[string]any) (any, error) {
	target, method, methodArgs, err := resolveCallTarget(state, args)
	if err != nil {
		return nil, err
	}
	return wire.ApplyDictMethod(target, method, methodArgs)
}

// atomicApply runs a dict method against the value at a dotted path and
// writes the method's result back to that same path, the way a caller
// would use it to replace a nested counter with its incremented value.
func atomicApply(state map[string]any, args []any, _ map[string]any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("stateserver: apply requires (path, method, ...args), got %d args", len(args))
	}
	path, err := pathArg(args, 0)
	if err != nil {
		return nil, err
	}
	target, method, methodArgs, err := resolveCallTarget(state, args)
	if err != nil {
		return nil, err
	}
	result, err := wire.ApplyDictMethod(target, method, methodArgs)
	if err != nil {
		return nil, err
	}
	if err := wire.DeepSet(state, path, result); err != nil {
		return nil, err
	}
	return result, nil
}

func resolveCallTarget(state map[string]any, args []any) (map[string]any, wire.DictMethod, []any, error) {
	if len(args) < 2 {
		return nil, "", nil, fmt.Errorf("stateserver: call requires (path, method, ...args), got %d args", len(args))
	}
	path, err := pathArg(args, 0)
	if err != nil {
		return nil, "", nil, err
	}
	method, ok := args[1].(string)
	if !ok {
		return nil, "", nil, fmt.Errorf("stateserver: call method must be a string, got %T", args[1])
	}
	v, ok := wire.DeepGet(state, path)
	if !ok {
		return nil, "", nil, wire.RemoteErrorf(wire.ErrKindNotFound, "path %q not present", path)
	}
	target, ok := v.(map[string]any)
	if !ok {
		return nil, "", nil, fmt.Errorf("stateserver: value at %q is not a map, got %T", path, v)
	}
	return target, wire.DictMethod(method), args[2:], nil
}

func pathArg(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("stateserver: missing path argument at position %d", i)
	}
	path, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("stateserver: path argument must be a string, got %T", args[i])
	}
	return path, nil
}
