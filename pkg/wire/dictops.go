package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// DeepGet walks a dotted path through nested maps and slices, the way the
// predecessor system used glom paths to reach into arbitrarily nested
// state. A path segment that parses as an integer indexes into a slice;
// anything else is a map key. DeepGet reports ok=false if any segment of
// the path is missing rather than erroring, matching the "spec value" that
// callers can supply as a fallback.
func DeepGet(value any, path string) (any, bool) {
	if path == "" {
		return value, true
	}
	cur := value
	for _, seg := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// DeepSet walks a dotted path through nested maps, creating intermediate
// map[string]any values as needed, and assigns value at the final segment.
// It mirrors glom.assign's "build missing containers" behavior, restricted
// to maps: a path segment that reaches a slice or any other non-map value
// is an error.
func DeepSet(root map[string]any, path string, value any) error {
	segs := strings.Split(path, ".")
	cur := root
	for i, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg]
		if !ok {
			fresh := make(map[string]any)
			cur[seg] = fresh
			cur = fresh
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("wire: deep set: path segment %q at %q is not a map", seg, strings.Join(segs[:i+1], "."))
		}
		cur = m
	}
	cur[segs[len(segs)-1]] = value
	return nil
}

// DeepDelete removes the value at path, reporting whether anything was
// removed.
func DeepDelete(root map[string]any, path string) bool {
	segs := strings.Split(path, ".")
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg]
		if !ok {
			return false
		}
		m, ok := next.(map[string]any)
		if !ok {
			return false
		}
		cur = m
	}
	last := segs[len(segs)-1]
	if _, ok := cur[last]; !ok {
		return false
	}
	delete(cur, last)
	return true
}

// DictMethod names one of the mutating or read-only operations RunDictMethod
// can apply directly to a namespace's top-level state map, standing in for
// the predecessor's getattr(state, method_name)(*args, **kwargs) dispatch
// onto a live dict.
type DictMethod string

const (
	DictMethodGet        DictMethod = "get"
	DictMethodSet        DictMethod = "set"
	DictMethodSetDefault DictMethod = "setdefault"
	DictMethodUpdate     DictMethod = "update"
	DictMethodPop        DictMethod = "pop"
	DictMethodClear      DictMethod = "clear"
	DictMethodKeys       DictMethod = "keys"
	DictMethodValues     DictMethod = "values"
	DictMethodItems      DictMethod = "items"
	DictMethodLen        DictMethod = "len"
	DictMethodContains   DictMethod = "contains"
)

// ApplyDictMethod runs method against state with the given positional args,
// returning its result. state is mutated in place for the mutating methods
// (set, setdefault, update, pop, clear); the caller is responsible for
// treating that mutation as the "after" half of a commit.
func ApplyDictMethod(state map[string]any, method DictMethod, args []any) (any, error) {
	switch method {
	case DictMethodGet:
		key, def, err := keyAndOptional(args)
		if err != nil {
			return nil, err
		}
		if v, ok := state[key]; ok {
			return v, nil
		}
		return def, nil
	case DictMethodSet:
		if len(args) != 2 {
			return nil, fmt.Errorf("wire: set requires (key, value), got %d args", len(args))
		}
		key, err := asKey(args[0])
		if err != nil {
			return nil, err
		}
		state[key] = args[1]
		return nil, nil
	case DictMethodSetDefault:
		if len(args) != 2 {
			return nil, fmt.Errorf("wire: setdefault requires (key, default), got %d args", len(args))
		}
		key, err := asKey(args[0])
		if err != nil {
			return nil, err
		}
		if v, ok := state[key]; ok {
			return v, nil
		}
		state[key] = args[1]
		return args[1], nil
	case DictMethodUpdate:
		if len(args) != 1 {
			return nil, fmt.Errorf("wire: update requires one mapping arg, got %d", len(args))
		}
		other, ok := args[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("wire: update arg must be a map, got %T", args[0])
		}
		for k, v := range other {
			state[k] = v
		}
		return nil, nil
	case DictMethodPop:
		key, def, err := keyAndOptional(args)
		if err != nil {
			return nil, err
		}
		if v, ok := state[key]; ok {
			delete(state, key)
			return v, nil
		}
		if len(args) > 1 {
			return def, nil
		}
		return nil, RemoteErrorf(ErrKindNotFound, "key %q not present", key)
	case DictMethodClear:
		for k := range state {
			delete(state, k)
		}
		return nil, nil
	case DictMethodKeys:
		keys := make([]any, 0, len(state))
		for k := range state {
			keys = append(keys, k)
		}
		return keys, nil
	case DictMethodValues:
		values := make([]any, 0, len(state))
		for _, v := range state {
			values = append(values, v)
		}
		return values, nil
	case DictMethodItems:
		items := make([]any, 0, len(state))
		for k, v := range state {
			items = append(items, []any{k, v})
		}
		return items, nil
	case DictMethodLen:
		return len(state), nil
	case DictMethodContains:
		key, _, err := keyAndOptional(args)
		if err != nil {
			return nil, err
		}
		_, ok := state[key]
		return ok, nil
	default:
		return nil, RemoteErrorf(ErrKindUnknownOp, "unknown dict method %q", method)
	}
}

func asKey(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("wire: expected string key, got %T", v)
	}
	return s, nil
}

func keyAndOptional(args []any) (key string, def any, err error) {
	if len(args) < 1 || len(args) > 2 {
		return "", nil, fmt.Errorf("wire: expected 1 or 2 args, got %d", len(args))
	}
	key, err = asKey(args[0])
	if err != nil {
		return "", nil, err
	}
	if len(args) == 2 {
		def = args[1]
	}
	return key, def, nil
}
