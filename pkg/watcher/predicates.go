package watcher

import (
	"reflect"

	"github.com/cuemby/meshstate/pkg/wire"
)

// WhenChange yields the after-state whenever any of keys differs between
// before and after. With no keys, it yields on any change at all. With
// exclude set, the sense is inverted: it yields when something *other
// than* the listed keys changed.
func WhenChange(keys []string, exclude bool) Callback {
	return func(u wire.StateUpdate) (any, error) {
		var changed bool
		if len(keys) == 0 {
			changed = !wire.StatesEqual(u.Before, u.After)
		} else {
			relevant := false
			for _, k := range keys {
				bv, bok := u.Before[k]
				av, aok := u.After[k]
				if bok != aok || !valuesEqual(bv, av) {
					relevant = true
					break
				}
			}
			changed = relevant
			if exclude {
				changed = !wire.StatesEqual(withoutKeys(u.Before, keys), withoutKeys(u.After, keys))
			}
		}
		if !changed {
			return nil, ErrSkip
		}
		return u.After, nil
	}
}

// When yields the after-state whenever test reports true for it.
func When(test func(state map[string]any) (bool, error)) Callback {
	return func(u wire.StateUpdate) (any, error) {
		ok, err := test(u.After)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrSkip
		}
		return u.After, nil
	}
}

// WhenEqual yields the after-state once the value at path equals want.
func WhenEqual(path string, want any) Callback {
	return When(func(state map[string]any) (bool, error) {
		v, ok := wire.DeepGet(state, path)
		return ok && valuesEqual(v, want), nil
	})
}

// WhenNotEqual yields the after-state once the value at path differs from
// avoid (including when the path is entirely absent).
func WhenNotEqual(path string, avoid any) Callback {
	return When(func(state map[string]any) (bool, error) {
		v, ok := wire.DeepGet(state, path)
		return !ok || !valuesEqual(v, avoid), nil
	})
}

// WhenTruthy yields the after-state once the value at path is truthy.
func WhenTruthy(path string) Callback {
	return When(func(state map[string]any) (bool, error) {
		v, ok := wire.DeepGet(state, path)
		return ok && isTruthy(v), nil
	})
}

// WhenFalsy yields the after-state once the value at path is absent or
// falsy.
func WhenFalsy(path string) Callback {
	return When(func(state map[string]any) (bool, error) {
		v, ok := wire.DeepGet(state, path)
		return !ok || !isTruthy(v), nil
	})
}

// WhenNone yields the after-state once the value at path is absent or nil.
func WhenNone(path string) Callback {
	return When(func(state map[string]any) (bool, error) {
		v, ok := wire.DeepGet(state, path)
		return !ok || v == nil, nil
	})
}

// WhenNotNone yields the after-state once the value at path is present and
// non-nil.
func WhenNotNone(path string) Callback {
	return When(func(state map[string]any) (bool, error) {
		v, ok := wire.DeepGet(state, path)
		return ok && v != nil, nil
	})
}

// WhenAvailable yields the after-state as soon as path resolves to
// anything at all.
func WhenAvailable(path string) Callback {
	return When(func(state map[string]any) (bool, error) {
		_, ok := wire.DeepGet(state, path)
		return ok, nil
	})
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) != 0
	case map[string]any:
		return len(t) != 0
	default:
		return true
	}
}

func withoutKeys(state map[string]any, keys []string) map[string]any {
	excluded := make(map[string]bool, len(keys))
	for _, k := range keys {
		excluded[k] = true
	}
	out := make(map[string]any, len(state))
	for k, v := range state {
		if !excluded[k] {
			out[k] = v
		}
	}
	return out
}
