package wire

// DeepCopy returns a structural copy of v, recursing through maps and
// slices. It exists so the state server can snapshot a namespace's state
// before running a mutation and restore that snapshot verbatim if the
// mutation panics or returns an error, without the mutation's in-place
// edits bleeding into the rolled-back copy.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = DeepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = DeepCopy(val)
		}
		return out
	default:
		return v
	}
}

// CloneState is a typed convenience wrapper around DeepCopy for the
// top-level state map of a namespace.
func CloneState(state map[string]any) map[string]any {
	return DeepCopy(state).(map[string]any)
}

// StatesEqual reports whether two state snapshots are structurally
// identical, the way the predecessor compared before/after via Python's
// built-in dict equality to populate StateUpdate.IsIdentical.
func StatesEqual(a, b map[string]any) bool {
	return valuesEqual(a, b)
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !valuesEqual(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i, v := range av {
			if !valuesEqual(v, bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
