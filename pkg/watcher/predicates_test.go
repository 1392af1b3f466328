package watcher

import (
	"testing"

	"github.com/cuemby/meshstate/pkg/wire"
)

func TestWhenChangeNoKeys(t *testing.T) {
	cb := WhenChange(nil, false)
	_, err := cb(wire.StateUpdate{Before: map[string]any{"a": 1}, After: map[string]any{"a": 1}})
	if err != ErrSkip {
		t.Errorf("WhenChange on an unchanged state should skip, got err=%v", err)
	}

	v, err := cb(wire.StateUpdate{Before: map[string]any{"a": 1}, After: map[string]any{"a": 2}})
	if err != nil {
		t.Fatalf("WhenChange on a changed state errored: %v", err)
	}
	if v.(map[string]any)["a"] != 2 {
		t.Errorf("WhenChange should yield the after state")
	}
}

func TestWhenChangeSpecificKeys(t *testing.T) {
	cb := WhenChange([]string{"a"}, false)
	_, err := cb(wire.StateUpdate{
		Before: map[string]any{"a": 1, "b": 1},
		After:  map[string]any{"a": 1, "b": 2},
	})
	if err != ErrSkip {
		t.Error("WhenChange([a]) should skip when only b changed")
	}

	_, err = cb(wire.StateUpdate{
		Before: map[string]any{"a": 1, "b": 1},
		After:  map[string]any{"a": 2, "b": 1},
	})
	if err != nil {
		t.Errorf("WhenChange([a]) should fire when a changed, got err=%v", err)
	}
}

func TestWhenEqual(t *testing.T) {
	cb := WhenEqual("status", "ready")
	_, err := cb(wire.StateUpdate{After: map[string]any{"status": "pending"}})
	if err != ErrSkip {
		t.Error("WhenEqual should skip when the value doesn't match")
	}
	_, err = cb(wire.StateUpdate{After: map[string]any{"status": "ready"}})
	if err != nil {
		t.Errorf("WhenEqual should fire when the value matches, got err=%v", err)
	}
}

func TestWhenTruthyFalsy(t *testing.T) {
	truthy := WhenTruthy("ok")
	_, err := truthy(wire.StateUpdate{After: map[string]any{"ok": false}})
	if err != ErrSkip {
		t.Error("WhenTruthy should skip on a falsy value")
	}
	_, err = truthy(wire.StateUpdate{After: map[string]any{"ok": true}})
	if err != nil {
		t.Errorf("WhenTruthy should fire on a truthy value, got err=%v", err)
	}

	falsy := WhenFalsy("ok")
	_, err = falsy(wire.StateUpdate{After: map[string]any{"ok": true}})
	if err != ErrSkip {
		t.Error("WhenFalsy should skip on a truthy value")
	}
}

func TestWhenNoneNotNoneAvailable(t *testing.T) {
	if _, err := WhenNone("k")(wire.StateUpdate{After: map[string]any{}}); err != nil {
		t.Errorf("WhenNone should fire when the key is absent, got err=%v", err)
	}
	if _, err := WhenNotNone("k")(wire.StateUpdate{After: map[string]any{}}); err != ErrSkip {
		t.Error("WhenNotNone should skip when the key is absent")
	}
	if _, err := WhenAvailable("k")(wire.StateUpdate{After: map[string]any{"k": nil}}); err != nil {
		t.Errorf("WhenAvailable should fire once the key exists, even if nil, got err=%v", err)
	}
}
