package wire

import (
	"reflect"
	"testing"
)

func TestMarshalUnmarshalEnvelope(t *testing.T) {
	env := Envelope{
		Cmd:       CmdSetState,
		Namespace: "default",
		ClientID:  NewClientID(),
		Info:      "counter",
		Args:      []any{"inc", int64(1)},
		Kwargs:    map[string]any{"by": int64(2)},
	}

	data, err := Marshal(env)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got Envelope
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got.Cmd != env.Cmd || got.Namespace != env.Namespace || got.ClientID != env.ClientID {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, env)
	}
}

func TestMarshalUnmarshalStateUpdate(t *testing.T) {
	update := StateUpdate{
		Before:      map[string]any{"n": int64(1)},
		After:       map[string]any{"n": int64(2)},
		Timestamp:   1234.5,
		IsIdentical: false,
	}

	data, err := Marshal(update)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got StateUpdate
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Timestamp != update.Timestamp || got.IsIdentical != update.IsIdentical {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, update)
	}
	if !reflect.DeepEqual(got.After["n"], update.After["n"]) {
		t.Errorf("After[n] = %v, want %v", got.After["n"], update.After["n"])
	}
}
