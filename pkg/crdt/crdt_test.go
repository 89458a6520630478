package crdt

import (
	"errors"
	"reflect"
	"testing"
)

func collect(seq Messages) ([]Message, error) {
	var msgs []Message
	for msg, err := range seq {
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func TestMessageSequences(t *testing.T) {
	errBoom := errors.New("boom")

	counting := func(n int) Provider {
		i := 0
		return func() (Message, bool, error) {
			i++
			return i, i == n, nil
		}
	}
	failing := func() Provider {
		i := 0
		return func() (Message, bool, error) {
			i++
			if i == 2 {
				return nil, false, errBoom
			}
			return i, false, nil
		}
	}

	tests := []struct {
		name    string
		seq     Messages
		want    []Message
		wantErr error
	}{
		{name: "none", seq: None(), want: nil},
		{name: "one", seq: One("x"), want: []Message{"x"}},
		{name: "provider stops at last", seq: FromProvider(counting(3)), want: []Message{1, 2, 3}},
		{name: "provider single", seq: FromProvider(counting(1)), want: []Message{1}},
		{name: "provider error", seq: FromProvider(failing()), want: []Message{1}, wantErr: errBoom},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := collect(tc.seq)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("messages = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFromProvider_StopsWhenConsumerStops(t *testing.T) {
	calls := 0
	seq := FromProvider(func() (Message, bool, error) {
		calls++
		return calls, false, nil
	})
	for msg := range seq {
		if msg == 2 {
			break
		}
	}
	if calls != 2 {
		t.Errorf("provider called %d times, want 2", calls)
	}
}

type fakeObject struct{ ref Reference }

func (o fakeObject) Ref() Reference { return o.ref }

func TestAsReference(t *testing.T) {
	ref := Reference{ID: "a", Type: GSetName}

	tests := []struct {
		name string
		v    any
		want bool
	}{
		{name: "typed", v: ref, want: true},
		{name: "pointer", v: &ref, want: true},
		{name: "nil pointer", v: (*Reference)(nil), want: false},
		{name: "decoded map", v: map[string]any{"crdt_id": "a", "crdt_type": GSetName}, want: true},
		{name: "map with extra keys", v: map[string]any{"crdt_id": "a", "crdt_type": GSetName, "x": 1}, want: false},
		{name: "map with wrong types", v: map[string]any{"crdt_id": 1, "crdt_type": GSetName}, want: false},
		{name: "string", v: "g-set/a", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := AsReference(tc.v)
			if ok != tc.want {
				t.Fatalf("ok = %v, want %v", ok, tc.want)
			}
			if ok && got != ref {
				t.Errorf("reference = %v, want %v", got, ref)
			}
		})
	}
}

func TestCanonicalKey(t *testing.T) {
	ref := Reference{ID: "a", Type: ORSetName}

	if canonicalKey(fakeObject{ref: ref}) != canonicalKey(ref) {
		t.Errorf("object must encode as its reference")
	}
	if canonicalKey(map[string]any{"crdt_id": "a", "crdt_type": ORSetName}) != canonicalKey(ref) {
		t.Errorf("decoded reference must encode as the typed one")
	}
	if canonicalKey(map[string]any{"b": 1, "a": 2}) != canonicalKey(map[string]any{"a": 2, "b": 1}) {
		t.Errorf("map key order must not matter")
	}
	if canonicalKey(1) == canonicalKey("1") {
		t.Errorf("number and string must differ")
	}
	if ref.String() != "or-set/a" {
		t.Errorf("String() = %q", ref.String())
	}
}
