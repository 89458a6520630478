package crdt

import (
	"testing"
)

// fold applies msgs to state in order and returns the new state together
// with every emitted change.
func fold(t *testing.T, typ Type, state State, msgs ...Message) (State, []Change) {
	t.Helper()
	var changes []Change
	for _, msg := range msgs {
		next, err := typ.Reduce(msg, state, func(ch Change) {
			changes = append(changes, ch)
		})
		if err != nil {
			t.Fatalf("%s: reduce %#v: %v", typ.Name(), msg, err)
		}
		state = next
	}
	return state, changes
}

// produce runs a mutator and collects the messages it yields.
func produce(t *testing.T, typ Type, state State, name string, args ...any) []Message {
	t.Helper()
	m, ok := typ.Mutators()[name]
	if !ok {
		t.Fatalf("%s has no mutator %q", typ.Name(), name)
	}
	seq, err := m(state, args...)
	if err != nil {
		t.Fatalf("%s.%s(%v): %v", typ.Name(), name, args, err)
	}
	var msgs []Message
	for msg, err := range seq {
		if err != nil {
			t.Fatalf("%s.%s(%v): %v", typ.Name(), name, args, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// only returns the single message a mutator produced.
func only(t *testing.T, msgs []Message) Message {
	t.Helper()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(msgs))
	}
	return msgs[0]
}

// permutations returns every ordering of msgs.
func permutations(msgs []Message) [][]Message {
	if len(msgs) <= 1 {
		return [][]Message{append([]Message(nil), msgs...)}
	}
	var res [][]Message
	for i := range msgs {
		rest := make([]Message, 0, len(msgs)-1)
		rest = append(rest, msgs[:i]...)
		rest = append(rest, msgs[i+1:]...)
		for _, p := range permutations(rest) {
			res = append(res, append([]Message{msgs[i]}, p...))
		}
	}
	return res
}
