package crdt

import (
	"encoding/json"
	"maps"
)

const LWWSetName = "lww-set"

// LWWSetEntry records the latest add and remove timestamps of an element.
type LWWSetEntry struct {
	Elem    any
	Added   int64
	Removed int64
}

// Present reports whether the latest add is newer than the latest remove.
// Removes win ties.
func (e LWWSetEntry) Present() bool {
	return e.Added > e.Removed
}

type LWWSetState struct {
	Entries map[string]LWWSetEntry
	Latest  int64
}

type LWWSetMessage struct {
	Op        string `json:"op"`
	Elem      any    `json:"elem"`
	Timestamp int64  `json:"ts"`
}

func (m LWWSetMessage) Walk(fn func(any) (any, error)) (Message, error) {
	elem, err := fn(m.Elem)
	if err != nil {
		return nil, err
	}
	m.Elem = elem
	return m, nil
}

// LWWSet is a last-writer-wins element set: an element can be removed and
// added again, the operation with the greater timestamp decides.
type LWWSet struct{}

func (LWWSet) Name() string { return LWWSetName }

func (LWWSet) First() State {
	return LWWSetState{Entries: map[string]LWWSetEntry{}}
}

func (s LWWSet) Reduce(msg Message, prev State, emit func(Change)) (State, error) {
	state, ok := prev.(LWWSetState)
	if !ok {
		return prev, invalidMessage(s.Name(), prev)
	}
	m, ok := msg.(LWWSetMessage)
	if !ok {
		return prev, invalidMessage(s.Name(), msg)
	}

	key := canonicalKey(m.Elem)
	entry, exists := state.Entries[key]
	if !exists {
		entry = LWWSetEntry{Elem: m.Elem}
	}
	updated := entry
	switch m.Op {
	case "add":
		updated.Added = max(entry.Added, m.Timestamp)
	case "remove":
		updated.Removed = max(entry.Removed, m.Timestamp)
	default:
		return prev, invalidMessage(s.Name(), msg)
	}

	next := LWWSetState{Entries: state.Entries, Latest: max(state.Latest, m.Timestamp)}
	if exists && updated.Added == entry.Added && updated.Removed == entry.Removed {
		return next, nil
	}
	next.Entries = maps.Clone(state.Entries)
	next.Entries[key] = updated
	if updated.Present() != (exists && entry.Present()) {
		op := "add"
		if !updated.Present() {
			op = "remove"
		}
		emit(Change{Op: op, Value: m.Elem})
	}
	return next, nil
}

func (LWWSet) ValueOf(state State) Value {
	s := state.(LWWSetState)
	present := make(Elements, len(s.Entries))
	for key, e := range s.Entries {
		if e.Present() {
			present[key] = e.Elem
		}
	}
	return present.sorted()
}

func (LWWSet) Mutators() map[string]Mutator {
	stamped := func(op string) Mutator {
		return func(state State, args ...any) (Messages, error) {
			if err := arity(op, args, 1); err != nil {
				return nil, err
			}
			s := state.(LWWSetState)
			return One(LWWSetMessage{Op: op, Elem: args[0], Timestamp: wallClock.After(s.Latest)}), nil
		}
	}
	return map[string]Mutator{
		"add":    stamped("add"),
		"remove": stamped("remove"),
	}
}

func (LWWSet) DecodeMessage(data []byte) (Message, error) {
	var m LWWSetMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
