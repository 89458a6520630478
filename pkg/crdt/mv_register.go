package crdt

import (
	"encoding/json"
	"maps"

	"github.com/google/uuid"
)

const MVRegisterName = "mv-register"

// MVEntry is one sibling value with the clock it was written at.
type MVEntry struct {
	Clock VClock
	Value any
}

// MVRegisterState carries the replica id minted by First and the sibling
// entries of every key.
type MVRegisterState struct {
	Replica string
	Entries map[string][]MVEntry
}

type MVRegisterMessage struct {
	Clock VClock `json:"clock"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (m MVRegisterMessage) Walk(fn func(any) (any, error)) (Message, error) {
	value, err := fn(m.Value)
	if err != nil {
		return nil, err
	}
	m.Value = value
	return m, nil
}

// MVRegister is a multi-value register. Concurrent writes to a key are all
// kept; a write that causally follows them replaces them. Its value is a
// map[string][]any of siblings ordered by their encoding.
type MVRegister struct{}

func (MVRegister) Name() string { return MVRegisterName }

func (MVRegister) First() State {
	return MVRegisterState{
		Replica: uuid.NewString(),
		Entries: map[string][]MVEntry{},
	}
}

func (r MVRegister) Reduce(msg Message, prev State, emit func(Change)) (State, error) {
	state, ok := prev.(MVRegisterState)
	if !ok {
		return prev, invalidMessage(r.Name(), prev)
	}
	m, ok := msg.(MVRegisterMessage)
	if !ok {
		return prev, invalidMessage(r.Name(), msg)
	}

	existing := state.Entries[m.Key]
	survivors := make([]MVEntry, 0, len(existing)+1)
	addable := true
	for _, e := range existing {
		switch e.Clock.Compare(m.Clock) {
		case Before:
			// dominated by the incoming write
			continue
		case After:
			addable = false
		case Same:
			if canonicalKey(e.Value) == canonicalKey(m.Value) {
				addable = false
			}
		}
		survivors = append(survivors, e)
	}
	if !addable && len(survivors) == len(existing) {
		return state, nil
	}
	if addable {
		survivors = append(survivors, MVEntry{Clock: m.Clock.Clone(), Value: m.Value})
	}

	next := MVRegisterState{Replica: state.Replica, Entries: maps.Clone(state.Entries)}
	next.Entries[m.Key] = survivors
	emit(Change{Op: "set", Key: m.Key, Values: siblingValues(survivors)})
	return next, nil
}

func siblingValues(entries []MVEntry) []any {
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		values = append(values, e.Value)
	}
	return sortValues(values)
}

func (MVRegister) ValueOf(state State) Value {
	s := state.(MVRegisterState)
	res := make(map[string][]any, len(s.Entries))
	for k, entries := range s.Entries {
		res[k] = siblingValues(entries)
	}
	return res
}

func (MVRegister) Mutators() map[string]Mutator {
	return map[string]Mutator{
		// set writes at a clock that follows every sibling known for the key.
		"set": func(state State, args ...any) (Messages, error) {
			if err := arity("set", args, 2); err != nil {
				return nil, err
			}
			key, err := keyArg(args, 0)
			if err != nil {
				return nil, err
			}
			s := state.(MVRegisterState)
			clock := VClock{}
			for _, e := range s.Entries[key] {
				clock = clock.Merge(e.Clock)
			}
			return One(MVRegisterMessage{
				Clock: clock.Increment(s.Replica),
				Key:   key,
				Value: args[1],
			}), nil
		},
	}
}

func (MVRegister) DecodeMessage(data []byte) (Message, error) {
	var m MVRegisterMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
