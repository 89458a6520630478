package crdt

import (
	"encoding/json"
	"maps"
)

const LWWRegisterName = "lww-register"

// LWWEntry is the value currently winning for one key.
type LWWEntry struct {
	Timestamp int64
	Value     any
}

// LWWRegisterState holds the winning entry per key and the greatest
// timestamp seen, used to keep local timestamps ahead of remote ones.
type LWWRegisterState struct {
	Entries map[string]LWWEntry
	Latest  int64
}

type LWWRegisterMessage struct {
	Timestamp int64  `json:"ts"`
	Key       string `json:"key"`
	Value     any    `json:"value"`
}

func (m LWWRegisterMessage) Walk(fn func(any) (any, error)) (Message, error) {
	value, err := fn(m.Value)
	if err != nil {
		return nil, err
	}
	m.Value = value
	return m, nil
}

// wins reports whether the incoming entry replaces the stored one: a greater
// timestamp wins, equal timestamps are broken by the greater encoded value.
func (e LWWEntry) wins(over LWWEntry) bool {
	switch compareInt64(e.Timestamp, over.Timestamp) {
	case Greater:
		return true
	case Lower:
		return false
	}
	return canonicalKey(e.Value) > canonicalKey(over.Value)
}

// LWWRegister maps string keys to last-writer-wins values. Its value is a
// map[string]any.
type LWWRegister struct{}

func (LWWRegister) Name() string { return LWWRegisterName }

func (LWWRegister) First() State {
	return LWWRegisterState{Entries: map[string]LWWEntry{}}
}

func (r LWWRegister) Reduce(msg Message, prev State, emit func(Change)) (State, error) {
	state, ok := prev.(LWWRegisterState)
	if !ok {
		return prev, invalidMessage(r.Name(), prev)
	}
	m, ok := msg.(LWWRegisterMessage)
	if !ok {
		return prev, invalidMessage(r.Name(), msg)
	}

	next := LWWRegisterState{Entries: state.Entries, Latest: max(state.Latest, m.Timestamp)}

	incoming := LWWEntry{Timestamp: m.Timestamp, Value: m.Value}
	stored, exists := state.Entries[m.Key]
	if !exists || incoming.wins(stored) {
		next.Entries = maps.Clone(state.Entries)
		next.Entries[m.Key] = incoming
		emit(Change{Op: "set", Key: m.Key, Value: m.Value})
	}
	return next, nil
}

func (LWWRegister) ValueOf(state State) Value {
	s := state.(LWWRegisterState)
	res := make(map[string]any, len(s.Entries))
	for k, e := range s.Entries {
		res[k] = e.Value
	}
	return res
}

func (LWWRegister) Mutators() map[string]Mutator {
	return map[string]Mutator{
		"set": func(state State, args ...any) (Messages, error) {
			if err := arity("set", args, 2); err != nil {
				return nil, err
			}
			key, err := keyArg(args, 0)
			if err != nil {
				return nil, err
			}
			s := state.(LWWRegisterState)
			return One(LWWRegisterMessage{
				Timestamp: wallClock.After(s.Latest),
				Key:       key,
				Value:     args[1],
			}), nil
		},
	}
}

func (LWWRegister) DecodeMessage(data []byte) (Message, error) {
	var m LWWRegisterMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
