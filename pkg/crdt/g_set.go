package crdt

import (
	"encoding/json"
)

const GSetName = "g-set"

// SetMessage carries one element of a set operation.
type SetMessage struct {
	Elem any `json:"elem"`
}

func (m SetMessage) Walk(fn func(any) (any, error)) (Message, error) {
	elem, err := fn(m.Elem)
	if err != nil {
		return nil, err
	}
	return SetMessage{Elem: elem}, nil
}

// GSet is a grow-only set. The state is an Elements map, the value is the
// sorted slice of elements.
type GSet struct{}

func (GSet) Name() string { return GSetName }

func (GSet) First() State { return Elements{} }

// Reduce emits "add" even when the element is already present.
func (s GSet) Reduce(msg Message, prev State, emit func(Change)) (State, error) {
	state, ok := prev.(Elements)
	if !ok {
		return prev, invalidMessage(s.Name(), prev)
	}
	m, ok := msg.(SetMessage)
	if !ok {
		return prev, invalidMessage(s.Name(), msg)
	}

	emit(Change{Op: "add", Value: m.Elem})

	key := canonicalKey(m.Elem)
	if _, exists := state[key]; exists {
		return state, nil
	}
	next := state.clone()
	next[key] = m.Elem
	return next, nil
}

func (GSet) ValueOf(state State) Value {
	return state.(Elements).sorted()
}

func (GSet) Mutators() map[string]Mutator {
	return map[string]Mutator{
		"add": func(_ State, args ...any) (Messages, error) {
			if err := arity("add", args, 1); err != nil {
				return nil, err
			}
			return One(SetMessage{Elem: args[0]}), nil
		},
	}
}

func (GSet) DecodeMessage(data []byte) (Message, error) {
	var m SetMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
