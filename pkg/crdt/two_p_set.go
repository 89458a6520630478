package crdt

import (
	"encoding/json"
)

const TwoPSetName = "2p-set"

// TwoPSetState is a pair of grow-only sets: added elements and tombstones.
type TwoPSetState struct {
	Adds       Elements
	Tombstones Elements
}

// TwoPSetMessage routes an element to the adds or tombstones set.
type TwoPSetMessage struct {
	Add    *SetMessage `json:"add,omitempty"`
	Remove *SetMessage `json:"remove,omitempty"`
}

func (m TwoPSetMessage) Walk(fn func(any) (any, error)) (Message, error) {
	var res TwoPSetMessage
	for _, part := range []struct {
		src *SetMessage
		dst **SetMessage
	}{{m.Add, &res.Add}, {m.Remove, &res.Remove}} {
		if part.src == nil {
			continue
		}
		walked, err := part.src.Walk(fn)
		if err != nil {
			return nil, err
		}
		sm := walked.(SetMessage)
		*part.dst = &sm
	}
	return res, nil
}

// TwoPSet is a two-phase set: once an element is removed it stays removed,
// whatever adds arrive later.
type TwoPSet struct{}

func (TwoPSet) Name() string { return TwoPSetName }

func (TwoPSet) First() State {
	var g GSet
	return TwoPSetState{Adds: g.First().(Elements), Tombstones: g.First().(Elements)}
}

func (s TwoPSet) Reduce(msg Message, prev State, emit func(Change)) (State, error) {
	state, ok := prev.(TwoPSetState)
	if !ok {
		return prev, invalidMessage(s.Name(), prev)
	}
	m, ok := msg.(TwoPSetMessage)
	if !ok {
		return prev, invalidMessage(s.Name(), msg)
	}

	var g GSet
	if m.Add != nil {
		adds, err := g.Reduce(*m.Add, state.Adds, emit)
		if err != nil {
			return prev, err
		}
		state.Adds = adds.(Elements)
	}
	if m.Remove != nil {
		tombstones, err := g.Reduce(*m.Remove, state.Tombstones, func(ch Change) {
			emit(Change{Op: "remove", Value: ch.Value})
		})
		if err != nil {
			return prev, err
		}
		state.Tombstones = tombstones.(Elements)
	}
	return state, nil
}

func (TwoPSet) ValueOf(state State) Value {
	s := state.(TwoPSetState)
	live := make(Elements, len(s.Adds))
	for k, v := range s.Adds {
		if _, removed := s.Tombstones[k]; !removed {
			live[k] = v
		}
	}
	return live.sorted()
}

func (TwoPSet) Mutators() map[string]Mutator {
	return map[string]Mutator{
		"add": func(_ State, args ...any) (Messages, error) {
			if err := arity("add", args, 1); err != nil {
				return nil, err
			}
			return One(TwoPSetMessage{Add: &SetMessage{Elem: args[0]}}), nil
		},
		"remove": func(_ State, args ...any) (Messages, error) {
			if err := arity("remove", args, 1); err != nil {
				return nil, err
			}
			return One(TwoPSetMessage{Remove: &SetMessage{Elem: args[0]}}), nil
		},
	}
}

func (TwoPSet) DecodeMessage(data []byte) (Message, error) {
	var m TwoPSetMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
