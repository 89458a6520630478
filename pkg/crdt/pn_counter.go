package crdt

import (
	"encoding/json"
)

const PNCounterName = "pn-counter"

// PNCounterState holds the two grow-only channels.
type PNCounterState struct {
	Inc int64
	Dec int64
}

// PNCounterMessage routes an amount to one channel. A zero field leaves its
// channel untouched.
type PNCounterMessage struct {
	Inc int64 `json:"inc,omitempty"`
	Dec int64 `json:"dec,omitempty"`
}

// PNCounter — счётчик с инкрементом и декрементом поверх двух GCounter.
// Как и GCounter, требует доставки каждого сообщения ровно один раз.
type PNCounter struct{}

func (PNCounter) Name() string { return PNCounterName }

func (PNCounter) First() State {
	return PNCounterState{Inc: GCounter{}.First().(int64), Dec: GCounter{}.First().(int64)}
}

func (c PNCounter) Reduce(msg Message, prev State, emit func(Change)) (State, error) {
	state, ok := prev.(PNCounterState)
	if !ok {
		return prev, invalidMessage(c.Name(), prev)
	}
	m, ok := msg.(PNCounterMessage)
	if !ok {
		return prev, invalidMessage(c.Name(), msg)
	}

	var g GCounter
	if m.Inc != 0 {
		inc, err := g.Reduce(m.Inc, state.Inc, emit)
		if err != nil {
			return prev, err
		}
		state.Inc = inc.(int64)
	}
	if m.Dec != 0 {
		dec, err := g.Reduce(m.Dec, state.Dec, func(ch Change) {
			emit(Change{Op: "decrement", By: ch.By})
		})
		if err != nil {
			return prev, err
		}
		state.Dec = dec.(int64)
	}
	return state, nil
}

func (PNCounter) ValueOf(state State) Value {
	s := state.(PNCounterState)
	return s.Inc - s.Dec
}

func (PNCounter) Mutators() map[string]Mutator {
	increment := GCounter{}.Mutators()["increment"]
	channel := func(route func(int64) PNCounterMessage) Mutator {
		return func(state State, args ...any) (Messages, error) {
			msgs, err := increment(state, args...)
			if err != nil {
				return nil, err
			}
			return func(yield func(Message, error) bool) {
				for msg, err := range msgs {
					if err != nil {
						yield(nil, err)
						return
					}
					if !yield(route(msg.(int64)), nil) {
						return
					}
				}
			}, nil
		}
	}
	return map[string]Mutator{
		"increment": channel(func(by int64) PNCounterMessage { return PNCounterMessage{Inc: by} }),
		"decrement": channel(func(by int64) PNCounterMessage { return PNCounterMessage{Dec: by} }),
	}
}

func (PNCounter) DecodeMessage(data []byte) (Message, error) {
	var m PNCounterMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
