package crdt

import (
	"encoding/json"
	"fmt"
)

const GCounterName = "g-counter"

// GCounter is a grow-only counter. State and messages are int64.
//
// The merge is additive and not idempotent: the message handler must deliver
// every increment exactly once to every replica.
type GCounter struct{}

func (GCounter) Name() string { return GCounterName }

func (GCounter) First() State { return int64(0) }

func (c GCounter) Reduce(msg Message, prev State, emit func(Change)) (State, error) {
	current, ok := prev.(int64)
	if !ok {
		return prev, fmt.Errorf("%w: g-counter state %T", ErrInvalidMessage, prev)
	}
	by, ok := asInt64(msg)
	if !ok || by < 0 {
		return prev, invalidMessage(c.Name(), msg)
	}
	emit(Change{Op: "increment", By: by})
	return current + by, nil
}

func (GCounter) ValueOf(state State) Value {
	return state.(int64)
}

func (GCounter) Mutators() map[string]Mutator {
	return map[string]Mutator{
		"increment": func(_ State, args ...any) (Messages, error) {
			if err := arity("increment", args, 0); err != nil {
				return nil, err
			}
			return One(int64(1)), nil
		},
	}
}

func (GCounter) DecodeMessage(data []byte) (Message, error) {
	var by int64
	if err := json.Unmarshal(data, &by); err != nil {
		return nil, err
	}
	return by, nil
}
