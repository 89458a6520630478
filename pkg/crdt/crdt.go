package crdt

import (
	"context"
	"iter"
)

// State, Message and Value are opaque to the runtime. Each Type documents
// the concrete shapes it produces and accepts.
type (
	State   = any
	Message = any
	Value   = any
)

// Type describes a CRDT algorithm: an initial state, a message merge
// function, a value projection and a set of mutators.
type Type interface {
	// Name is the stable name the type is registered under.
	Name() string

	// First returns the initial state.
	First() State

	// Reduce folds msg into prev and returns the new state. Reduce must not
	// modify prev; emit reports semantic changes in the order they happen.
	Reduce(msg Message, prev State, emit func(Change)) (State, error)

	// ValueOf projects a state to the value it represents.
	ValueOf(state State) Value

	// Mutators returns the named mutators of the type.
	Mutators() map[string]Mutator

	// DecodeMessage parses the JSON wire form of a message.
	DecodeMessage(data []byte) (Message, error)
}

// Mutator turns the current state and call arguments into the messages
// describing the mutation. The state is a snapshot and must not be modified.
type Mutator func(state State, args ...any) (Messages, error)

// Messages is a finite sequence of messages produced by one mutation.
type Messages = iter.Seq2[Message, error]

// Provider produces one message per call and reports whether it was the last.
type Provider func() (msg Message, last bool, err error)

// None is the result of a mutation that produces no message.
func None() Messages {
	return func(yield func(Message, error) bool) {}
}

// One wraps a single message.
func One(msg Message) Messages {
	return func(yield func(Message, error) bool) {
		yield(msg, nil)
	}
}

// FromProvider calls p until it reports the last message or fails.
func FromProvider(p Provider) Messages {
	return func(yield func(Message, error) bool) {
		for {
			msg, last, err := p()
			if !yield(msg, err) || err != nil || last {
				return
			}
		}
	}
}

// Change is a record of one semantic delta, emitted by Reduce and handed to
// change listeners untouched.
type Change struct {
	Op     string `json:"op"`
	Key    string `json:"key,omitempty"`
	Value  any    `json:"value,omitempty"`
	Values []any  `json:"values,omitempty"`
	Tag    string `json:"tag,omitempty"`
	By     int64  `json:"by,omitempty"`
}

// Reference points to a CRDT instance by type name and id. It is only a
// lookup key: the receiving process must have the same type registered.
type Reference struct {
	ID   string `json:"crdt_id"`
	Type string `json:"crdt_type"`
}

func (r Reference) String() string {
	return r.Type + "/" + r.ID
}

// Object is a live CRDT instance that may be embedded in messages. The
// runtime rewrites every Object into its Reference before sending.
type Object interface {
	Ref() Reference
}

// Walker is implemented by messages that carry nested values. Walk returns a
// copy of the message with fn applied to every nested value.
type Walker interface {
	Walk(fn func(any) (any, error)) (Message, error)
}

// AsReference reports whether v is a Reference, either typed or in the
// decoded JSON map form.
func AsReference(v any) (Reference, bool) {
	switch t := v.(type) {
	case Reference:
		return t, true
	case *Reference:
		if t == nil {
			return Reference{}, false
		}
		return *t, true
	case map[string]any:
		if len(t) != 2 {
			return Reference{}, false
		}
		id, okID := t["crdt_id"].(string)
		typ, okType := t["crdt_type"].(string)
		if !okID || !okType {
			return Reference{}, false
		}
		return Reference{ID: id, Type: typ}, true
	}
	return Reference{}, false
}

// Receiver handles one message delivered for a target.
type Receiver func(ctx context.Context, msg Message) error

// MessageHandler delivers messages to every replica of a target eventually,
// including the receiver registered on the sending node.
type MessageHandler interface {
	SendMessageTo(ctx context.Context, target Reference, msg Message) error

	// AddReceiverFor registers the single receiver of target in this process.
	// r may be called before AddReceiverFor returns.
	AddReceiverFor(target Reference, r Receiver) error
}
