package runtime

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"

	"opcrdt/pkg/crdt"

	"github.com/pkg/errors"
)

// Instance is a live CRDT. Its state changes only through messages delivered
// by the message handler, one at a time.
type Instance struct {
	rt       *Runtime
	typeName string
	ref      crdt.Reference
	typ      crdt.Type
	mutators map[string]crdt.Mutator

	// registration is one of unregistered, registering or registered.
	registration atomic.Int32

	// deliverMu serializes receive: resolution, reduce and notification.
	deliverMu sync.Mutex

	mu    sync.RWMutex
	state crdt.State

	listeners listeners

	// nestedMu guards nested and containers: the instances this one has
	// resolved from its messages, and the instances that resolved this one.
	nestedMu   sync.Mutex
	nested     map[string]struct{}
	containers []*Instance
}

func newInstance(rt *Runtime, id string, typ crdt.Type, mutators map[string]crdt.Mutator) *Instance {
	return &Instance{
		rt:       rt,
		typeName: typ.Name(),
		ref:      crdt.Reference{ID: id, Type: typ.Name()},
		typ:      typ,
		mutators: mutators,
		state:    typ.First(),
		nested:   make(map[string]struct{}),
	}
}

func (i *Instance) ID() string {
	return i.ref.ID
}

func (i *Instance) TypeName() string {
	return i.typeName
}

// Ref implements crdt.Object.
func (i *Instance) Ref() crdt.Reference {
	if i == nil {
		return crdt.Reference{}
	}
	return i.ref
}

// Value projects the current state. It is eventually consistent with the
// other replicas; store the instance, not its value, inside other CRDTs.
func (i *Instance) Value() crdt.Value {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.typ.ValueOf(i.state)
}

// State returns the current state. It must be treated as read-only.
func (i *Instance) State() crdt.State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Mutators returns the mutator names in sorted order.
func (i *Instance) Mutators() []string {
	names := make([]string, 0, len(i.mutators))
	for name := range i.mutators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON encodes the instance as its Reference.
func (i *Instance) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Ref())
}

// OnChange registers fn for every change this instance emits.
func (i *Instance) OnChange(fn func(crdt.Change)) {
	i.listeners.onChange(fn)
}

// OnDeepChange registers fn for changes of instances nested, at any depth,
// inside this one.
func (i *Instance) OnDeepChange(fn func()) {
	i.listeners.onDeepChange(fn)
}

// Mutate runs the named mutator against the current state and submits the
// produced messages to the message handler in order. It returns once every
// message is submitted; the local state is updated when the handler delivers
// them back.
func (i *Instance) Mutate(ctx context.Context, name string, args ...any) error {
	mutator, ok := i.mutators[name]
	if !ok {
		return errors.Wrapf(crdt.ErrUnknownMutator, "%s.%s", i.typeName, name)
	}

	seq, err := mutator(i.State(), args...)
	if err != nil {
		return errors.Wrapf(err, "%s.%s", i.typeName, name)
	}

	// Collect the whole sequence before sending anything.
	msgs, err := drain(ctx, seq)
	if err != nil {
		return errors.Wrapf(err, "%s.%s", i.typeName, name)
	}

	wire := make([]crdt.Message, len(msgs))
	for n, msg := range msgs {
		if wire[n], err = rewrite(msg, toReferences); err != nil {
			return errors.Wrapf(err, "%s.%s: serialize references", i.typeName, name)
		}
	}

	for _, msg := range wire {
		if err := i.rt.handler.SendMessageTo(ctx, i.ref, msg); err != nil {
			return errors.Wrapf(err, "send to %s", i.ref)
		}
		i.rt.metrics.sent(i.typeName)
	}
	return nil
}

func drain(ctx context.Context, seq crdt.Messages) ([]crdt.Message, error) {
	if seq == nil {
		return nil, nil
	}
	var msgs []crdt.Message
	for msg, err := range seq {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// receive is the crdt.Receiver registered for this instance.
func (i *Instance) receive(ctx context.Context, msg crdt.Message) error {
	i.deliverMu.Lock()
	defer i.deliverMu.Unlock()

	resolved, err := rewrite(msg, i.toInstances)
	if err != nil {
		i.rt.metrics.failed(i.typeName)
		i.rt.logger.ErrorContext(ctx, "cannot resolve message references",
			"id", i.ref.ID, "type", i.typeName, "error", err)
		return err
	}

	var changes []crdt.Change
	i.mu.Lock()
	next, err := i.typ.Reduce(resolved, i.state, func(ch crdt.Change) {
		changes = append(changes, ch)
	})
	if err == nil {
		i.state = next
	}
	i.mu.Unlock()

	if err != nil {
		i.rt.metrics.failed(i.typeName)
		i.rt.logger.ErrorContext(ctx, "cannot merge message",
			"id", i.ref.ID, "type", i.typeName, "error", err)
		return errors.Wrapf(err, "merge into %s", i.ref)
	}

	i.rt.metrics.received(i.typeName, len(changes))
	for _, ch := range changes {
		i.listeners.emitChange(ch)
		i.propagateDeep()
	}
	return nil
}

// toInstances replaces every Reference with the live instance, creating it
// when needed, and starts watching it for deep changes.
func (i *Instance) toInstances(v any) (any, bool, error) {
	ref, ok := crdt.AsReference(v)
	if !ok {
		return v, false, nil
	}
	nested, err := i.rt.Resolve(ref)
	if err != nil {
		return nil, true, err
	}
	i.watch(nested)
	return nested, true, nil
}

// watch links nested to i once; later resolutions of the same id are no-ops.
func (i *Instance) watch(nested *Instance) {
	i.nestedMu.Lock()
	_, seen := i.nested[nested.ref.ID]
	i.nested[nested.ref.ID] = struct{}{}
	i.nestedMu.Unlock()
	if seen {
		return
	}

	nested.nestedMu.Lock()
	nested.containers = append(nested.containers, i)
	nested.nestedMu.Unlock()
}

func (i *Instance) containersSnapshot() []*Instance {
	i.nestedMu.Lock()
	defer i.nestedMu.Unlock()
	return append([]*Instance(nil), i.containers...)
}

// propagateDeep fires "deep change" on every instance that transitively
// contains i, once each, so reference cycles terminate.
func (i *Instance) propagateDeep() {
	seen := map[*Instance]struct{}{i: {}}
	queue := i.containersSnapshot()
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		c.listeners.emitDeep()
		queue = append(queue, c.containersSnapshot()...)
	}
}
