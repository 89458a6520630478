package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"

	"opcrdt/pkg/crdt"

	"github.com/puzpuzpuz/xsync/v3"
)

// Node is one process on a Network. It implements crdt.MessageHandler.
type Node struct {
	name      string
	network   *Network
	versions  *VersionManager
	receivers *xsync.MapOf[string, crdt.Receiver]

	mu     sync.Mutex
	inbox  []Envelope
	parked map[string][]Envelope
	notify chan struct{}
}

var _ crdt.MessageHandler = (*Node)(nil)

func newNode(name string, network *Network) *Node {
	return &Node{
		name:      name,
		network:   network,
		versions:  NewVersionManager(name),
		receivers: xsync.NewMapOf[string, crdt.Receiver](),
		parked:    make(map[string][]Envelope),
		notify:    make(chan struct{}, 1),
	}
}

func (n *Node) Name() string {
	return n.name
}

// SendMessageTo queues msg for target on every node of the network.
func (n *Node) SendMessageTo(ctx context.Context, target crdt.Reference, msg crdt.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := Envelope{Version: n.versions.Advance(), Target: target}
	if n.network.codec != nil {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message for %s: %w", target, err)
		}
		env.Payload = payload
	} else {
		env.Message = msg
	}

	n.network.broadcast(env)
	return nil
}

// AddReceiverFor registers r for target. Messages that arrived for target
// before registration are queued again; r is never called synchronously.
func (n *Node) AddReceiverFor(target crdt.Reference, r crdt.Receiver) error {
	key := target.String()
	if _, loaded := n.receivers.LoadOrStore(key, r); loaded {
		return fmt.Errorf("%w: %s on %s", ErrReceiverExists, target, n.name)
	}

	n.mu.Lock()
	parked := n.parked[key]
	delete(n.parked, key)
	n.inbox = append(n.inbox, parked...)
	n.mu.Unlock()

	if len(parked) > 0 {
		n.signal()
	}
	return nil
}

func (n *Node) enqueue(env Envelope) {
	n.mu.Lock()
	n.inbox = append(n.inbox, env)
	n.mu.Unlock()
	n.signal()
}

func (n *Node) signal() {
	select {
	case n.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued messages, parked ones excluded.
func (n *Node) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.inbox)
}

// Parked returns the number of messages waiting for a receiver.
func (n *Node) Parked() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	total := 0
	for _, envs := range n.parked {
		total += len(envs)
	}
	return total
}

// Shuffle reorders the queued messages.
func (n *Node) Shuffle(r *rand.Rand) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r.Shuffle(len(n.inbox), func(a, b int) {
		n.inbox[a], n.inbox[b] = n.inbox[b], n.inbox[a]
	})
}

// Deliver hands the queued messages to their receivers in queue order. On
// the first receiver error the failed message is dropped, the rest stays
// queued and the error is returned.
func (n *Node) Deliver(ctx context.Context) (delivered int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n.mu.Lock()
	batch := n.inbox
	n.inbox = nil
	n.mu.Unlock()

	for idx, env := range batch {
		if err := n.deliver(ctx, env); err != nil {
			n.requeue(batch[idx+1:])
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

func (n *Node) deliver(ctx context.Context, env Envelope) error {
	key := env.Target.String()
	r, ok := n.receivers.Load(key)
	if !ok {
		n.mu.Lock()
		n.parked[key] = append(n.parked[key], env)
		n.mu.Unlock()
		return nil
	}

	if n.network.dedup && !n.versions.Observe(env.Version) {
		return nil
	}

	msg, err := n.decode(env)
	if err != nil {
		return err
	}
	if err := r(ctx, msg); err != nil {
		n.network.logger.ErrorContext(ctx, "receiver failed",
			"node", n.name, "target", key, "error", err)
		return fmt.Errorf("deliver to %s on %s: %w", key, n.name, err)
	}
	return nil
}

func (n *Node) requeue(rest []Envelope) {
	if len(rest) == 0 {
		return
	}
	n.mu.Lock()
	n.inbox = append(append([]Envelope(nil), rest...), n.inbox...)
	n.mu.Unlock()
	n.signal()
}

func (n *Node) decode(env Envelope) (crdt.Message, error) {
	if env.Payload == nil {
		return env.Message, nil
	}
	typ, err := n.network.codec.Lookup(env.Target.Type)
	if err != nil {
		return nil, err
	}
	msg, err := typ.DecodeMessage(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode message for %s: %w", env.Target, err)
	}
	return msg, nil
}

// Run delivers messages as they arrive until ctx is done. Receiver errors
// are logged and do not stop the loop.
func (n *Node) Run(ctx context.Context) error {
	for {
		if _, err := n.Deliver(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.notify:
		}
	}
}
