package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"opcrdt/pkg/crdt"
)

// Envelope is one message in flight to one node.
type Envelope struct {
	Version Version        `json:"version"`
	Target  crdt.Reference `json:"target"`
	// Message is set when the network passes values as they are, Payload
	// when it encodes them.
	Message crdt.Message `json:"-"`
	Payload []byte       `json:"payload,omitempty"`
}

// Network connects in-process nodes. Every message sent by a node is queued
// on every node, the sender included; nodes deliver their queues with
// Deliver, Run or Network.Flush.
type Network struct {
	mu     sync.RWMutex
	nodes  []*Node
	byName map[string]*Node

	codec  crdt.Store
	copies int
	dedup  bool
	logger *slog.Logger
}

type Option func(*Network)

// WithCodec encodes every message to JSON on send and decodes it with the
// target type's DecodeMessage on delivery.
func WithCodec(store crdt.Store) Option {
	return func(n *Network) { n.codec = store }
}

// WithCopies queues every message copies times, simulating at-least-once
// delivery.
func WithCopies(copies int) Option {
	return func(n *Network) {
		if copies > 0 {
			n.copies = copies
		}
	}
}

// WithoutDeduplication delivers every queued copy. Counters are not correct
// on such a network.
func WithoutDeduplication() Option {
	return func(n *Network) { n.dedup = false }
}

func WithLogger(l *slog.Logger) Option {
	return func(n *Network) { n.logger = l }
}

func NewNetwork(opts ...Option) *Network {
	n := &Network{
		byName: make(map[string]*Node),
		copies: 1,
		dedup:  true,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Join adds a node named name, or returns the existing one.
func (n *Network) Join(name string) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()

	if node, ok := n.byName[name]; ok {
		return node
	}
	node := newNode(name, n)
	n.nodes = append(n.nodes, node)
	n.byName[name] = node
	return node
}

func (n *Network) Node(name string) (*Node, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	node, ok := n.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}
	return node, nil
}

func (n *Network) Nodes() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Node(nil), n.nodes...)
}

func (n *Network) broadcast(env Envelope) {
	for _, node := range n.Nodes() {
		for range n.copies {
			node.enqueue(env)
		}
	}
}

// Flush delivers on every node until no deliverable message is left.
// Messages for targets without a receiver stay parked. Receiver errors do not
// stop the flush; they are joined into the result.
func (n *Network) Flush(ctx context.Context) error {
	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		progress := false
		for _, node := range n.Nodes() {
			if node.Pending() == 0 {
				continue
			}
			progress = true
			for {
				_, err := node.Deliver(ctx)
				if err == nil {
					break
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				errs = append(errs, err)
			}
		}
		if !progress {
			return errors.Join(errs...)
		}
	}
}
