package transport

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"opcrdt/pkg/crdt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var counterRef = crdt.Reference{ID: "c", Type: crdt.GCounterName}

// sink collects the messages delivered to it.
type sink struct {
	mu   sync.Mutex
	msgs []crdt.Message
	err  error
}

func (s *sink) receive(_ context.Context, msg crdt.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *sink) received() []crdt.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crdt.Message(nil), s.msgs...)
}

func TestNetwork_BroadcastIncludesSender(t *testing.T) {
	ctx := context.Background()
	network := NewNetwork()
	a, b := network.Join("a"), network.Join("b")

	var sa, sb sink
	require.NoError(t, a.AddReceiverFor(counterRef, sa.receive))
	require.NoError(t, b.AddReceiverFor(counterRef, sb.receive))

	require.NoError(t, a.SendMessageTo(ctx, counterRef, int64(1)))
	require.NoError(t, b.SendMessageTo(ctx, counterRef, int64(2)))
	assert.Empty(t, sa.received(), "delivery must not be synchronous")

	require.NoError(t, network.Flush(ctx))
	assert.Equal(t, []crdt.Message{int64(1), int64(2)}, sa.received())
	assert.Equal(t, []crdt.Message{int64(1), int64(2)}, sb.received())
}

func TestNetwork_JoinAndLookup(t *testing.T) {
	network := NewNetwork()
	a := network.Join("a")
	assert.Same(t, a, network.Join("a"))

	got, err := network.Node("a")
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, "a", got.Name())

	_, err = network.Node("z")
	assert.ErrorIs(t, err, ErrUnknownNode)
	assert.Len(t, network.Nodes(), 1)
}

func TestNode_ParkedUntilReceiverRegisters(t *testing.T) {
	ctx := context.Background()
	network := NewNetwork()
	node := network.Join("a")

	require.NoError(t, node.SendMessageTo(ctx, counterRef, int64(1)))
	require.NoError(t, node.SendMessageTo(ctx, counterRef, int64(2)))
	require.NoError(t, network.Flush(ctx))
	assert.Equal(t, 2, node.Parked())
	assert.Zero(t, node.Pending())

	var s sink
	require.NoError(t, node.AddReceiverFor(counterRef, s.receive))
	assert.Empty(t, s.received())
	assert.Equal(t, 2, node.Pending())

	require.NoError(t, network.Flush(ctx))
	assert.Equal(t, []crdt.Message{int64(1), int64(2)}, s.received())
	assert.Zero(t, node.Parked())
}

func TestNode_DuplicateReceiver(t *testing.T) {
	node := NewNetwork().Join("a")
	var s sink
	require.NoError(t, node.AddReceiverFor(counterRef, s.receive))
	assert.ErrorIs(t, node.AddReceiverFor(counterRef, s.receive), ErrReceiverExists)
}

func TestNetwork_Deduplication(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		count int
	}{
		{name: "deduplicated", opts: []Option{WithCopies(3)}, count: 2},
		{name: "at least once", opts: []Option{WithCopies(3), WithoutDeduplication()}, count: 6},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			network := NewNetwork(tc.opts...)
			node := network.Join("a")
			var s sink
			require.NoError(t, node.AddReceiverFor(counterRef, s.receive))

			require.NoError(t, node.SendMessageTo(ctx, counterRef, int64(1)))
			require.NoError(t, node.SendMessageTo(ctx, counterRef, int64(1)))
			node.Shuffle(rand.New(rand.NewPCG(7, 7)))
			require.NoError(t, network.Flush(ctx))

			assert.Len(t, s.received(), tc.count)
		})
	}
}

func TestNetwork_Codec(t *testing.T) {
	ctx := context.Background()
	network := NewNetwork(WithCodec(crdt.DefaultStore()))
	node := network.Join("a")

	ref := crdt.Reference{ID: "doc", Type: crdt.LWWRegisterName}
	var s sink
	require.NoError(t, node.AddReceiverFor(ref, s.receive))

	nested := crdt.Reference{ID: "n", Type: crdt.GSetName}
	msg := crdt.LWWRegisterMessage{Timestamp: 3, Key: "k", Value: nested}
	require.NoError(t, node.SendMessageTo(ctx, ref, msg))
	require.NoError(t, network.Flush(ctx))

	got := s.received()
	require.Len(t, got, 1)
	decoded, ok := got[0].(crdt.LWWRegisterMessage)
	require.True(t, ok, "decoded %T", got[0])
	assert.Equal(t, int64(3), decoded.Timestamp)

	// references arrive in their map form
	back, ok := crdt.AsReference(decoded.Value)
	require.True(t, ok)
	assert.Equal(t, nested, back)
}

func TestNetwork_CodecUnknownType(t *testing.T) {
	ctx := context.Background()
	network := NewNetwork(WithCodec(crdt.NewStore()))
	node := network.Join("a")
	var s sink
	require.NoError(t, node.AddReceiverFor(counterRef, s.receive))

	require.NoError(t, node.SendMessageTo(ctx, counterRef, int64(1)))
	assert.ErrorIs(t, network.Flush(ctx), crdt.ErrUnknownType)
}

func TestNode_ReceiverErrorKeepsTheRest(t *testing.T) {
	ctx := context.Background()
	network := NewNetwork()
	node := network.Join("a")

	failing := crdt.Reference{ID: "bad", Type: crdt.GCounterName}
	boom := errors.New("boom")
	var good, bad sink
	bad.err = boom
	require.NoError(t, node.AddReceiverFor(counterRef, good.receive))
	require.NoError(t, node.AddReceiverFor(failing, bad.receive))

	require.NoError(t, node.SendMessageTo(ctx, failing, int64(1)))
	require.NoError(t, node.SendMessageTo(ctx, counterRef, int64(2)))

	n, err := node.Deliver(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
	assert.Equal(t, 1, node.Pending())

	n, err = node.Deliver(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []crdt.Message{int64(2)}, good.received())
}

func TestNode_Run(t *testing.T) {
	network := NewNetwork()
	node := network.Join("a")
	var s sink
	require.NoError(t, node.AddReceiverFor(counterRef, s.receive))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- node.Run(ctx) }()

	for i := range 5 {
		require.NoError(t, node.SendMessageTo(ctx, counterRef, int64(i)))
	}
	require.Eventually(t, func() bool { return len(s.received()) == 5 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNetwork_FlushCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewNetwork().Flush(ctx), context.Canceled)
}
