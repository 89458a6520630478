package runtime

import (
	"log/slog"

	"opcrdt/pkg/crdt"
	"opcrdt/pkg/storage"

	"github.com/pkg/errors"
)

// Runtime turns Types into live, networked instances. One Runtime is one
// cache scope: a type store paired with a message handler. Ids must be
// unique across all types within a Runtime.
type Runtime struct {
	handler crdt.MessageHandler
	store   crdt.Store
	cache   *storage.Cache[*Instance]
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*options)

type options struct {
	logger         *slog.Logger
	metrics        *Metrics
	shards         int
	scaleThreshold int
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithCacheShards(n int) Option {
	return func(o *options) { o.shards = n }
}

func WithScaleThreshold(n int) Option {
	return func(o *options) { o.scaleThreshold = n }
}

func New(handler crdt.MessageHandler, store crdt.Store, opts ...Option) *Runtime {
	o := options{
		logger: slog.Default(),
		shards: storage.DefaultShards,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Runtime{
		handler: handler,
		store:   store,
		cache:   storage.NewCache[*Instance](o.shards, o.scaleThreshold),
		logger:  o.logger.With("component", "runtime"),
		metrics: o.metrics,
	}
}

// Create returns the instance cached under id, or builds a new instance of
// typeName, caches it and registers its receiver. A cached instance is
// returned even when it was created with another type name.
//
// The receiver is registered after the cache has released its locks, so the
// handler may deliver to it before AddReceiverFor returns.
func (rt *Runtime) Create(id, typeName string) (*Instance, error) {
	inst, loaded, err := rt.cache.GetOrCreate(id, func() (*Instance, error) {
		return rt.build(id, typeName)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create %s/%s", typeName, id)
	}
	if loaded && inst.typeName != typeName {
		rt.logger.Warn("id already bound to another type",
			"id", id, "type", inst.typeName, "requested", typeName)
	}
	if err := rt.register(inst); err != nil {
		return nil, errors.Wrapf(err, "create %s/%s", typeName, id)
	}
	return inst, nil
}

// Resolve returns the live instance a reference points to, creating it when
// needed. A type absent from the store is an error even if the id is cached.
func (rt *Runtime) Resolve(ref crdt.Reference) (*Instance, error) {
	if _, err := rt.store.Lookup(ref.Type); err != nil {
		return nil, errors.Wrapf(err, "resolve %s", ref)
	}
	return rt.Create(ref.ID, ref.Type)
}

func (rt *Runtime) Lookup(id string) (*Instance, bool) {
	return rt.cache.Get(id)
}

// Len returns the number of live instances.
func (rt *Runtime) Len() int {
	return rt.cache.Len()
}

// Instances calls fn for every live instance until fn returns false.
func (rt *Runtime) Instances(fn func(*Instance) bool) {
	rt.cache.Range(func(_ string, inst *Instance) bool {
		return fn(inst)
	})
}

func (rt *Runtime) Store() crdt.Store {
	return rt.store
}

func (rt *Runtime) build(id, typeName string) (*Instance, error) {
	typ, err := rt.store.Lookup(typeName)
	if err != nil {
		return nil, err
	}

	mutators := typ.Mutators()
	for name, m := range mutators {
		if m == nil {
			return nil, errors.Wrapf(crdt.ErrInvalidMutator, "%s.%s", typeName, name)
		}
	}

	return newInstance(rt, id, typ, mutators), nil
}

const (
	unregistered int32 = iota
	registering
	registered
)

// register hands the receiver of inst to the message handler once. A call
// that finds the registration in progress returns at once: it may be running
// inside that very registration. A failed registration is retried by the next
// Create of the same id.
func (rt *Runtime) register(inst *Instance) error {
	if !inst.registration.CompareAndSwap(unregistered, registering) {
		return nil
	}
	if err := rt.handler.AddReceiverFor(inst.ref, inst.receive); err != nil {
		inst.registration.Store(unregistered)
		return errors.Wrap(err, "register receiver")
	}
	inst.registration.Store(registered)

	rt.metrics.created(inst.typeName)
	rt.logger.Debug("instance created", "id", inst.ref.ID, "type", inst.typeName)
	return nil
}
