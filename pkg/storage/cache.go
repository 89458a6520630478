package storage

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultShards — начальное количество шардов.
const DefaultShards = 64

// DefaultScaleThreshold — при каком количестве ключей на шард начинаем увеличивать
const DefaultScaleThreshold = 100_000

type shard[V any] struct {
	mu   sync.RWMutex
	data map[string]V
}

// Cache is a sharded map from id to value with an atomic get-or-create.
// Entries are never removed.
type Cache[V any] struct {
	shards    atomic.Pointer[[]*shard[V]]
	numShards atomic.Uint32
	threshold int64

	// resize is held for reading by every operation and for writing while
	// the shards are rebuilt.
	resize  sync.RWMutex
	growing atomic.Bool

	// статистика
	countKeys atomic.Int64
}

// NewCache creates a cache with initialShards rounded up to a power of two.
func NewCache[V any](initialShards int, scaleThreshold int) *Cache[V] {
	if initialShards <= 0 {
		initialShards = DefaultShards
	}
	if scaleThreshold <= 0 {
		scaleThreshold = DefaultScaleThreshold
	}
	n := nextPow2(initialShards)

	c := &Cache[V]{threshold: int64(scaleThreshold)}
	shards := make([]*shard[V], n)
	for i := range shards {
		shards[i] = &shard[V]{data: make(map[string]V, 128)}
	}
	c.shards.Store(&shards)
	c.numShards.Store(uint32(n))
	return c
}

func (c *Cache[V]) shardFor(key string) *shard[V] {
	idx := hashKey(key) & (c.numShards.Load() - 1)
	return (*c.shards.Load())[idx]
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.resize.RLock()
	defer c.resize.RUnlock()

	s := c.shardFor(key)
	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()
	return v, ok
}

// GetOrCreate returns the value stored under key, or stores the result of
// create. create runs at most once per key, under the shard lock, so it must
// not use the cache. loaded reports whether the value already existed.
func (c *Cache[V]) GetOrCreate(key string, create func() (V, error)) (v V, loaded bool, err error) {
	if create == nil {
		return v, false, ErrNilConstructor
	}

	c.resize.RLock()
	s := c.shardFor(key)

	s.mu.RLock()
	v, loaded = s.data[key]
	s.mu.RUnlock()
	if loaded {
		c.resize.RUnlock()
		return v, true, nil
	}

	s.mu.Lock()
	// double-checked
	if v, loaded = s.data[key]; loaded {
		s.mu.Unlock()
		c.resize.RUnlock()
		return v, true, nil
	}
	v, err = create()
	if err == nil {
		s.data[key] = v
		c.countKeys.Add(1)
	}
	s.mu.Unlock()
	c.resize.RUnlock()

	if err == nil {
		c.maybeScale()
	}
	return v, false, err
}

func (c *Cache[V]) Len() int {
	return int(c.countKeys.Load())
}

// Range calls fn for every entry until fn returns false. No lock is held
// while fn runs, so fn may use the cache. Entries created during the
// iteration may be skipped.
func (c *Cache[V]) Range(fn func(key string, v V) bool) {
	// growShards copies into new shards and leaves the old ones untouched
	c.resize.RLock()
	shards := *c.shards.Load()
	c.resize.RUnlock()

	for _, s := range shards {
		s.mu.RLock()
		snapshot := make(map[string]V, len(s.data))
		for k, v := range s.data {
			snapshot[k] = v
		}
		s.mu.RUnlock()

		for k, v := range snapshot {
			if !fn(k, v) {
				return
			}
		}
	}
}

func (c *Cache[V]) Shards() int {
	return int(c.numShards.Load())
}

func (c *Cache[V]) maybeScale() {
	total := c.countKeys.Load()
	nShards := int64(c.numShards.Load())

	if total/nShards > c.threshold && c.growing.CompareAndSwap(false, true) {
		go c.growShards()
	}
}

func (c *Cache[V]) growShards() {
	defer c.growing.Store(false)

	c.resize.Lock()
	defer c.resize.Unlock()

	current := c.numShards.Load()
	if total := c.countKeys.Load(); total/int64(current) <= c.threshold {
		return // кто-то уже увеличил
	}

	newCount := current * 2
	newArr := make([]*shard[V], newCount)
	for i := range newArr {
		newArr[i] = &shard[V]{data: make(map[string]V, 128)}
	}

	// перемещаем старые шарды в новые позиции (ребаланс по хэшу)
	for _, old := range *c.shards.Load() {
		for k, v := range old.data {
			newArr[hashKey(k)&(newCount-1)].data[k] = v
		}
	}

	c.shards.Store(&newArr)
	c.numShards.Store(newCount)
	slog.Debug("cache scaled", "shards", newCount)
}
