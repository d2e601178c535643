// Package cache implements a bounded LRU over a concurrent index plus
// an intrusive doubly-linked recency list with sentinel head/tail
// nodes, grounded on the retrieved skipor/memcached LRU (fakeHead /
// fakeTail, link/unlink, attach-as-most-recent). The concurrent index
// here is sync.Map rather than memcached's sharded hash table, since
// this cache has no sharding requirement of its own.
package cache

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tempolabs/corelib/internal/corelog"
	"github.com/tempolabs/corelib/internal/coremetrics"
	"github.com/tempolabs/corelib/internal/nilcheck"
)

// Config configures a Cache.
type Config struct {
	// Capacity is the maximum number of entries retained.
	Capacity int `yaml:"capacity"`
	// Namespace scopes this instance's Prometheus metrics.
	Namespace string `yaml:"namespace"`
}

// ComputeFunc computes the value for a key on a miss. The bool result
// reports whether a value was produced; false means "do not cache."
// An error propagates unchanged and nothing is cached.
type ComputeFunc[K any, V any] func(K) (V, bool, error)

type node[K any, V any] struct {
	key   K
	value V
	prev  *node[K, V]
	next  *node[K, V]
}

type metrics struct {
	hitsTotal      prometheus.Counter
	missesTotal    prometheus.Counter
	evictionsTotal prometheus.Counter
	size           prometheus.Gauge
}

// Cache is a bounded LRU. Get and Put are safe for concurrent use;
// recency-list mutation is serialized under a single list lock, and
// key publication into the index is CAS-style insert-if-absent.
type Cache[K comparable, V any] struct {
	cfg     Config
	compute ComputeFunc[K, V]
	log     log.Logger

	index sync.Map // K -> *node[K,V]

	mu   sync.Mutex
	head *node[K, V]
	tail *node[K, V]
	size int

	m metrics
}

// New constructs a Cache with the given capacity and compute function.
func New[K comparable, V any](cfg Config, compute ComputeFunc[K, V], logger log.Logger, reg prometheus.Registerer) *Cache[K, V] {
	if logger == nil {
		logger = corelog.Logger
	}
	f := coremetrics.NewFactory(cfg.Namespace, "cache", reg)

	c := &Cache[K, V]{
		cfg:     cfg,
		compute: compute,
		log:     logger,
		head:    &node[K, V]{},
		tail:    &node[K, V]{},
		m: metrics{
			hitsTotal:      f.Counter("hits_total", "Total Get calls served from the index."),
			missesTotal:    f.Counter("misses_total", "Total Get calls that fell through to compute."),
			evictionsTotal: f.Counter("evictions_total", "Total entries evicted to stay within capacity."),
			size:           f.Gauge("size", "Current number of entries."),
		},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the cached value for k, computing and storing it on a
// miss. The bool result reports whether a value is present; it is
// false when the compute function reported absent. Errors from
// compute propagate unchanged and nothing is cached.
func (c *Cache[K, V]) Get(k K) (V, bool, error) {
	var zero V
	if nilcheck.IsNil(k) {
		return zero, false, ErrNullArg
	}

	if v, ok := c.index.Load(k); ok {
		n := v.(*node[K, V])
		c.moveToHead(n)
		c.mu.Lock()
		val := n.value
		c.mu.Unlock()
		c.m.hitsTotal.Inc()
		return val, true, nil
	}

	c.m.missesTotal.Inc()
	val, found, err := c.compute(k)
	if err != nil {
		return zero, false, err
	}
	if !found {
		return zero, false, nil
	}
	c.upsert(k, val)
	return val, true, nil
}

// Put upserts k -> v, returning the prior value if any. On insert it
// may evict the least-recently-used entry if capacity is exceeded.
func (c *Cache[K, V]) Put(k K, v V) (V, bool, error) {
	var zero V
	if nilcheck.IsNil(k) || nilcheck.IsNil(v) {
		return zero, false, ErrNullArg
	}
	prev, had := c.upsert(k, v)
	return prev, had, nil
}

// Size returns the current number of entries.
func (c *Cache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.head.next = c.tail
	c.tail.prev = c.head
	c.size = 0
	c.mu.Unlock()

	c.index.Range(func(k, _ any) bool {
		c.index.Delete(k)
		return true
	})
	c.m.size.Set(0)
}

// upsert inserts or updates k -> v, returning the prior value and
// whether one existed.
func (c *Cache[K, V]) upsert(k K, v V) (V, bool) {
	var zero V
	n := &node[K, V]{key: k, value: v}
	actual, loaded := c.index.LoadOrStore(k, n)
	if loaded {
		existing := actual.(*node[K, V])
		c.mu.Lock()
		prev := existing.value
		existing.value = v
		c.mu.Unlock()
		c.moveToHead(existing)
		return prev, true
	}

	c.linkNewAndMaybeEvict(n)
	return zero, false
}

// linkNewAndMaybeEvict splices a freshly inserted node at the head of
// the recency list and, if that pushed size past capacity, evicts the
// node immediately before the tail sentinel.
func (c *Cache[K, V]) linkNewAndMaybeEvict(n *node[K, V]) {
	c.mu.Lock()
	c.linkAfterHead(n)
	c.size++

	var victim *node[K, V]
	if c.size > c.cfg.Capacity {
		v := c.tail.prev
		if v != c.head {
			c.unlink(v)
			c.size--
			victim = v
		}
	}
	sz := c.size
	c.mu.Unlock()

	if victim != nil {
		c.index.Delete(victim.key)
		c.m.evictionsTotal.Inc()
	}
	c.m.size.Set(float64(sz))
}

// moveToHead promotes n to most-recently-used. The already-at-head
// check is read under the list lock rather than lock-free, per the
// "observable contract is identical either way" note in the design
// notes — simplicity over the acquire-and-validate fast path.
//
// A node published into the index by upsert's LoadOrStore is visible
// to a concurrent Get before linkNewAndMaybeEvict has spliced it into
// the recency list; such a node still has a nil prev. Treat that as
// "not yet linked, nothing to promote" rather than unlinking against a
// nil neighbor, since the inserting goroutine is about to link it at
// the head anyway.
func (c *Cache[K, V]) moveToHead(n *node[K, V]) {
	c.mu.Lock()
	if n.prev == nil || n.prev == c.head {
		c.mu.Unlock()
		return
	}
	c.unlink(n)
	c.linkAfterHead(n)
	c.mu.Unlock()
}

func (c *Cache[K, V]) unlink(n *node[K, V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *Cache[K, V]) linkAfterHead(n *node[K, V]) {
	n.next = c.head.next
	n.prev = c.head
	c.head.next.prev = n
	c.head.next = n
}
