// Package appendlog implements a thread-safe multimap where, for each
// key, values form an append-only, chunked sequence supporting
// lock-free reads. It is grounded on the chunk-directory-with-growth
// idiom used throughout the retrieval pack's log-structured append
// paths (dwarri/gazette's append_fsm and tessera's append_lifecycle),
// adapted here into a single in-process data structure.
package appendlog

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/tempolabs/corelib/internal/chunkedseq"
	"github.com/tempolabs/corelib/internal/corelog"
	"github.com/tempolabs/corelib/internal/coremetrics"
)

// Config configures an AppendLog instance.
type Config struct {
	// ChunkSize is the fixed row width of each chunk. Defaults to 1024.
	ChunkSize int `yaml:"chunk_size"`
	// Namespace scopes this instance's Prometheus metrics.
	Namespace string `yaml:"namespace"`
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1024
	}
	return c
}

type metrics struct {
	appendsTotal prometheus.Counter
	keysTotal    prometheus.Gauge
}

// AppendLog is a thread-safe multimap from K to an append-only,
// chunked sequence of V. Reads never block behind a writer; the only
// lock taken is a short per-key growth lock on the rare path where a
// chunk directory needs to grow.
type AppendLog[K comparable, V any] struct {
	cfg Config
	log log.Logger
	rl  *corelog.RateLimitedLogger

	keys      sync.Map // K -> *chunkedseq.Array[V]
	keyCount  atomic.Int64
	totalSize atomic.Int64

	m metrics
}

// New constructs an AppendLog with the given configuration, logging
// through logger (corelog.Logger if nil) and registering metrics
// against reg (left unregistered if reg is nil).
func New[K comparable, V any](cfg Config, logger log.Logger, reg prometheus.Registerer) *AppendLog[K, V] {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = corelog.Logger
	}

	f := coremetrics.NewFactory(cfg.Namespace, "appendlog", reg)
	al := &AppendLog[K, V]{
		cfg: cfg,
		log: logger,
		rl:  corelog.NewRateLimitedLogger(5, logger),
		m: metrics{
			appendsTotal: f.Counter("appends_total", "Total values appended across all keys."),
			keysTotal:    f.Gauge("keys_total", "Current number of distinct keys."),
		},
	}
	return al
}

// Add appends v under k, failing with ErrNullKey if k is nil.
func (al *AppendLog[K, V]) Add(k K, v V) error {
	if isNilKey(k) {
		_ = level.Debug(al.rl).Log("msg", "appendlog: rejected null key on Add")
		return ErrNullKey
	}
	ca := al.arrayFor(k)
	ca.Append(v)
	al.totalSize.Inc()
	al.m.appendsTotal.Inc()
	return nil
}

// AddAll appends values, in order, under k as a single reservation.
// Individual elements may become visible to readers one at a time.
func (al *AppendLog[K, V]) AddAll(k K, values []V) error {
	if isNilKey(k) {
		_ = level.Debug(al.rl).Log("msg", "appendlog: rejected null key on AddAll")
		return ErrNullKey
	}
	if len(values) == 0 {
		return nil
	}
	ca := al.arrayFor(k)
	ca.AppendAll(values)
	al.totalSize.Add(int64(len(values)))
	al.m.appendsTotal.Add(float64(len(values)))
	return nil
}

// Get returns a snapshot of k's sequence as observed during the call.
// Returns ErrNullKey if k is nil. A key with no recorded array yields
// an empty, non-nil slice.
func (al *AppendLog[K, V]) Get(k K) ([]V, error) {
	if isNilKey(k) {
		return nil, ErrNullKey
	}
	v, ok := al.keys.Load(k)
	if !ok {
		return []V{}, nil
	}
	return v.(*chunkedseq.Array[V]).Snapshot(), nil
}

// Iterator returns a finite, non-restartable sequence bounded by the
// cursor observed at call time.
func (al *AppendLog[K, V]) Iterator(k K) (*Iterator[V], error) {
	vs, err := al.Get(k)
	if err != nil {
		return nil, err
	}
	return &Iterator[V]{values: vs}, nil
}

// Stream returns a channel that yields k's values observed at call
// time, then closes. It is the push-style counterpart to Iterator.
func (al *AppendLog[K, V]) Stream(k K) (<-chan V, error) {
	vs, err := al.Get(k)
	if err != nil {
		return nil, err
	}
	ch := make(chan V, len(vs))
	for _, v := range vs {
		ch <- v
	}
	close(ch)
	return ch, nil
}

// KeySet returns the set of keys currently present.
func (al *AppendLog[K, V]) KeySet() []K {
	out := make([]K, 0, al.keyCount.Load())
	al.keys.Range(func(k, _ any) bool {
		out = append(out, k.(K))
		return true
	})
	return out
}

// Size returns the total number of values observed across all keys.
func (al *AppendLog[K, V]) Size() int64 {
	return al.totalSize.Load()
}

// KeyCount returns the number of distinct keys currently present.
func (al *AppendLog[K, V]) KeyCount() int64 {
	return al.keyCount.Load()
}

// ForEach invokes fn once per key with that key's stream observed at
// the time ForEach reaches it.
func (al *AppendLog[K, V]) ForEach(fn func(k K, values <-chan V)) {
	al.keys.Range(func(k, v any) bool {
		ca := v.(*chunkedseq.Array[V])
		vs := ca.Snapshot()
		ch := make(chan V, len(vs))
		for _, val := range vs {
			ch <- val
		}
		close(ch)
		fn(k.(K), ch)
		return true
	})
}

// arrayFor returns k's chunkedArray, creating it via CAS-style
// insert-if-absent on first use.
func (al *AppendLog[K, V]) arrayFor(k K) *chunkedseq.Array[V] {
	if v, ok := al.keys.Load(k); ok {
		return v.(*chunkedseq.Array[V])
	}
	ca := chunkedseq.NewArray[V](al.cfg.ChunkSize)
	actual, loaded := al.keys.LoadOrStore(k, ca)
	if !loaded {
		al.keyCount.Inc()
		al.m.keysTotal.Set(float64(al.keyCount.Load()))
	}
	return actual.(*chunkedseq.Array[V])
}

// Iterator walks a fixed snapshot of values taken at construction.
type Iterator[V any] struct {
	values []V
	pos    int
}

// HasNext reports whether another value remains.
func (it *Iterator[V]) HasNext() bool { return it.pos < len(it.values) }

// Next returns the next value and advances the iterator. Calling Next
// past the end panics, matching the "finite, not restartable" contract:
// callers must guard with HasNext.
func (it *Iterator[V]) Next() V {
	v := it.values[it.pos]
	it.pos++
	return v
}
