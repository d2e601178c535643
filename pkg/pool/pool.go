// Package pool implements a bounded object pool with validation on
// release and a best-effort minimum warm-population invariant. The
// permit counter is grounded on the teacher's friggdb/pool worker pool
// (an atomic outstanding-work counter paired with queue-length gauges)
// but is expressed here with golang.org/x/sync/semaphore, the natural
// library rendering of a borrow/release permit counter with
// cancellation support.
package pool

import (
	"context"
	"sync"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"

	"github.com/tempolabs/corelib/internal/corelog"
	"github.com/tempolabs/corelib/internal/coremetrics"
)

// Config configures a Pool.
type Config struct {
	// Min is the warm-population floor, maintained best-effort at
	// release time.
	Min int `yaml:"min"`
	// Max is the total permit count: the upper bound on resources that
	// may exist (borrowed + idle) at any time.
	Max int `yaml:"max"`
	// Namespace scopes this instance's Prometheus metrics.
	Namespace string `yaml:"namespace"`
}

// Factory produces a fresh resource.
type Factory[T any] func() (T, error)

// Validator decides, on release, whether a resource is still fit to
// return to the idle set.
type Validator[T any] func(T) bool

// ReleaseHook is invoked on a resource that is being discarded, either
// because it failed validation or because the pool was closed.
type ReleaseHook[T any] func(T) error

type metrics struct {
	borrowedTotal  prometheus.Counter
	mintedTotal    prometheus.Counter
	discardedTotal prometheus.Counter
	idle           prometheus.Gauge
}

// Pool is a bounded object pool. Borrow blocks until a permit is
// available; Release validates the returned resource, discarding and
// best-effort replacing it if validation fails.
type Pool[T any] struct {
	cfg         Config
	factory     Factory[T]
	validator   Validator[T]
	releaseHook ReleaseHook[T]
	log         log.Logger

	sem *semaphore.Weighted

	mu     sync.Mutex
	idle   []T
	closed bool

	m metrics
}

// New constructs a Pool, pre-creating cfg.Min resources via factory.
// validator runs on every release; releaseHook runs on every discarded
// resource, including those drained by Close.
func New[T any](cfg Config, factory Factory[T], validator Validator[T], releaseHook ReleaseHook[T], logger log.Logger, reg prometheus.Registerer) (*Pool[T], error) {
	if logger == nil {
		logger = corelog.Logger
	}
	f := coremetrics.NewFactory(cfg.Namespace, "pool", reg)

	p := &Pool[T]{
		cfg:         cfg,
		factory:     factory,
		validator:   validator,
		releaseHook: releaseHook,
		log:         logger,
		sem:         semaphore.NewWeighted(int64(cfg.Max)),
		idle:        make([]T, 0, cfg.Max),
		m: metrics{
			borrowedTotal:  f.Counter("borrowed_total", "Total successful borrows."),
			mintedTotal:    f.Counter("minted_total", "Total resources minted by the factory."),
			discardedTotal: f.Counter("discarded_total", "Total resources discarded on release."),
			idle:           f.Gauge("idle", "Current number of idle resources."),
		},
	}

	for i := 0; i < cfg.Min; i++ {
		r, err := factory()
		if err != nil {
			return nil, err
		}
		p.idle = append(p.idle, r)
		p.m.mintedTotal.Inc()
	}
	p.m.idle.Set(float64(len(p.idle)))

	return p, nil
}

// Borrow blocks until a resource is available or ctx is done. It
// returns ErrPoolClosed if the pool has been closed, and propagates
// ctx's error if cancelled while waiting.
func (p *Pool[T]) Borrow(ctx context.Context) (T, error) {
	var zero T

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return zero, ErrPoolClosed
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return zero, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		r := p.idle[0]
		p.idle = p.idle[1:]
		p.mu.Unlock()
		p.m.idle.Set(float64(len(p.idle)))
		p.m.borrowedTotal.Inc()
		return r, nil
	}
	p.mu.Unlock()

	r, err := p.factory()
	if err != nil {
		p.sem.Release(1)
		return zero, err
	}
	p.m.mintedTotal.Inc()
	p.m.borrowedTotal.Inc()
	return r, nil
}

// Release validates r and either returns it to the idle set or
// discards it via releaseHook, best-effort minting a replacement when
// idle would drop below Min. A resource that validates but finds the
// pool already closed is discarded through releaseHook too, rather
// than dropped untouched. The permit is always released last, after
// the idle FIFO has been updated and any replacement minted — a defer
// taken before any of that work, so it still runs during a panic
// unwind from factory or releaseHook. This resolves the Pool.release
// open question in favor of never leaking a permit.
//
// It returns whether r itself was re-pooled, and any error raised by
// releaseHook or a replacement factory call.
func (p *Pool[T]) Release(r T) (bool, error) {
	defer p.sem.Release(1)

	valid := p.validator(r)

	p.mu.Lock()
	closed := p.closed
	if valid && !closed {
		p.idle = append(p.idle, r)
	}
	needMint := !valid && !closed && len(p.idle) < p.cfg.Min
	p.mu.Unlock()

	if valid && !closed {
		p.m.idle.Set(float64(p.idleLen()))
		return true, nil
	}

	// Either invalid, or valid but the pool closed underneath this
	// release: both cases discard r through releaseHook rather than
	// silently dropping it uncleaned.
	var errs error
	if err := p.releaseHook(r); err != nil {
		errs = multierr.Append(errs, err)
	}
	p.m.discardedTotal.Inc()

	if needMint {
		nr, err := p.factory()
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			p.mu.Lock()
			if !p.closed {
				p.idle = append(p.idle, nr)
			}
			p.mu.Unlock()
			p.m.mintedTotal.Inc()
		}
	}
	p.m.idle.Set(float64(p.idleLen()))
	return false, errs
}

// AvailableCount returns the number of idle resources immediately
// available to Borrow without minting.
func (p *Pool[T]) AvailableCount() int {
	return p.idleLen()
}

func (p *Pool[T]) idleLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// MinCapacity returns the configured minimum warm population.
func (p *Pool[T]) MinCapacity() int { return p.cfg.Min }

// MaxCapacity returns the configured maximum permit count.
func (p *Pool[T]) MaxCapacity() int { return p.cfg.Max }

// Close transitions the pool to closed, draining idle resources
// through releaseHook. It is idempotent and does not wait for
// outstanding borrows to return.
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	drained := p.idle
	p.idle = nil
	p.mu.Unlock()

	var errs error
	for _, r := range drained {
		if err := p.releaseHook(r); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	p.m.idle.Set(0)
	return errs
}
