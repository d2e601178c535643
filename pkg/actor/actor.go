// Package actor implements a scheduler that multiplexes N
// single-consumer mailboxes onto a fixed worker pool, guaranteeing
// at-most-one worker executing a given mailbox's handler at a time.
// The fixed worker pool is grounded on golang.org/x/sync/errgroup, the
// idiomatic Go rendering of "P goroutines, cancel-and-wait on
// shutdown" that the teacher's own worker pools (friggdb/pool)
// express with a raw channel-and-WaitGroup instead.
package actor

import (
	"context"
	"runtime"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/tempolabs/corelib/internal/corelog"
	"github.com/tempolabs/corelib/internal/coremetrics"
)

// Handler processes one message delivered to an actor's mailbox.
type Handler func(msg any)

// Config configures an ActorSystem.
type Config struct {
	// Workers is the fixed worker pool size P. Defaults to
	// runtime.GOMAXPROCS(0).
	Workers int `yaml:"workers"`
	// Namespace scopes this instance's Prometheus metrics.
	Namespace string `yaml:"namespace"`
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

type metrics struct {
	messagesHandledTotal prometheus.Counter
	handlerPanicsTotal   prometheus.Counter
	mailboxDepth         *prometheus.GaugeVec
}

// actorContext holds one actor's mailbox and scheduling state. The
// scheduled flag is a single-holder lock on the handler: only the
// goroutine that wins the CAS from false to true may invoke it.
type actorContext struct {
	id        string
	mailbox   chan any
	handler   Handler
	scheduled atomic.Bool
}

// ActorSystem is a mapping from actor id to actorContext, plus a
// fixed-size worker pool that drains mailboxes as they become ready.
type ActorSystem struct {
	cfg Config
	log log.Logger

	actors sync.Map // string -> *actorContext
	ready  chan *actorContext

	running atomic.Bool
	group   *errgroup.Group
	cancel  context.CancelFunc
	done    context.Context

	m metrics
}

// New constructs and starts an ActorSystem with cfg.Workers goroutines
// draining the ready queue.
func New(cfg Config, logger log.Logger, reg prometheus.Registerer) *ActorSystem {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = corelog.Logger
	}
	f := coremetrics.NewFactory(cfg.Namespace, "actor", reg)

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	as := &ActorSystem{
		cfg:    cfg,
		log:    logger,
		ready:  make(chan *actorContext),
		group:  g,
		cancel: cancel,
		done:   gctx,
		m: metrics{
			messagesHandledTotal: f.Counter("messages_handled_total", "Total messages handled across all actors."),
			handlerPanicsTotal:   f.Counter("handler_panics_total", "Total handler invocations that panicked and were recovered."),
			mailboxDepth:         f.GaugeVec("mailbox_depth", "Mailbox depth sampled at the start of a drain.", "actor"),
		},
	}
	as.running.Store(true)

	for i := 0; i < cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case actx := <-as.ready:
					as.drain(actx)
				}
			}
		})
	}

	return as
}

// Register creates an ActorContext with the given mailbox capacity and
// handler, returning a handle. Returns ErrDuplicateActor if id is
// already registered.
func (as *ActorSystem) Register(id string, mailboxCapacity int, handler Handler) (*ActorHandle, error) {
	actx := &actorContext{id: id, mailbox: make(chan any, mailboxCapacity), handler: handler}
	actual, loaded := as.actors.LoadOrStore(id, actx)
	if loaded {
		return nil, ErrDuplicateActor
	}
	return &ActorHandle{sys: as, ctx: actual.(*actorContext)}, nil
}

// Shutdown flips the running flag and cancels outstanding drain tasks'
// context, then waits for all workers to exit. It is idempotent.
func (as *ActorSystem) Shutdown() {
	if !as.running.CompareAndSwap(true, false) {
		return
	}
	as.cancel()
	_ = as.group.Wait()
}

// ActorHandle is the caller-facing reference to a registered actor.
type ActorHandle struct {
	sys *ActorSystem
	ctx *actorContext
}

// Send offers message to the mailbox without blocking. It returns true
// on success, false if the mailbox is full. On successful enqueue, if
// the actor was idle, it is marked scheduled and a drain task is
// submitted to the worker pool.
func (h *ActorHandle) Send(message any) bool {
	select {
	case h.ctx.mailbox <- message:
	default:
		return false
	}
	h.sys.maybeSchedule(h.ctx)
	return true
}

// maybeSchedule transitions idle -> scheduled via CAS and, on success,
// submits a drain task.
func (as *ActorSystem) maybeSchedule(actx *actorContext) {
	if actx.scheduled.CompareAndSwap(false, true) {
		as.submit(actx)
	}
}

// submit posts actx to the ready queue for a worker to pick up. After
// shutdown the ready queue has no readers left; submit drops the task
// rather than blocking forever, matching "further enqueues are still
// accepted by the mailbox but not processed."
func (as *ActorSystem) submit(actx *actorContext) {
	select {
	case as.ready <- actx:
	case <-as.done.Done():
	}
}

// drain repeatedly polls the mailbox, invoking the handler for each
// dequeued message. On finding the mailbox empty it clears scheduled
// and re-checks: if the mailbox is non-empty again, it tries to
// reclaim scheduled via CAS and keep draining; if another goroutine
// already reclaimed it first, this task exits without touching the
// mailbox again, avoiding any double-drain of the same actor. This
// clear-then-recheck sequence is what prevents the lost-wakeup race
// between a draining worker finding "empty" and a sender enqueuing
// a message microseconds later.
func (as *ActorSystem) drain(actx *actorContext) {
	as.m.mailboxDepth.WithLabelValues(actx.id).Set(float64(len(actx.mailbox)))

	for {
		if !as.running.Load() {
			return
		}

		select {
		case msg := <-actx.mailbox:
			as.invokeHandler(actx, msg)
			continue
		default:
		}

		actx.scheduled.Store(false)
		if len(actx.mailbox) == 0 {
			return
		}
		if actx.scheduled.CompareAndSwap(false, true) {
			continue
		}
		return
	}
}

func (as *ActorSystem) invokeHandler(actx *actorContext, msg any) {
	defer func() {
		if r := recover(); r != nil {
			level.Error(as.log).Log(
				"msg", "actor handler panic recovered",
				"actor", actx.id,
				"correlation_id", uuid.New().String(),
				"panic", r,
			)
			as.m.handlerPanicsTotal.Inc()
		}
	}()
	actx.handler(msg)
	as.m.messagesHandledTotal.Inc()
}
