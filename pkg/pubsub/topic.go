package pubsub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/tempolabs/corelib/internal/chunkedseq"
	"github.com/tempolabs/corelib/internal/olock"
)

// consumerGroup holds a monotonically non-decreasing committed offset.
// The seqlock's stamp only covers the chunkedseq cursor it was modeled
// on; it does nothing to protect a plain field accessed outside the
// write role, so the offset itself is an atomic rather than a field
// the coordinator merely implies safety for. poll's optimistic path
// reads it without any lock at all, racing commit's write, so it must
// be an atomic regardless of which role either side holds.
type consumerGroup struct {
	committedOffset atomic.Uint64
}

// topic is the per-topic append-only message sequence plus its
// consumer groups, coordinated by a seqlock in the style of a Java
// StampedLock: publish and commit take the exclusive write role; poll
// prefers an optimistic, lock-free read and only falls back to the
// read role on a stamp mismatch.
type topic struct {
	messages    *chunkedseq.Array[Message]
	coordinator olock.Lock

	groupsMu sync.Mutex // guards the groups map's shape (insert of a new name)
	groups   map[string]*consumerGroup

	messagesTotal prometheus.Counter
	consumerLag   *prometheus.GaugeVec
}

func newTopic(messagesTotal prometheus.Counter, consumerLag *prometheus.GaugeVec) *topic {
	return &topic{
		messages:      chunkedseq.NewArray[Message](256),
		groups:        make(map[string]*consumerGroup),
		messagesTotal: messagesTotal,
		consumerLag:   consumerLag,
	}
}

// send atomically appends a message with a wall-clock timestamp.
func (t *topic) send(key string, value []byte) Message {
	t.coordinator.WriteLock()
	msg := Message{ID: uuid.New(), Key: key, Value: value, Timestamp: time.Now().UnixMilli()}
	t.messages.Append(msg)
	t.coordinator.WriteUnlock()

	t.messagesTotal.Inc()
	return msg
}

// groupFor returns the named group, creating it lazily (poll on an
// unknown group starts it at offset 0).
func (t *topic) groupFor(name string) *consumerGroup {
	t.groupsMu.Lock()
	defer t.groupsMu.Unlock()
	g, ok := t.groups[name]
	if !ok {
		g = &consumerGroup{}
		t.groups[name] = g
	}
	return g
}

// poll returns up to maxN messages starting at group's committed
// offset. It first takes an optimistic snapshot of (offset, length);
// on stamp mismatch it falls back to the read role.
func (t *topic) poll(group string, maxN int) []Message {
	if maxN <= 0 {
		return []Message{}
	}
	g := t.groupFor(group)

	stamp := t.coordinator.TryOptimisticRead()
	off := g.committedOffset.Load()
	n := t.messages.Size()
	if !t.coordinator.Validate(stamp) {
		t.coordinator.ReadLock()
		off = g.committedOffset.Load()
		n = t.messages.Size()
		t.coordinator.ReadUnlock()
	}

	end := off + uint64(maxN)
	if end > n {
		end = n
	}
	if t.consumerLag != nil {
		t.consumerLag.WithLabelValues(group).Set(float64(n - off))
	}
	return t.messages.SnapshotRange(off, end)
}

// commit advances group's committed offset to min(newOffset, current
// topic length), provided that is an advance. It reads the current
// offset under the read role first; if an advance is warranted it
// releases and reacquires the write role (Go's RWMutex has no
// upgrade primitive, so "attempt to upgrade" always falls back to a
// fresh exclusive acquisition) and re-checks monotonicity before
// applying.
func (t *topic) commit(group string, newOffset uint64) {
	g := t.groupFor(group)

	t.coordinator.ReadLock()
	cur := g.committedOffset.Load()
	n := t.messages.Size()
	t.coordinator.ReadUnlock()

	target := newOffset
	if target > n {
		target = n
	}
	if target <= cur {
		return
	}

	t.coordinator.WriteLock()
	n = t.messages.Size()
	target = newOffset
	if target > n {
		target = n
	}
	if target > g.committedOffset.Load() {
		g.committedOffset.Store(target)
	}
	t.coordinator.WriteUnlock()
}
