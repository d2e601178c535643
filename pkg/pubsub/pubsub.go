// Package pubsub implements an in-memory partitioned log per topic
// with multiple independent consumer groups, each tracking its own
// monotonic committed offset. The per-topic coordinator is a hand-rolled
// seqlock (internal/olock) since no vendored example in the retrieval
// pack supplies a ready-made optimistic-read lock; the message sequence
// itself reuses the lock-free chunked array shared with AppendLog.
package pubsub

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tempolabs/corelib/internal/corelog"
	"github.com/tempolabs/corelib/internal/coremetrics"
)

// Config configures a PubSub instance. There is no static topic list —
// a topic is created lazily by the first Producer or Consumer call that
// names it, and a group by its first Poll or Commit.
type Config struct {
	// Namespace scopes this instance's Prometheus metrics.
	Namespace string `yaml:"namespace"`
}

// PubSub is the top-level mapping from topic name to Topic.
type PubSub struct {
	log log.Logger

	topics sync.Map // string -> *topic

	messagesTotal *prometheus.CounterVec
	consumerLag   *prometheus.GaugeVec
}

// New constructs a PubSub.
func New(cfg Config, logger log.Logger, reg prometheus.Registerer) *PubSub {
	if logger == nil {
		logger = corelog.Logger
	}
	f := coremetrics.NewFactory(cfg.Namespace, "pubsub", reg)

	return &PubSub{
		log:           logger,
		messagesTotal: f.CounterVec("messages_total", "Total messages sent, per topic.", "topic"),
		consumerLag:   f.GaugeVec("consumer_lag", "Topic length minus committed offset, per topic and group.", "topic", "group"),
	}
}

func (ps *PubSub) topicFor(name string) *topic {
	if v, ok := ps.topics.Load(name); ok {
		return v.(*topic)
	}
	t := newTopic(ps.messagesTotal.WithLabelValues(name), ps.consumerLag.MustCurryWith(prometheus.Labels{"topic": name}))
	actual, _ := ps.topics.LoadOrStore(name, t)
	return actual.(*topic)
}

// Producer returns a handle bound to topicName.
func (ps *PubSub) Producer(topicName string) *Producer {
	return &Producer{t: ps.topicFor(topicName)}
}

// Consumer returns a handle bound to topicName and groupName. Groups
// are created lazily at the first Poll or Commit if they don't already
// exist.
func (ps *PubSub) Consumer(topicName, groupName string) *Consumer {
	return &Consumer{t: ps.topicFor(topicName), group: groupName}
}

// Producer sends messages to one topic.
type Producer struct {
	t *topic
}

// Send atomically appends a Message with key/value and a wall-clock
// timestamp. It always succeeds while the process is alive.
func (p *Producer) Send(key string, value []byte) Message {
	return p.t.send(key, value)
}

// Consumer polls and commits offsets for one (topic, group) pair.
type Consumer struct {
	t     *topic
	group string
}

// Poll returns a snapshot slice starting at the group's committed
// offset, of length up to min(maxN, topicLen-offset). It never
// advances the offset.
func (c *Consumer) Poll(maxN int) []Message {
	return c.t.poll(c.group, maxN)
}

// Commit advances the group's committed offset monotonically to
// min(newOffset, topic length). A newOffset at or before the current
// offset is a no-op.
func (c *Consumer) Commit(newOffset uint64) {
	c.t.commit(c.group, newOffset)
}
