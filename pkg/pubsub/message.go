package pubsub

import "github.com/google/uuid"

// Message is one entry in a Topic's append-only log. ID is a random
// correlation identifier for external log-tracing; it plays no part in
// ordering. Timestamp is wall-clock milliseconds assigned at enqueue
// and is advisory only — append order is the authoritative order.
type Message struct {
	ID        uuid.UUID
	Key       string
	Value     []byte
	Timestamp int64
}
