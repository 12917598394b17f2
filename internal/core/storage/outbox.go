package storage

import (
	"context"
	"time"
)

// OutboxEntry is one change event waiting to be relayed to a sink.
type OutboxEntry struct {
	Seq          int64
	EventID      string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// Outbox is a durable, totally ordered log of change events plus named
// relay checkpoints.
type Outbox interface {
	// Append stores the entry and populates Seq. Appending an EventID twice
	// is a no-op.
	Append(ctx context.Context, entry *OutboxEntry) error

	// ReadAfter returns up to limit entries with Seq > cursor, in Seq order.
	// cursor=0 means "from the beginning".
	ReadAfter(ctx context.Context, cursor int64, limit int) ([]*OutboxEntry, error)

	// ReadCheckpoint returns the relay's cursor, 0 if it has none yet.
	ReadCheckpoint(ctx context.Context, relay string) (int64, error)

	// Advance moves the relay's cursor forward. Stale cursors are ignored.
	Advance(ctx context.Context, relay string, cursor int64) error
}
