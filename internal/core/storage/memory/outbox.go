package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmphub-lab/dmphub/internal/core/storage"
)

// Outbox is an in-memory implementation of storage.Outbox.
type Outbox struct {
	mu          sync.Mutex
	entries     []*storage.OutboxEntry
	seen        map[string]struct{}
	checkpoints map[string]int64
}

func NewOutbox() *Outbox {
	return &Outbox{
		seen:        make(map[string]struct{}),
		checkpoints: make(map[string]int64),
	}
}

func (o *Outbox) Append(ctx context.Context, entry *storage.OutboxEntry) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, dup := o.seen[entry.EventID]; dup {
		return nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Seq = int64(len(o.entries) + 1)

	copy := *entry
	o.entries = append(o.entries, &copy)
	o.seen[entry.EventID] = struct{}{}
	return nil
}

func (o *Outbox) ReadAfter(ctx context.Context, cursor int64, limit int) ([]*storage.OutboxEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []*storage.OutboxEntry
	for _, e := range o.entries {
		if e.Seq <= cursor {
			continue
		}
		copy := *e
		out = append(out, &copy)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (o *Outbox) ReadCheckpoint(ctx context.Context, relay string) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.checkpoints[relay], nil
}

func (o *Outbox) Advance(ctx context.Context, relay string, cursor int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if cursor > o.checkpoints[relay] {
		o.checkpoints[relay] = cursor
	}
	return nil
}
