package notify

import (
	"context"
	"fmt"

	"github.com/dmphub-lab/dmphub/internal/core/storage"
)

// OutboxPublisher records events in the durable outbox. A Relay forwards
// them to the real sink.
type OutboxPublisher struct {
	outbox storage.Outbox
}

func NewOutboxPublisher(outbox storage.Outbox) *OutboxPublisher {
	return &OutboxPublisher{outbox: outbox}
}

func (p *OutboxPublisher) Publish(ctx context.Context, event *Event) error {
	payload, err := event.Encode()
	if err != nil {
		return err
	}
	entry := &storage.OutboxEntry{
		EventID:      event.EventID,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		CreatedAt:    event.OccurredAt,
	}
	if err := p.outbox.Append(ctx, entry); err != nil {
		return fmt.Errorf("append event %s to outbox: %w", event.EventID, err)
	}
	return nil
}
