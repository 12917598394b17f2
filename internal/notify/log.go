package notify

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the structured log. It is the default sink
// when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event *Event) error {
	p.logger.InfoContext(ctx, "[Notify] Change event",
		"event_id", event.EventID,
		"action", event.Action,
		"partition_key", event.PartitionKey,
		"sort_key", event.SortKey,
		"owning_provenance", event.OwningProvenance,
		"updater_is_owner", event.UpdaterIsOwner,
	)
	return nil
}
