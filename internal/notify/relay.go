package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmphub-lab/dmphub/internal/core/storage"
)

const (
	defaultRelayBatchSize = 500
	defaultRelayName      = "default"
)

// RelayOptions controls batch size and checkpoint naming.
type RelayOptions struct {
	Name      string
	Interval  time.Duration
	BatchSize int
}

func (o RelayOptions) normalized() RelayOptions {
	n := o
	if n.Name == "" {
		n.Name = defaultRelayName
	}
	if n.Interval <= 0 {
		n.Interval = 5 * time.Second
	}
	if n.BatchSize <= 0 {
		n.BatchSize = defaultRelayBatchSize
	}
	return n
}

// Relay drains the outbox into a sink on a periodic interval.
// It is stateless: each tick independently reads entries after the last checkpoint.
// The checkpoint only advances past entries the sink accepted, so delivery is
// at-least-once.
type Relay struct {
	outbox storage.Outbox
	sink   Publisher
	opts   RelayOptions
	// OnFailure is called for every event the sink rejects. Optional.
	OnFailure func(event *Event, err error)
}

func NewRelay(outbox storage.Outbox, sink Publisher, opts RelayOptions) *Relay {
	return &Relay{
		outbox: outbox,
		sink:   sink,
		opts:   opts.normalized(),
	}
}

// Start begins periodic relaying. Runs until context is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	slog.Info("[Relay] Starting outbox relay",
		"relay", r.opts.Name,
		"interval", r.opts.Interval,
		"batch_size", r.opts.BatchSize,
	)

	// Catch up with anything left from a previous run
	r.Drain(ctx)

	for {
		select {
		case <-ticker.C:
			r.Drain(ctx)
		case <-ctx.Done():
			slog.Info("[Relay] Stopping (context cancelled)", "relay", r.opts.Name)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			slog.Info("[Relay] Running final drain before shutdown...", "relay", r.opts.Name)
			r.Drain(shutdownCtx)
			slog.Info("[Relay] Final drain complete", "relay", r.opts.Name)

			return nil
		}
	}
}

// Drain relays batches until the backlog is empty, the sink fails, or a
// safety limit of consecutive batches is reached.
func (r *Relay) Drain(ctx context.Context) {
	batchCount := 0
	maxConsecutiveBatches := 100

	for batchCount < maxConsecutiveBatches {
		select {
		case <-ctx.Done():
			slog.Info("[Relay] Drain interrupted by context cancellation",
				"relay", r.opts.Name,
				"batches_processed", batchCount,
			)
			return
		default:
		}

		relayed, complete, err := r.RunBatch(ctx)
		if err != nil {
			slog.Error("[Relay] Batch failed",
				"error", err,
				"relay", r.opts.Name,
				"batch_number", batchCount+1,
			)
			return
		}

		batchCount++

		if !complete || relayed < r.opts.BatchSize {
			return
		}

		slog.Info("[Relay] Backlog detected, continuing to drain",
			"relay", r.opts.Name,
			"batches_so_far", batchCount,
		)
	}

	slog.Warn("[Relay] Max consecutive batches reached, pausing drain",
		"relay", r.opts.Name,
		"max_batches", maxConsecutiveBatches,
		"note", "Will resume on next tick",
	)
}

// RunBatch forwards one batch. It returns how many entries were delivered and
// whether the whole batch went through; on a sink failure the checkpoint stops
// just before the failed entry so it is retried on the next tick.
func (r *Relay) RunBatch(ctx context.Context) (int, bool, error) {
	cursor, err := r.outbox.ReadCheckpoint(ctx, r.opts.Name)
	if err != nil {
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}

	entries, err := r.outbox.ReadAfter(ctx, cursor, r.opts.BatchSize)
	if err != nil {
		return 0, false, fmt.Errorf("read outbox: %w", err)
	}
	if len(entries) == 0 {
		return 0, true, nil
	}

	delivered := 0
	newCursor := cursor
	complete := true
	for _, entry := range entries {
		event, err := DecodeEvent(entry.Payload)
		if err != nil {
			// Undecodable payloads are skipped.
			slog.Error("[Relay] Skipping undecodable entry", "seq", entry.Seq, "event_id", entry.EventID, "error", err)
			newCursor = entry.Seq
			continue
		}

		if err := r.sink.Publish(ctx, event); err != nil {
			slog.Warn("[Relay] Sink rejected event, will retry",
				"relay", r.opts.Name,
				"seq", entry.Seq,
				"event_id", entry.EventID,
				"error", err,
			)
			if r.OnFailure != nil {
				r.OnFailure(event, err)
			}
			complete = false
			break
		}
		delivered++
		newCursor = entry.Seq
	}

	if newCursor > cursor {
		if err := r.outbox.Advance(ctx, r.opts.Name, newCursor); err != nil {
			return delivered, false, fmt.Errorf("advance checkpoint: %w", err)
		}
	}

	slog.Info("[Relay] Batch complete",
		"relay", r.opts.Name,
		"events_relayed", delivered,
		"cursor_advanced", fmt.Sprintf("%d -> %d", cursor, newCursor),
	)

	return delivered, complete, nil
}
