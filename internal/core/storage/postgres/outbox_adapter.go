package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmphub-lab/dmphub/internal/core/storage"
)

// OutboxAdapter implements storage.Outbox using PostgreSQL.
type OutboxAdapter struct {
	db    *sql.DB
	nowFn func() time.Time
}

// NewOutboxAdapter creates a new OutboxAdapter sharing the given connection.
func NewOutboxAdapter(db *sql.DB) *OutboxAdapter {
	return &OutboxAdapter{db: db, nowFn: time.Now}
}

// Append inserts the entry and populates Seq. A duplicate EventID keeps the
// original row and leaves Seq at 0.
func (a *OutboxAdapter) Append(ctx context.Context, entry *storage.OutboxEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.nowFn().UTC()
	}

	var seq int64
	err := a.db.QueryRowContext(ctx, queryAppendEvent,
		entry.EventID,
		entry.PartitionKey,
		entry.Payload,
		entry.CreatedAt,
	).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("[Outbox] Duplicate event ignored", "event_id", entry.EventID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("outbox append: %w", err)
	}

	entry.Seq = seq
	return nil
}

// ReadAfter fetches entries after a cursor (seq) in strict total order.
func (a *OutboxAdapter) ReadAfter(ctx context.Context, cursor int64, limit int) ([]*storage.OutboxEntry, error) {
	rows, err := a.db.QueryContext(ctx, queryEventsAfterCursor, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox read: %w", err)
	}
	defer rows.Close()

	var entries []*storage.OutboxEntry
	for rows.Next() {
		var e storage.OutboxEntry
		if err := rows.Scan(&e.Seq, &e.EventID, &e.PartitionKey, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("outbox read: scan row: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox read: iterate rows: %w", err)
	}
	return entries, nil
}

// ReadCheckpoint returns the relay's checkpoint cursor.
// Returns 0 if no checkpoint exists yet (meaning "replay from beginning").
func (a *OutboxAdapter) ReadCheckpoint(ctx context.Context, relay string) (int64, error) {
	var cursor int64
	err := a.db.QueryRowContext(ctx, queryReadCheckpoint, relay).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read relay checkpoint: %w", err)
	}
	return cursor, nil
}

// Advance moves the relay checkpoint forward inside a transaction that locks
// the checkpoint row, so stale or out-of-order advances never move it back.
func (a *OutboxAdapter) Advance(ctx context.Context, relay string, cursor int64) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("relay checkpoint: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var durableCursor int64
	err = tx.QueryRowContext(ctx, querySelectCheckpointForUpdate, relay).Scan(&durableCursor)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err = tx.ExecContext(ctx, queryInitCheckpointRow, relay, a.nowFn().UTC()); err != nil {
			return fmt.Errorf("relay checkpoint: init row: %w", err)
		}
		err = tx.QueryRowContext(ctx, querySelectCheckpointForUpdate, relay).Scan(&durableCursor)
	}
	if err != nil {
		return fmt.Errorf("relay checkpoint: read for update: %w", err)
	}

	if cursor <= durableCursor {
		slog.Warn("[Outbox] Skipping stale checkpoint advance",
			"relay", relay,
			"cursor", cursor,
			"durable_cursor", durableCursor)
		return nil
	}

	result, err := tx.ExecContext(ctx, queryUpdateCheckpoint, cursor, a.nowFn().UTC(), relay)
	if err != nil {
		return fmt.Errorf("relay checkpoint: write: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("relay checkpoint: check write: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("relay checkpoint: row missing (relay=%s)", relay)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("relay checkpoint: commit: %w", err)
	}
	return nil
}
