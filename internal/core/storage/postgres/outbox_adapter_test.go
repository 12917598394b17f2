package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmphub-lab/dmphub/internal/core/storage"
	"github.com/stretchr/testify/require"
)

func newMockOutbox(t *testing.T, now time.Time) (*OutboxAdapter, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	adapter := NewOutboxAdapter(db)
	adapter.nowFn = func() time.Time { return now }
	return adapter, mock
}

func TestOutboxAdapter_AppendSetsSeq(t *testing.T) {
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	adapter, mock := newMockOutbox(t, now)

	entry := &storage.OutboxEntry{EventID: "evt-1", PartitionKey: "DMP#doi.org/10.1/a", Payload: []byte(`{}`)}

	mock.ExpectQuery(regexp.QuoteMeta(queryAppendEvent)).
		WithArgs("evt-1", "DMP#doi.org/10.1/a", []byte(`{}`), now).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(7)))

	require.NoError(t, adapter.Append(context.Background(), entry))
	require.Equal(t, int64(7), entry.Seq)
	require.Equal(t, now, entry.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxAdapter_AppendDuplicateIsNoop(t *testing.T) {
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	adapter, mock := newMockOutbox(t, now)

	entry := &storage.OutboxEntry{EventID: "evt-1", PartitionKey: "DMP#a", Payload: []byte(`{}`), CreatedAt: now}

	mock.ExpectQuery(regexp.QuoteMeta(queryAppendEvent)).
		WithArgs("evt-1", "DMP#a", []byte(`{}`), now).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}))

	require.NoError(t, adapter.Append(context.Background(), entry))
	require.Equal(t, int64(0), entry.Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxAdapter_ReadAfter(t *testing.T) {
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	adapter, mock := newMockOutbox(t, now)

	mock.ExpectQuery(regexp.QuoteMeta(queryEventsAfterCursor)).
		WithArgs(int64(10), 2).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "event_id", "partition_key", "payload", "created_at"}).
			AddRow(int64(11), "evt-11", "DMP#a", []byte(`{"action":"create"}`), now).
			AddRow(int64(12), "evt-12", "DMP#b", []byte(`{"action":"update"}`), now.Add(time.Second))).
		RowsWillBeClosed()

	entries, err := adapter.ReadAfter(context.Background(), 10, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(11), entries[0].Seq)
	require.Equal(t, "DMP#b", entries[1].PartitionKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxAdapter_ReadCheckpointDefaultsToZero(t *testing.T) {
	adapter, mock := newMockOutbox(t, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(queryReadCheckpoint)).
		WithArgs("redis").
		WillReturnRows(sqlmock.NewRows([]string{"checkpoint_cursor"}))

	cursor, err := adapter.ReadCheckpoint(context.Background(), "redis")
	require.NoError(t, err)
	require.Equal(t, int64(0), cursor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxAdapter_AdvanceSkipsStaleCursor(t *testing.T) {
	adapter, mock := newMockOutbox(t, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(querySelectCheckpointForUpdate)).
		WithArgs("redis").
		WillReturnRows(sqlmock.NewRows([]string{"checkpoint_cursor"}).AddRow(int64(100)))
	mock.ExpectRollback()

	require.NoError(t, adapter.Advance(context.Background(), "redis", 100))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxAdapter_AdvanceInitializesRow(t *testing.T) {
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	adapter, mock := newMockOutbox(t, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(querySelectCheckpointForUpdate)).
		WithArgs("kafka").
		WillReturnRows(sqlmock.NewRows([]string{"checkpoint_cursor"}))
	mock.ExpectExec(regexp.QuoteMeta(queryInitCheckpointRow)).
		WithArgs("kafka", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(querySelectCheckpointForUpdate)).
		WithArgs("kafka").
		WillReturnRows(sqlmock.NewRows([]string{"checkpoint_cursor"}).AddRow(int64(0)))
	mock.ExpectExec(regexp.QuoteMeta(queryUpdateCheckpoint)).
		WithArgs(int64(5), now, "kafka").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, adapter.Advance(context.Background(), "kafka", 5))
	require.NoError(t, mock.ExpectationsWereMet())
}
