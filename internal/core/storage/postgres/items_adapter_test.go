package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"math"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmphub-lab/dmphub/internal/core/storage"
	"github.com/stretchr/testify/require"
)

func TestAdapter_Get(t *testing.T) {
	tests := []struct {
		name       string
		mockResult func(mock sqlmock.Sqlmock)
		assertions func(t *testing.T, item *storage.Item, err error)
	}{
		{
			name: "found",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryGetItem)).
					WithArgs("DMP#doi.org/10.1/a", "VERSION#latest").
					WillReturnRows(sqlmock.NewRows(itemRowColumns()).
						AddRow("DMP#doi.org/10.1/a", "VERSION#latest", []byte(`{"title":"Plan","cost":[{"value":"12.50"}]}`)))
			},
			assertions: func(t *testing.T, item *storage.Item, err error) {
				require.NoError(t, err)
				require.Equal(t, "Plan", item.String("title"))
				require.Equal(t, "12.50", item.Attrs["cost"].([]interface{})[0].(map[string]interface{})["value"])
			},
		},
		{
			name: "missing maps to ErrNotFound",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryGetItem)).
					WithArgs("DMP#doi.org/10.1/a", "VERSION#latest").
					WillReturnRows(sqlmock.NewRows(itemRowColumns()))
			},
			assertions: func(t *testing.T, item *storage.Item, err error) {
				require.ErrorIs(t, err, storage.ErrNotFound)
				require.Nil(t, item)
			},
		},
		{
			name: "driver error is wrapped",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryGetItem)).
					WithArgs("DMP#doi.org/10.1/a", "VERSION#latest").
					WillReturnError(errors.New("connection reset"))
			},
			assertions: func(t *testing.T, item *storage.Item, err error) {
				require.ErrorContains(t, err, "failed to get item")
				require.NotErrorIs(t, err, storage.ErrNotFound)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t)
			defer db.Close()

			tc.mockResult(mock)
			item, err := adapter.Get(context.Background(), "DMP#doi.org/10.1/a", "VERSION#latest")
			tc.assertions(t, item, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_Put(t *testing.T) {
	item := &storage.Item{
		PK: "DMP#doi.org/10.1/a",
		SK: "VERSION#latest",
		Attrs: map[string]interface{}{
			"title":                        "Plan",
			"dmphub_owner_org":             "https://ror.org/01",
			"dmphub_provenance_identifier": "alpha#123",
			"dmphub_updated_at":            "2026-02-08T12:00:00Z",
		},
	}
	indexArgs := []driver.Value{
		item.PK,
		item.SK,
		sqlmock.AnyArg(),
		sql.NullString{String: "https://ror.org/01", Valid: true},
		sql.NullString{},
		sql.NullString{String: "alpha#123", Valid: true},
		sql.NullString{},
		sql.NullString{String: "2026-02-08T12:00:00Z", Valid: true},
	}

	tests := []struct {
		name       string
		cond       *storage.Condition
		mockResult func(mock sqlmock.Sqlmock)
		wantErr    error
	}{
		{
			name: "unconditional upsert",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(queryPutItem)).
					WithArgs(indexArgs...).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "insert wins",
			cond: &storage.Condition{NotExists: true},
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryInsertItem)).
					WithArgs(indexArgs...).
					WillReturnRows(sqlmock.NewRows([]string{"pk"}).AddRow(item.PK))
			},
		},
		{
			name: "insert loses maps to ErrConditionFailed",
			cond: &storage.Condition{NotExists: true},
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryInsertItem)).
					WithArgs(indexArgs...).
					WillReturnRows(sqlmock.NewRows([]string{"pk"}))
			},
			wantErr: storage.ErrConditionFailed,
		},
		{
			name: "swap wins",
			cond: &storage.Condition{Attribute: "dmphub_updated_at", Equals: "2026-02-08T11:00:00Z"},
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(querySwapItem)).
					WithArgs(append(indexArgs, "dmphub_updated_at", "2026-02-08T11:00:00Z")...).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "swap on stale value maps to ErrConditionFailed",
			cond: &storage.Condition{Attribute: "dmphub_updated_at", Equals: "stale"},
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(querySwapItem)).
					WithArgs(append(indexArgs, "dmphub_updated_at", "stale")...).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: storage.ErrConditionFailed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t)
			defer db.Close()

			tc.mockResult(mock)
			err := adapter.Put(context.Background(), item, tc.cond)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_PutMarshalErrorShortCircuits(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	err := adapter.Put(context.Background(), &storage.Item{
		PK:    "DMP#a",
		SK:    "VERSION#latest",
		Attrs: map[string]interface{}{"value": math.NaN()},
	}, nil)
	require.ErrorContains(t, err, "failed to marshal attrs")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_QueryPartitionAppliesFilterAndProjection(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryPartition)).
		WithArgs("DMP#doi.org/10.1/a", "VERSION#").
		WillReturnRows(sqlmock.NewRows(itemRowColumns()).
			AddRow("DMP#doi.org/10.1/a", "VERSION#2026-01-01T00:00:00Z", []byte(`{"title":"Old","modified":"2026-01-01T00:00:00Z"}`)).
			AddRow("DMP#doi.org/10.1/a", "VERSION#latest", []byte(`{"title":"New","modified":"2026-02-01T00:00:00Z"}`))).
		RowsWillBeClosed()

	items, err := adapter.Query(context.Background(), storage.Query{
		PK:         "DMP#doi.org/10.1/a",
		SKPrefix:   "VERSION#",
		Projection: []string{"modified"},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "VERSION#2026-01-01T00:00:00Z", items[0].SK)
	require.Equal(t, map[string]interface{}{"modified": "2026-01-01T00:00:00Z"}, items[0].Attrs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_QueryIndex(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryByProvenanceIdentifier)).
		WithArgs("alpha#123").
		WillReturnRows(sqlmock.NewRows(itemRowColumns()).
			AddRow("DMP#doi.org/10.1/a", "VERSION#2026-01-01T00:00:00Z", []byte(`{}`)).
			AddRow("DMP#doi.org/10.1/a", "VERSION#latest", []byte(`{"title":"Plan"}`)))

	items, err := adapter.Query(context.Background(), storage.Query{
		Index:      storage.IndexProvenanceIdentifier,
		IndexValue: "alpha#123",
		SK:         "VERSION#latest",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Plan", items[0].String("title"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_QueryRejectsInvalid(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	_, err := adapter.Query(context.Background(), storage.Query{Index: "title", IndexValue: "x"})
	require.ErrorContains(t, err, "unknown index")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Delete(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(queryDeleteItem)).
		WithArgs("DMP#a", "VERSION#latest").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.Delete(context.Background(), "DMP#a", "VERSION#latest"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	adapter := &Adapter{
		db:         db,
		stmtGet:    mustPrepareStmt(t, db, mock, queryGetItem),
		stmtPut:    mustPrepareStmt(t, db, mock, queryPutItem),
		stmtInsert: mustPrepareStmt(t, db, mock, queryInsertItem),
		stmtSwap:   mustPrepareStmt(t, db, mock, querySwapItem),
		stmtDelete: mustPrepareStmt(t, db, mock, queryDeleteItem),
		stmtScan:   mustPrepareStmt(t, db, mock, queryPartition),
		stmtIndex:  make(map[string]*sql.Stmt, len(indexQueries)),
	}
	for _, iq := range indexQueries {
		adapter.stmtIndex[iq.index] = mustPrepareStmt(t, db, mock, iq.query)
	}

	return adapter, mock, db
}

func mustPrepareStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()

	mock.ExpectPrepare(regexp.QuoteMeta(query))
	stmt, err := db.Prepare(query)
	require.NoError(t, err)

	return stmt
}

func itemRowColumns() []string {
	return []string{"pk", "sk", "attrs"}
}

func TestNewAdapterWithDB_RequiresMigratedSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("dmp_items").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("change_events").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = NewAdapterWithDB(db)
	require.ErrorContains(t, err, "change_events table does not exist")
	require.NoError(t, mock.ExpectationsWereMet())
}
