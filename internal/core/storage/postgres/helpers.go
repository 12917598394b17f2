package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmphub-lab/dmphub/internal/core/storage"
)

// itemColumns is the argument list shared by queryPutItem, queryInsertItem
// and the first eight parameters of querySwapItem.
type itemColumns struct {
	attrs                []byte
	ownerOrg             sql.NullString
	contactID            sql.NullString
	provenanceIdentifier sql.NullString
	fingerprint          sql.NullString
	updatedAt            sql.NullString
}

// marshalItem encodes attrs as JSON and lifts the indexed attributes into
// their own columns. Empty values become SQL NULL so they never match a lookup.
func marshalItem(item *storage.Item) (*itemColumns, error) {
	attrs := item.Attrs
	if attrs == nil {
		attrs = map[string]interface{}{}
	}

	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attrs: %w", err)
	}

	return &itemColumns{
		attrs:                raw,
		ownerOrg:             nullString(item.String(storage.IndexAttributes[storage.IndexOwnerOrg])),
		contactID:            nullString(item.String(storage.IndexAttributes[storage.IndexContactID])),
		provenanceIdentifier: nullString(item.String(storage.IndexAttributes[storage.IndexProvenanceIdentifier])),
		fingerprint:          nullString(item.String(storage.IndexAttributes[storage.IndexFingerprint])),
		updatedAt:            nullString(item.String("dmphub_updated_at")),
	}, nil
}

func (c *itemColumns) args(item *storage.Item) []interface{} {
	return []interface{}{
		item.PK,
		item.SK,
		c.attrs,
		c.ownerOrg,
		c.contactID,
		c.provenanceIdentifier,
		c.fingerprint,
		c.updatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanItemRow scans a (pk, sk, attrs) row.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanItemRow(row scanner) (*storage.Item, error) {
	var item storage.Item
	var attrsJSON []byte

	if err := row.Scan(&item.PK, &item.SK, &attrsJSON); err != nil {
		return nil, err
	}

	item.Attrs = map[string]interface{}{}
	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &item.Attrs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attrs for %s/%s: %w", item.PK, item.SK, err)
		}
	}
	return &item, nil
}

func collectItems(rows *sql.Rows, q storage.Query) ([]*storage.Item, error) {
	defer rows.Close()

	var items []*storage.Item
	for rows.Next() {
		item, err := scanItemRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		if !q.Matches(item) {
			continue
		}
		items = append(items, q.Project(item))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}
