package postgres

import "github.com/dmphub-lab/dmphub/internal/core/storage"

// SQL queries for the item gateway and the change-event outbox.

const (
	// queryGetItem is a point lookup on the (pk, sk) primary key.
	queryGetItem = `
		SELECT pk, sk, attrs
		FROM dmp_items
		WHERE pk = $1 AND sk = $2
	`

	// queryPutItem fully replaces an item. Index columns are denormalized
	// from attrs on every write so secondary lookups stay index-backed.
	queryPutItem = `
		INSERT INTO dmp_items (
			pk, sk, attrs,
			owner_org, contact_id, provenance_identifier, fingerprint, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (pk, sk) DO UPDATE SET
			attrs                 = EXCLUDED.attrs,
			owner_org             = EXCLUDED.owner_org,
			contact_id            = EXCLUDED.contact_id,
			provenance_identifier = EXCLUDED.provenance_identifier,
			fingerprint           = EXCLUDED.fingerprint,
			updated_at            = EXCLUDED.updated_at
	`

	// queryInsertItem writes an item only if nothing is stored at (pk, sk).
	// ON CONFLICT DO NOTHING returns no rows (sql.ErrNoRows) when it loses.
	queryInsertItem = `
		INSERT INTO dmp_items (
			pk, sk, attrs,
			owner_org, contact_id, provenance_identifier, fingerprint, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (pk, sk) DO NOTHING
		RETURNING pk
	`

	// querySwapItem replaces an item only if one of its attributes still holds
	// the value the caller read.
	querySwapItem = `
		UPDATE dmp_items SET
			attrs                 = $3,
			owner_org             = $4,
			contact_id            = $5,
			provenance_identifier = $6,
			fingerprint           = $7,
			updated_at            = $8
		WHERE pk = $1 AND sk = $2 AND attrs->>$9 = $10
	`

	queryDeleteItem = `DELETE FROM dmp_items WHERE pk = $1 AND sk = $2`

	// queryPartition lists one partition in sort key order.
	queryPartition = `
		SELECT pk, sk, attrs
		FROM dmp_items
		WHERE pk = $1 AND starts_with(sk, $2)
		ORDER BY sk ASC
	`

	queryByOwnerOrg = `
		SELECT pk, sk, attrs
		FROM dmp_items
		WHERE owner_org = $1
		ORDER BY pk ASC, sk ASC
	`

	queryByContactID = `
		SELECT pk, sk, attrs
		FROM dmp_items
		WHERE contact_id = $1
		ORDER BY pk ASC, sk ASC
	`

	queryByProvenanceIdentifier = `
		SELECT pk, sk, attrs
		FROM dmp_items
		WHERE provenance_identifier = $1
		ORDER BY pk ASC, sk ASC
	`

	queryByFingerprint = `
		SELECT pk, sk, attrs
		FROM dmp_items
		WHERE fingerprint = $1
		ORDER BY pk ASC, sk ASC
	`

	// queryAppendEvent adds a change event to the outbox. seq is a bigserial
	// and gives relays a strict total order to resume from.
	queryAppendEvent = `
		INSERT INTO change_events (event_id, partition_key, payload, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING seq
	`

	queryEventsAfterCursor = `
		SELECT seq, event_id, partition_key, payload, created_at
		FROM change_events
		WHERE seq > $1
		ORDER BY seq ASC
		LIMIT $2
	`

	querySelectCheckpointForUpdate = `
		SELECT checkpoint_cursor
		FROM relay_checkpoints
		WHERE relay_name = $1
		FOR UPDATE
	`

	queryInitCheckpointRow = `
		INSERT INTO relay_checkpoints (relay_name, checkpoint_cursor, updated_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (relay_name) DO NOTHING
	`

	queryUpdateCheckpoint = `
		UPDATE relay_checkpoints
		SET checkpoint_cursor = $1, updated_at = $2
		WHERE relay_name = $3
	`

	queryReadCheckpoint = `SELECT checkpoint_cursor FROM relay_checkpoints WHERE relay_name = $1`
)

// indexQueries binds each secondary index to its lookup statement.
var indexQueries = []struct {
	index string
	query string
}{
	{index: storage.IndexOwnerOrg, query: queryByOwnerOrg},
	{index: storage.IndexContactID, query: queryByContactID},
	{index: storage.IndexProvenanceIdentifier, query: queryByProvenanceIdentifier},
	{index: storage.IndexFingerprint, query: queryByFingerprint},
}
