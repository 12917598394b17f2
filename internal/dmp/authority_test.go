package dmp

import (
	"context"
	"testing"
	"time"

	"github.com/dmphub-lab/dmphub/internal/identifier"
	"github.com/dmphub-lab/dmphub/internal/notify"
	"github.com/stretchr/testify/require"
)

func TestTombstone_NonOwnerForbidden(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	createPlan(t, f)

	_, err := f.svc.Tombstone(ctx, otherProv, testID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Tombstone(ctx, nil, testID)
	require.ErrorIs(t, err, ErrForbidden)

	require.Equal(t, []string{identifier.LatestSortKey}, f.sortKeys(t, testPK))
	require.Equal(t, "Soil carbon survey", f.latest(t, testPK).DMP.Title)
	require.Len(t, f.pub.Events(), 1)
}

func TestTombstone_Owner(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	createPlan(t, f)

	f.clock.Advance(time.Minute)
	_, err := f.svc.Update(ctx, otherProv, testID, amendDoc(testID,
		relatedEntry("is_supplemented_by", "https://doi.org/10.5281/zenodo.1"),
	))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	rec, err := f.svc.Tombstone(ctx, ownerProv, testID)
	require.NoError(t, err)
	require.Equal(t, "OBSOLETE: Soil carbon survey", rec.Title)
	require.Len(t, rec.Versions, 1)

	require.ElementsMatch(t,
		[]string{identifier.SnapshotSortKey(t0), identifier.TombstoneSortKey},
		f.sortKeys(t, testPK),
	)

	_, err = f.svc.Get(ctx, testID, "")
	require.ErrorIs(t, err, ErrNotFound)

	tomb, err := f.svc.Get(ctx, testID, identifier.TombstoneLabel)
	require.NoError(t, err)
	require.Equal(t, "OBSOLETE: Soil carbon survey", tomb.Title)

	snap, err := f.svc.Get(ctx, testID, t0.Format(time.RFC3339))
	require.NoError(t, err)
	require.Equal(t, "Soil carbon survey", snap.Title)

	item, err := f.kv.Get(ctx, testPK, identifier.TombstoneSortKey)
	require.NoError(t, err)
	require.Equal(t, t0.Add(2*time.Minute).Format(time.RFC3339), item.String(attrTombstonedAt))

	events := f.pub.Events()
	require.Equal(t, notify.ActionTombstone, events[len(events)-1].Action)
	require.Equal(t, identifier.TombstoneSortKey, events[len(events)-1].SortKey)
}

func TestTombstone_IsTerminal(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	createPlan(t, f)

	_, err := f.svc.Tombstone(ctx, ownerProv, testID)
	require.NoError(t, err)

	_, err = f.svc.Tombstone(ctx, ownerProv, testID)
	require.ErrorIs(t, err, ErrNoHistoricalMutation)

	_, err = f.svc.Update(ctx, ownerProv, testID, ownerEdit("Revived"))
	require.ErrorIs(t, err, ErrNoHistoricalMutation)

	_, err = f.svc.Update(ctx, otherProv, testID, amendDoc(testID))
	require.ErrorIs(t, err, ErrNoHistoricalMutation)
}

func TestTombstoneDocument(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	createPlan(t, f)

	var vf *ValidationFailure
	_, err := f.svc.TombstoneDocument(ctx, ownerProv, map[string]interface{}{"dmp_id": map[string]interface{}{}})
	require.ErrorAs(t, err, &vf)
	require.Equal(t, "delete", string(vf.Contract))

	_, err = f.svc.TombstoneDocument(ctx, ownerProv, map[string]interface{}{
		"dmp_id": map[string]interface{}{"type": "doi", "identifier": "nonsense"},
	})
	require.ErrorAs(t, err, &vf)

	rec, err := f.svc.TombstoneDocument(ctx, ownerProv, map[string]interface{}{
		"dmp_id": map[string]interface{}{"type": "doi", "identifier": testID},
	})
	require.NoError(t, err)
	require.Equal(t, "OBSOLETE: Soil carbon survey", rec.Title)
}
