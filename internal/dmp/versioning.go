package dmp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmphub-lab/dmphub/internal/core/storage"
	"github.com/dmphub-lab/dmphub/internal/identifier"
	"github.com/dmphub-lab/dmphub/internal/provenance"
)

// ApplyUpdate merges mutation into current and persists the result as the
// new latest version of pk.
//
// The current version is first cloned to an immutable snapshot when the
// caller is not the owning provenance, or when the owner's last edit is older
// than the quiescence window. The snapshot is written before the new latest.
//
// With conditional writes enabled the latest write fails with
// storage.ErrConditionFailed if current is no longer the stored version.
func (s *Service) ApplyUpdate(ctx context.Context, prov *provenance.Provenance, pk string, current *StoredDMP, mutation Mutation) (*StoredDMP, error) {
	if err := s.versionable(pk, current); err != nil {
		return nil, err
	}

	isOwner := prov.Name == current.OwningProvenance
	merged := splice(&current.DMP, prov.Name, mutation)
	if unchanged(&current.DMP, merged) {
		return current, ErrNoChange
	}

	now := s.nowFn().UTC()
	if !isOwner || now.Sub(current.DMP.Modified) > s.cfg.QuiescenceWindow {
		if err := s.snapshot(ctx, current); err != nil {
			return nil, err
		}
	}

	next := &StoredDMP{
		PK:                   pk,
		SK:                   identifier.LatestSortKey,
		DMP:                  *merged,
		OwningProvenance:     current.OwningProvenance,
		OwnerOrg:             current.OwnerOrg,
		ProvenanceIdentifier: current.ProvenanceIdentifier,
		CreatedAt:            current.CreatedAt,
		UpdatedAt:            now,
	}
	next.DMP.Modified = s.nextModified(current.DMP.Modified)
	if isOwner {
		// The owner may have moved the plan to another organization.
		if org, err := OwnerOrg(&next.DMP); err == nil {
			next.OwnerOrg = org
		}
	}
	next.refreshDerived()

	var cond *storage.Condition
	if s.cfg.ConditionalWrites {
		cond = &storage.Condition{Attribute: attrUpdatedAt, Equals: current.updateToken()}
	}
	if err := s.put(ctx, next, cond); err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("put %s: %w", pk, err)
	}
	return next, nil
}

// versionable requires the latest version to carry the identifier it is
// stored under.
func (s *Service) versionable(pk string, current *StoredDMP) error {
	if current == nil || current.PK != pk || !current.IsLatest() {
		return ErrNotVersionable
	}
	if current.DMP.DmpID == nil {
		return ErrNotVersionable
	}
	stored, err := s.codec.ToPartitionKey(current.DMP.DmpID.Identifier)
	if err != nil || stored != pk {
		return ErrNotVersionable
	}
	return nil
}

// snapshot clones the current version to VERSION#<its modified timestamp>.
// Snapshots are immutable, so an existing one (left behind by an earlier
// attempt whose latest write failed) is kept as is.
func (s *Service) snapshot(ctx context.Context, current *StoredDMP) error {
	snap := current.copyAs(identifier.SnapshotSortKey(current.DMP.Modified))
	err := s.put(ctx, snap, &storage.Condition{NotExists: true})
	if errors.Is(err, storage.ErrConditionFailed) {
		slog.Warn("[DMP] Snapshot already exists, keeping it", "pk", snap.PK, "sk", snap.SK)
		return nil
	}
	if err != nil {
		return fmt.Errorf("put snapshot %s %s: %w", snap.PK, snap.SK, err)
	}
	return nil
}
