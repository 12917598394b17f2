package dmp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	v1 "github.com/dmphub-lab/dmphub/internal/api/v1"
	"github.com/dmphub-lab/dmphub/internal/core/storage"
	"github.com/dmphub-lab/dmphub/internal/identifier"
	"github.com/dmphub-lab/dmphub/internal/notify"
	"github.com/dmphub-lab/dmphub/internal/provenance"
	"github.com/dmphub-lab/dmphub/internal/schema"
	"go.opentelemetry.io/otel/attribute"
)

// Update applies doc to the latest version of the plan id. The owning
// provenance submits a full document under the author contract; any other
// provenance an amendment under the amend contract.
//
// When nothing would change, the current record is returned together with
// ErrNoChange.
func (s *Service) Update(ctx context.Context, prov *provenance.Provenance, id string, doc map[string]interface{}) (rec *v1.Record, err error) {
	ctx, span := s.startSpan(ctx, "update")
	defer func() { s.finish(span, "update", err) }()

	if prov == nil {
		return nil, ErrForbidden
	}
	pk, err := s.codec.ToPartitionKey(id)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("pk", pk), attribute.String("provenance", prov.Name))

	current, err := s.getLatest(ctx, pk)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoHistoricalMutation
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", pk, err)
	}

	isOwner := prov.Name == current.OwningProvenance
	mutation, err := s.decodeMutation(ctx, prov, pk, isOwner, doc)
	if err != nil {
		return nil, err
	}

	attempts := 1
	if s.cfg.ConditionalWrites {
		attempts = casRetries
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		next, err := s.ApplyUpdate(ctx, prov, pk, current, mutation)
		switch {
		case err == nil:
			s.publish(ctx, notify.ActionUpdate, next, isOwner)
			versions, err := s.VersionHistory(ctx, pk)
			if err != nil {
				return nil, err
			}
			return recordOf(next, versions)

		case errors.Is(err, ErrNoChange):
			versions, verr := s.VersionHistory(ctx, pk)
			if verr != nil {
				return nil, verr
			}
			rec, rerr := recordOf(current, versions)
			if rerr != nil {
				return nil, rerr
			}
			return rec, ErrNoChange

		case errors.Is(err, storage.ErrConditionFailed):
			slog.Warn("[DMP] Latest version changed during update, retrying",
				"pk", pk,
				"attempt", attempt,
			)
			current, err = s.getLatest(ctx, pk)
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrNoHistoricalMutation
			}
			if err != nil {
				return nil, fmt.Errorf("get %s: %w", pk, err)
			}

		default:
			return nil, err
		}
	}
	return nil, ErrWriteConflict
}

// decodeMutation validates doc under the caller's contract and checks it
// targets pk.
func (s *Service) decodeMutation(ctx context.Context, prov *provenance.Provenance, pk string, isOwner bool, doc map[string]interface{}) (Mutation, error) {
	contract := schema.ContractAmend
	if isOwner {
		contract = schema.ContractAuthor
	}
	if err := s.validate(ctx, prov, contract, doc); err != nil {
		return nil, err
	}

	if isOwner {
		author, err := v1.DecodeAuthor(doc)
		if err != nil {
			return nil, invalidField(contract, "", err.Error())
		}
		if author.DmpID != nil && author.DmpID.Identifier != "" {
			if err := s.sameTarget(contract, pk, author.DmpID.Identifier); err != nil {
				return nil, err
			}
		}
		return OwnerMutation{Document: author}, nil
	}

	amend, err := v1.DecodeAmend(doc)
	if err != nil {
		return nil, invalidField(contract, "", err.Error())
	}
	if err := s.sameTarget(contract, pk, amend.DmpID.Identifier); err != nil {
		return nil, err
	}
	return AmendMutation{Document: amend}, nil
}

func (s *Service) sameTarget(contract schema.Contract, pk, id string) error {
	target, err := s.codec.ToPartitionKey(id)
	if err != nil || target != pk {
		return invalidField(contract, "dmp_id.identifier", fmt.Sprintf("%q does not identify the plan being updated", id))
	}
	return nil
}

// Tombstone retires the plan id. Only the owning provenance may do so. The
// latest version moves to VERSION#tombstone with an obsolete title;
// snapshots stay addressable.
func (s *Service) Tombstone(ctx context.Context, prov *provenance.Provenance, id string) (rec *v1.Record, err error) {
	ctx, span := s.startSpan(ctx, "tombstone")
	defer func() { s.finish(span, "tombstone", err) }()

	if prov == nil {
		return nil, ErrForbidden
	}
	pk, err := s.codec.ToPartitionKey(id)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("pk", pk), attribute.String("provenance", prov.Name))

	current, err := s.getLatest(ctx, pk)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoHistoricalMutation
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", pk, err)
	}
	if current.OwningProvenance != prov.Name {
		return nil, ErrForbidden
	}

	now := s.nowFn().UTC()
	tomb := current.copyAs(identifier.TombstoneSortKey)
	tomb.DMP.Modified = s.nextModified(current.DMP.Modified)
	tomb.UpdatedAt = now
	tomb.TombstonedAt = &now
	if !strings.HasPrefix(tomb.DMP.Title, ObsoletePrefix) {
		tomb.DMP.Title = ObsoletePrefix + tomb.DMP.Title
	}

	err = s.put(ctx, tomb, &storage.Condition{NotExists: true})
	if errors.Is(err, storage.ErrConditionFailed) {
		return nil, ErrNoHistoricalMutation
	}
	if err != nil {
		return nil, fmt.Errorf("put tombstone %s: %w", pk, err)
	}
	if err := s.kv.Delete(ctx, pk, identifier.LatestSortKey); err != nil {
		return nil, fmt.Errorf("delete latest %s: %w", pk, err)
	}

	slog.Info("[DMP] Tombstoned", "pk", pk, "provenance", prov.Name)
	s.publish(ctx, notify.ActionTombstone, tomb, true)

	versions, err := s.VersionHistory(ctx, pk)
	if err != nil {
		return nil, err
	}
	return recordOf(tomb, versions)
}

// TombstoneDocument retires the plan named by a delete-contract document.
func (s *Service) TombstoneDocument(ctx context.Context, prov *provenance.Provenance, doc map[string]interface{}) (*v1.Record, error) {
	if prov == nil {
		return nil, ErrForbidden
	}
	if err := s.validate(ctx, prov, schema.ContractDelete, doc); err != nil {
		return nil, err
	}
	del, err := v1.DecodeDelete(doc)
	if err != nil {
		return nil, invalidField(schema.ContractDelete, "", err.Error())
	}
	if _, err := s.codec.ToPartitionKey(del.DmpID.Identifier); err != nil {
		return nil, invalidField(schema.ContractDelete, "dmp_id.identifier", err.Error())
	}
	return s.Tombstone(ctx, prov, del.DmpID.Identifier)
}
