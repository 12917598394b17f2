package dmp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	v1 "github.com/dmphub-lab/dmphub/internal/api/v1"
	"github.com/dmphub-lab/dmphub/internal/core/storage"
	"github.com/dmphub-lab/dmphub/internal/identifier"
	"github.com/dmphub-lab/dmphub/internal/notify"
	"github.com/dmphub-lab/dmphub/internal/provenance"
	"github.com/dmphub-lab/dmphub/internal/schema"
	"go.opentelemetry.io/otel/attribute"
)

// Create registers a new plan on behalf of prov and returns it with its
// DMP ID. The supplied dmp_id is reused only when prov may seed live
// identifiers and nothing was ever stored under it; otherwise a new
// identifier is minted under the configured shoulder.
func (s *Service) Create(ctx context.Context, prov *provenance.Provenance, doc map[string]interface{}) (rec *v1.Record, err error) {
	ctx, span := s.startSpan(ctx, "create")
	defer func() { s.finish(span, "create", err) }()

	if prov == nil {
		return nil, ErrForbidden
	}
	span.SetAttributes(attribute.String("provenance", prov.Name))

	if err := s.validate(ctx, prov, schema.ContractAuthor, doc); err != nil {
		return nil, err
	}
	author, err := v1.DecodeAuthor(doc)
	if err != nil {
		return nil, invalidField(schema.ContractAuthor, "", err.Error())
	}
	if id := author.DmpID; id != nil && strings.EqualFold(id.Type, "doi") && !s.codec.IsDOI(strings.TrimSpace(id.Identifier)) {
		return nil, invalidField(schema.ContractAuthor, "dmp_id.identifier", "not a DOI: "+id.Identifier)
	}

	ownerOrg, err := OwnerOrg(&author.DMP)
	if err != nil {
		return nil, err
	}

	now := s.nowFn().UTC()
	stored := &StoredDMP{
		SK:               identifier.LatestSortKey,
		DMP:              author.DMP,
		OwningProvenance: prov.Name,
		OwnerOrg:         ownerOrg,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	stored.DMP.Created = now.Truncate(time.Second)
	stored.DMP.Modified = stored.DMP.Created
	stored.DMP.RelatedIdentifiers = claimRelated(author.DMP.RelatedIdentifiers, prov.Name)
	stored.refreshDerived()

	if err := s.checkDuplicate(ctx, stored.Fingerprint); err != nil {
		return nil, err
	}

	supplied := ""
	if author.DmpID != nil {
		supplied = strings.TrimSpace(author.DmpID.Identifier)
	}
	if supplied != "" {
		stored.ProvenanceIdentifier = provenanceIdentifier(prov.Name, supplied)
		if err := s.checkExternalDuplicate(ctx, stored.ProvenanceIdentifier); err != nil {
			return nil, err
		}
	}

	reused, err := s.reuseSupplied(ctx, prov, supplied, stored)
	if err != nil {
		return nil, err
	}
	if !reused {
		if err := s.mint(ctx, stored); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(attribute.String("pk", stored.PK))

	slog.Info("[DMP] Registered",
		"pk", stored.PK,
		"provenance", prov.Name,
		"owner_org", ownerOrg,
		"seeded", reused,
	)
	s.publish(ctx, notify.ActionCreate, stored, true)
	return recordOf(stored, nil)
}

// checkDuplicate rejects a plan equivalent to a live one.
func (s *Service) checkDuplicate(ctx context.Context, fingerprint string) error {
	items, err := s.kv.Query(ctx, storage.Query{
		Index:      storage.IndexFingerprint,
		IndexValue: fingerprint,
		SK:         identifier.LatestSortKey,
		Projection: []string{attrFingerprint},
	})
	if err != nil {
		return fmt.Errorf("query fingerprint: %w", err)
	}
	if len(items) > 0 {
		return fmt.Errorf("%w: equivalent plan %s", ErrAlreadyExists, s.codec.FromPartitionKey(items[0].PK))
	}
	return nil
}

func (s *Service) checkExternalDuplicate(ctx context.Context, provIdentifier string) error {
	items, err := s.kv.Query(ctx, storage.Query{
		Index:      storage.IndexProvenanceIdentifier,
		IndexValue: provIdentifier,
		SK:         identifier.LatestSortKey,
		Projection: []string{attrProvenanceIdentifier},
	})
	if err != nil {
		return fmt.Errorf("query provenance identifier: %w", err)
	}
	if len(items) > 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, s.codec.FromPartitionKey(items[0].PK))
	}
	return nil
}

// reuseSupplied stores the plan under the caller's own DOI when that is
// allowed. It reports false when the identifier has to be minted instead.
func (s *Service) reuseSupplied(ctx context.Context, prov *provenance.Provenance, supplied string, stored *StoredDMP) (bool, error) {
	if supplied == "" || !s.codec.IsDOI(supplied) {
		return false, nil
	}
	pk, err := s.codec.ToPartitionKey(supplied)
	if err != nil {
		return false, err
	}

	live, err := storage.Exists(ctx, s.kv, pk, identifier.LatestSortKey)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", pk, err)
	}
	if live {
		return false, fmt.Errorf("%w: %s", ErrAlreadyExists, s.codec.FromPartitionKey(pk))
	}
	if !prov.SeedingWithLiveDmpIDs {
		return false, nil
	}
	retired, err := storage.Exists(ctx, s.kv, pk, identifier.TombstoneSortKey)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", pk, err)
	}
	if retired {
		return false, nil
	}

	s.assign(stored, pk)
	err = s.put(ctx, stored, &storage.Condition{NotExists: true})
	if errors.Is(err, storage.ErrConditionFailed) {
		return false, fmt.Errorf("%w: %s", ErrAlreadyExists, s.codec.FromPartitionKey(pk))
	}
	if err != nil {
		return false, fmt.Errorf("put %s: %w", pk, err)
	}
	return true, nil
}

// mint tries up to MintAttempts random identifiers. A candidate counts as an
// attempt whether it was seen taken or lost the conditional put to a
// concurrent creator.
func (s *Service) mint(ctx context.Context, stored *StoredDMP) error {
	attempts := 0
	defer func() { s.metrics.ObserveMintAttempts(attempts) }()

	for attempts < s.cfg.MintAttempts {
		attempts++

		doi := s.candidate()
		pk, err := s.codec.ToPartitionKey(doi)
		if err != nil {
			return fmt.Errorf("minted identifier %q: %w", doi, err)
		}

		taken, err := s.everUsed(ctx, pk)
		if err != nil {
			return err
		}
		if taken {
			continue
		}

		s.assign(stored, pk)
		err = s.put(ctx, stored, &storage.Condition{NotExists: true})
		if errors.Is(err, storage.ErrConditionFailed) {
			continue
		}
		if err != nil {
			return fmt.Errorf("put %s: %w", pk, err)
		}
		return nil
	}

	slog.Error("[DMP] Identifier minting exhausted", "shoulder", s.cfg.Shoulder, "attempts", attempts)
	return ErrMintingExhausted
}

func (s *Service) candidate() string {
	if strings.Contains(s.cfg.Shoulder, "/") {
		return s.cfg.Shoulder + s.suffixFn()
	}
	return s.cfg.Shoulder + "/" + s.suffixFn()
}

// everUsed reports whether a latest version or a tombstone exists under pk.
func (s *Service) everUsed(ctx context.Context, pk string) (bool, error) {
	for _, sk := range []string{identifier.LatestSortKey, identifier.TombstoneSortKey} {
		exists, err := storage.Exists(ctx, s.kv, pk, sk)
		if err != nil {
			return false, fmt.Errorf("check %s: %w", pk, err)
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

// assign stores the plan under pk with its canonical public identifier.
func (s *Service) assign(stored *StoredDMP, pk string) {
	stored.PK = pk
	stored.DMP.DmpID = &v1.Identifier{Type: "doi", Identifier: s.codec.FromPartitionKey(pk)}
}

func claimRelated(related []v1.RelatedIdentifier, prov string) []v1.RelatedIdentifier {
	if len(related) == 0 {
		return nil
	}
	out := make([]v1.RelatedIdentifier, 0, len(related))
	seen := make(map[string]bool, len(related))
	for _, r := range related {
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		r.Provenance = prov
		out = append(out, r)
	}
	return out
}
