package dmp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	v1 "github.com/dmphub-lab/dmphub/internal/api/v1"
	"github.com/dmphub-lab/dmphub/internal/core/storage"
	"github.com/dmphub-lab/dmphub/internal/identifier"
	"github.com/dmphub-lab/dmphub/internal/provenance"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// historyConcurrency bounds the version-history lookups of one listing page.
const historyConcurrency = 8

// Page is one page of a listing.
type Page struct {
	Items   []*v1.Record `json:"items"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
	Total   int          `json:"total"`
}

// Get resolves a public identifier (or partition key) and returns the
// requested version: the latest when version is empty, otherwise a snapshot
// timestamp or "tombstone".
func (s *Service) Get(ctx context.Context, id, version string) (*v1.Record, error) {
	pk, err := s.codec.ToPartitionKey(id)
	if err != nil {
		return nil, err
	}
	return s.ByKey(ctx, pk, identifier.ToSortKey(version))
}

// ByKey returns the record stored at (pk, sk), with its version history
// attached when the plan has more than one stored version.
func (s *Service) ByKey(ctx context.Context, pk, sk string) (*v1.Record, error) {
	ctx, span := s.startSpan(ctx, "by_key", attribute.String("pk", pk), attribute.String("sk", sk))
	defer span.End()

	if sk == "" {
		sk = identifier.LatestSortKey
	}
	item, err := s.kv.Get(ctx, pk, sk)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", pk, sk, err)
	}

	versions, err := s.VersionHistory(ctx, pk)
	if err != nil {
		return nil, err
	}
	return toRecord(item, versions)
}

// ByExternalIdentifier finds the latest version of a plan by the identifier
// the calling provenance knows it under, for callers that have not learned
// the DMP ID yet.
func (s *Service) ByExternalIdentifier(ctx context.Context, prov *provenance.Provenance, localID string) (*v1.Record, error) {
	if prov == nil {
		return nil, ErrForbidden
	}
	localID = strings.TrimSpace(localID)
	if localID == "" {
		return nil, ErrNotFound
	}

	items, err := s.kv.Query(ctx, storage.Query{
		Index:      storage.IndexProvenanceIdentifier,
		IndexValue: provenanceIdentifier(prov.Name, localID),
		SK:         identifier.LatestSortKey,
	})
	if err != nil {
		return nil, fmt.Errorf("query provenance identifier: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}

	versions, err := s.VersionHistory(ctx, items[0].PK)
	if err != nil {
		return nil, err
	}
	return toRecord(items[0], versions)
}

// ByOwner lists the latest versions of the plans an organization (ROR) or a
// contact (ORCID) owns, most recently modified first.
func (s *Service) ByOwner(ctx context.Context, owner string, page, perPage int) (*Page, error) {
	ctx, span := s.startSpan(ctx, "by_owner", attribute.String("owner", owner))
	defer span.End()

	page, perPage = s.cfg.pageBounds(page, perPage)
	result := &Page{Items: []*v1.Record{}, Page: page, PerPage: perPage}
	if owner == "" {
		return result, nil
	}

	seen := make(map[string]bool)
	var latest []*storage.Item
	for _, q := range []storage.Query{
		{Index: storage.IndexOwnerOrg, IndexValue: owner, SK: identifier.LatestSortKey},
		{Index: storage.IndexContactID, IndexValue: normalize(owner), SK: identifier.LatestSortKey},
	} {
		items, err := s.kv.Query(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Index, err)
		}
		for _, item := range items {
			if !seen[item.PK] {
				seen[item.PK] = true
				latest = append(latest, item)
			}
		}
	}

	modified := make(map[string]time.Time, len(latest))
	for _, item := range latest {
		modified[item.PK] = parseTime(item.String("modified"))
	}
	sort.SliceStable(latest, func(i, j int) bool {
		mi, mj := modified[latest[i].PK], modified[latest[j].PK]
		if !mi.Equal(mj) {
			return mi.After(mj)
		}
		return latest[i].PK < latest[j].PK
	})

	result.Total = len(latest)
	start := (page - 1) * perPage
	if start >= len(latest) {
		return result, nil
	}
	end := start + perPage
	if end > len(latest) {
		end = len(latest)
	}
	window := latest[start:end]

	records := make([]*v1.Record, len(window))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyConcurrency)
	for i, item := range window {
		g.Go(func() error {
			versions, err := s.VersionHistory(gctx, item.PK)
			if err != nil {
				return err
			}
			rec, err := toRecord(item, versions)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Items = records
	return result, nil
}

// VersionHistory lists the historical snapshots of a plan, newest first.
// The latest and tombstone items stay addressable but are not listed. It
// returns nil when the plan has a single stored version.
func (s *Service) VersionHistory(ctx context.Context, pk string) ([]v1.VersionSnapshot, error) {
	items, err := s.kv.Query(ctx, storage.Query{
		PK:         pk,
		SKPrefix:   identifier.SortKeyPrefix,
		Projection: []string{"modified"},
	})
	if err != nil {
		return nil, fmt.Errorf("query versions of %s: %w", pk, err)
	}
	if len(items) < 2 {
		return nil, nil
	}

	doi, err := s.codec.DOI(pk)
	if err != nil {
		return nil, err
	}

	versions := make([]v1.VersionSnapshot, 0, len(items))
	for _, item := range items {
		if !identifier.IsSnapshotSortKey(item.SK) {
			continue
		}
		label := identifier.FromSortKey(item.SK)
		ts, err := time.Parse(time.RFC3339, label)
		if err != nil {
			continue
		}
		versions = append(versions, v1.VersionSnapshot{
			Timestamp: ts.UTC(),
			URL:       fmt.Sprintf("%s/dmps/%s?version=%s", s.cfg.APIBaseURL, doi, label),
		})
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Timestamp.After(versions[j].Timestamp)
	})
	if len(versions) == 0 {
		return nil, nil
	}
	return versions, nil
}

func provenanceIdentifier(prov, localID string) string {
	return prov + "#" + localID
}
