package provenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmphub-lab/dmphub/internal/core/storage"
)

// Store reads and writes provenance records. The core only reads them;
// writes happen out-of-band through the admin CLI.
type Store struct {
	kv storage.Store
}

// NewStore wraps a key-value gateway.
func NewStore(kv storage.Store) *Store {
	return &Store{kv: kv}
}

// Get loads one provenance by name.
func (s *Store) Get(ctx context.Context, name string) (*Provenance, error) {
	item, err := s.kv.Get(ctx, PartitionKey(name), ProfileSortKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load provenance %s: %w", name, err)
	}
	return fromItem(item)
}

// Put creates or replaces a provenance record.
func (s *Store) Put(ctx context.Context, p *Provenance) error {
	if err := p.Validate(); err != nil {
		return err
	}
	item, err := toItem(p)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, item, nil); err != nil {
		return fmt.Errorf("failed to store provenance %s: %w", p.Name, err)
	}

	pointer := &storage.Item{
		PK:    directoryPK,
		SK:    directorySKPrefix + p.Name,
		Attrs: map[string]interface{}{"name": p.Name},
	}
	if err := s.kv.Put(ctx, pointer, nil); err != nil {
		return fmt.Errorf("failed to index provenance %s: %w", p.Name, err)
	}

	slog.Info("[Provenance] Stored", "name", p.Name, "client_ids", p.ClientIDs)
	return nil
}

// Delete removes a provenance record and its directory entry.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.kv.Delete(ctx, PartitionKey(name), ProfileSortKey); err != nil {
		return fmt.Errorf("failed to delete provenance %s: %w", name, err)
	}
	return s.kv.Delete(ctx, directoryPK, directorySKPrefix+name)
}

// List returns every registered provenance ordered by name.
func (s *Store) List(ctx context.Context) ([]*Provenance, error) {
	pointers, err := s.kv.Query(ctx, storage.Query{PK: directoryPK, SKPrefix: directorySKPrefix})
	if err != nil {
		return nil, fmt.Errorf("failed to list provenances: %w", err)
	}

	out := make([]*Provenance, 0, len(pointers))
	for _, ptr := range pointers {
		name := strings.TrimPrefix(ptr.SK, directorySKPrefix)
		p, err := s.Get(ctx, name)
		if errors.Is(err, ErrNotFound) {
			slog.Warn("[Provenance] Dangling directory entry", "name", name)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
