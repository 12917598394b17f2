package storage

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmphub-lab/dmphub/internal/schema"
)

// MemoryRepository keeps contracts in process, grouped by scope. Registered
// contracts are copied in and out so callers never share the stored value.
type MemoryRepository struct {
	mu     sync.RWMutex
	scopes map[string]map[schema.Key]schema.Schema
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{scopes: make(map[string]map[schema.Key]schema.Schema)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *schema.Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := s.Key()
	contracts, ok := r.scopes[key.Scope]
	if !ok {
		contracts = make(map[schema.Key]schema.Schema)
		r.scopes[key.Scope] = contracts
	}
	if _, exists := contracts[key]; exists {
		return schema.ErrAlreadyExists
	}
	contracts[key] = *s
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, key schema.Key) (*schema.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scopes[key.Scope][key]
	if !ok {
		return nil, schema.ErrNotFound
	}
	return &s, nil
}

// List returns a scope's contracts ordered by contract name, then version.
func (r *MemoryRepository) List(ctx context.Context, scope string, contract schema.Contract) ([]*schema.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*schema.Schema
	for key, s := range r.scopes[scope] {
		if contract != "" && key.Contract != contract {
			continue
		}
		out = append(out, &s)
	}

	slices.SortFunc(out, func(a, b *schema.Schema) int {
		return cmp.Or(cmp.Compare(a.Contract, b.Contract), cmp.Compare(a.Version, b.Version))
	})
	return out, nil
}

func (r *MemoryRepository) UpdateState(ctx context.Context, key schema.Key, state schema.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.scopes[key.Scope][key]
	if !ok {
		return schema.ErrNotFound
	}
	s.State = state
	if state == schema.StateDeprecated {
		now := time.Now().UTC()
		s.DeprecatedAt = &now
	}
	r.scopes[key.Scope][key] = s
	return nil
}
