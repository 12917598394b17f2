package schema

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Registry provides contract lookup with caching and scope/platform fallback.
type Registry struct {
	repo  Repository
	cache *contractCache
}

// NewRegistry creates a contract registry caching lookups for DefaultCacheTTL.
func NewRegistry(repo Repository) *Registry {
	return NewRegistryWithCache(repo, DefaultCacheTTL)
}

// NewRegistryWithCache creates a registry whose cached contracts expire
// after ttl, so edited definitions are picked up without a restart.
func NewRegistryWithCache(repo Repository, ttl time.Duration) *Registry {
	return &Registry{
		repo:  repo,
		cache: newContractCache(ttl),
	}
}

// Get retrieves a contract using hybrid lookup:
// 1. Try the provenance scope first
// 2. Fallback to the platform scope
func (r *Registry) Get(ctx context.Context, scope string, contract Contract, version int) (*Schema, error) {
	if scope != "" && scope != PlatformScope {
		s, err := r.getWithCache(ctx, Key{Scope: scope, Contract: contract, Version: version})
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	s, err := r.getWithCache(ctx, Key{Scope: PlatformScope, Contract: contract, Version: version})
	if err == nil {
		return s, nil
	}
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s v%d", ErrNotFound, contract, version)
	}
	return nil, err
}

// Latest returns the highest active version of a contract, preferring the
// provenance scope over the platform scope.
func (r *Registry) Latest(ctx context.Context, scope string, contract Contract) (*Schema, error) {
	scopes := []string{PlatformScope}
	if scope != "" && scope != PlatformScope {
		scopes = []string{scope, PlatformScope}
	}

	for _, sc := range scopes {
		schemas, err := r.repo.List(ctx, sc, contract)
		if err != nil {
			return nil, err
		}

		var latest *Schema
		for _, s := range schemas {
			if s.State != StateActive {
				continue
			}
			if latest == nil || s.Version > latest.Version {
				latest = s
			}
		}
		if latest != nil {
			r.cache.put(latest)
			return latest, nil
		}
	}
	return nil, fmt.Errorf("%w: no active version of %s", ErrNotFound, contract)
}

// getWithCache retrieves a contract from cache or repository.
func (r *Registry) getWithCache(ctx context.Context, key Key) (*Schema, error) {
	if s := r.cache.get(key); s != nil {
		return s, nil
	}

	s, err := r.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	r.cache.put(s)
	return s, nil
}

// Register creates a new contract version.
func (r *Registry) Register(ctx context.Context, scope string, contract Contract, version int, format Format, definition []byte, strictMode bool) (*Schema, error) {
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	if !contract.Valid() {
		return nil, fmt.Errorf("unknown contract %q", contract)
	}
	if version < 1 {
		return nil, errors.New("version must be >= 1")
	}
	if len(definition) == 0 {
		return nil, errors.New("definition is required")
	}

	s := &Schema{
		ID:          uuid.New().String(),
		Scope:       scope,
		Contract:    contract,
		Version:     version,
		Format:      format,
		Definition:  definition,
		Fingerprint: ComputeFingerprint(definition),
		State:       StateActive,
		StrictMode:  strictMode,
		CreatedAt:   time.Now().UTC(),
	}

	if err := r.repo.Create(ctx, s); err != nil {
		return nil, err
	}

	r.cache.put(s)
	return s, nil
}

// Deprecate marks a contract version as deprecated.
func (r *Registry) Deprecate(ctx context.Context, scope string, contract Contract, version int) error {
	key := Key{Scope: scope, Contract: contract, Version: version}

	if err := r.repo.UpdateState(ctx, key, StateDeprecated); err != nil {
		return err
	}

	r.cache.invalidate(key)
	return nil
}

// List returns all contracts in a scope.
func (r *Registry) List(ctx context.Context, scope string, contract Contract) ([]*Schema, error) {
	return r.repo.List(ctx, scope, contract)
}
