package provenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
)

// ResolverConfig controls how caller identities map to provenance names.
type ResolverConfig struct {
	// TrustedIssuers, when non-empty, restricts which token issuers are accepted.
	TrustedIssuers []string

	// ClientAliases maps token client ids to provenance names. Unmapped
	// client ids are used as the name directly.
	ClientAliases map[string]string

	// CacheTTL bounds how long a resolved provenance is reused. Zero disables caching.
	CacheTTL time.Duration
}

// Resolver turns a CallerIdentity into the Provenance it acts as.
type Resolver struct {
	store   *Store
	cfg     ResolverConfig
	trusted map[string]struct{}
	cache   *cache.Cache
}

// NewResolver creates a resolver backed by the provenance store.
func NewResolver(store *Store, cfg ResolverConfig) *Resolver {
	r := &Resolver{store: store, cfg: cfg}
	if len(cfg.TrustedIssuers) > 0 {
		r.trusted = make(map[string]struct{}, len(cfg.TrustedIssuers))
		for _, iss := range cfg.TrustedIssuers {
			r.trusted[iss] = struct{}{}
		}
	}
	if cfg.CacheTTL > 0 {
		r.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return r
}

// Resolve returns ErrForbidden when the identity is missing, carries no
// client id, comes from an untrusted issuer, or maps to no usable record.
// Storage failures are returned as-is.
func (r *Resolver) Resolve(ctx context.Context, id *CallerIdentity) (*Provenance, error) {
	if id == nil || id.ClientID == "" {
		return nil, ErrForbidden
	}
	if r.trusted != nil {
		if _, ok := r.trusted[id.Issuer]; !ok {
			slog.Warn("[Provenance] Untrusted issuer", "issuer", id.Issuer, "client_id", id.ClientID)
			return nil, ErrForbidden
		}
	}

	name := r.nameFor(id.ClientID)

	if r.cache != nil {
		if cached, ok := r.cache.Get(id.ClientID); ok {
			p := cached.(Provenance)
			return p.Clone(), nil
		}
	}

	p, err := r.store.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		slog.Warn("[Provenance] No record for caller", "client_id", id.ClientID, "name", name)
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("resolve provenance: %w", err)
	}
	if !p.Allows(id.ClientID) {
		slog.Warn("[Provenance] Client not allowed", "client_id", id.ClientID, "name", name)
		return nil, ErrForbidden
	}

	if r.cache != nil {
		r.cache.SetDefault(id.ClientID, *p.Clone())
	}
	return p, nil
}

// Invalidate drops any cached resolution for a client id.
func (r *Resolver) Invalidate(clientID string) {
	if r.cache != nil {
		r.cache.Delete(clientID)
	}
}

func (r *Resolver) nameFor(clientID string) string {
	if alias, ok := r.cfg.ClientAliases[clientID]; ok && alias != "" {
		return alias
	}
	return clientID
}
