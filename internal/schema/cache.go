package schema

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultCacheTTL bounds how long an edited contract file can go unnoticed.
const DefaultCacheTTL = 5 * time.Minute

// contractCache keeps resolved contracts for a TTL. Entries are copied on
// the way in and out so callers cannot mutate a cached definition.
type contractCache struct {
	entries *cache.Cache
}

func newContractCache(ttl time.Duration) *contractCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &contractCache{entries: cache.New(ttl, 2*ttl)}
}

func cacheKey(key Key) string {
	return fmt.Sprintf("%s/%s/v%d", key.Scope, key.Contract, key.Version)
}

func (c *contractCache) get(key Key) *Schema {
	v, ok := c.entries.Get(cacheKey(key))
	if !ok {
		return nil
	}
	s := *v.(*Schema)
	return &s
}

func (c *contractCache) put(s *Schema) {
	stored := *s
	c.entries.SetDefault(cacheKey(s.Key()), &stored)
}

func (c *contractCache) invalidate(key Key) {
	c.entries.Delete(cacheKey(key))
}
