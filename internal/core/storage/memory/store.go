package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dmphub-lab/dmphub/internal/core/storage"
)

// Store is an in-memory implementation of storage.Store.
// Useful for testing and development.
type Store struct {
	mu    sync.RWMutex
	items map[string]map[string]map[string]interface{}
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		items: make(map[string]map[string]map[string]interface{}),
	}
}

func (s *Store) Get(ctx context.Context, pk, sk string) (*storage.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attrs, ok := s.items[pk][sk]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.Item{PK: pk, SK: sk, Attrs: storage.CloneAttrs(attrs)}, nil
}

func (s *Store) Put(ctx context.Context, item *storage.Item, cond *storage.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.items[item.PK][item.SK]
	if cond != nil {
		if cond.NotExists && exists {
			return storage.ErrConditionFailed
		}
		if cond.Attribute != "" {
			if !exists {
				return storage.ErrConditionFailed
			}
			if got, _ := existing[cond.Attribute].(string); got != cond.Equals {
				return storage.ErrConditionFailed
			}
		}
	}

	partition, ok := s.items[item.PK]
	if !ok {
		partition = make(map[string]map[string]interface{})
		s.items[item.PK] = partition
	}
	// Store a copy to prevent external modification
	partition[item.SK] = storage.CloneAttrs(item.Attrs)
	return nil
}

func (s *Store) Delete(ctx context.Context, pk, sk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	partition, ok := s.items[pk]
	if !ok {
		return nil
	}
	delete(partition, sk)
	if len(partition) == 0 {
		delete(s.items, pk)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q storage.Query) ([]*storage.Item, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.Item
	collect := func(pk string, partition map[string]map[string]interface{}) {
		for sk, attrs := range partition {
			item := &storage.Item{PK: pk, SK: sk, Attrs: attrs}
			if q.Index != "" {
				if got, _ := attrs[storage.IndexAttributes[q.Index]].(string); got != q.IndexValue {
					continue
				}
			}
			if !q.Matches(item) {
				continue
			}
			projected := q.Project(item)
			result = append(result, &storage.Item{
				PK:    projected.PK,
				SK:    projected.SK,
				Attrs: storage.CloneAttrs(projected.Attrs),
			})
		}
	}

	if q.PK != "" {
		collect(q.PK, s.items[q.PK])
	} else {
		for pk, partition := range s.items {
			collect(pk, partition)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].PK != result[j].PK {
			return result[i].PK < result[j].PK
		}
		return result[i].SK < result[j].SK
	})
	return result, nil
}

// Len returns the number of stored items. Used by tests to assert on state.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, partition := range s.items {
		n += len(partition)
	}
	return n
}
