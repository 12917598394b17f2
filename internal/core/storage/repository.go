package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no item exists at the requested (PK, SK).
	ErrNotFound = errors.New("item not found")

	// ErrConditionFailed is returned when a conditional put loses: the item
	// already exists, or its guarded attribute no longer has the expected value.
	ErrConditionFailed = errors.New("conditional write failed")
)

// Secondary indexes. Each index is keyed by a single string attribute of the item.
const (
	IndexOwnerOrg             = "owner_org"
	IndexContactID            = "contact_id"
	IndexProvenanceIdentifier = "provenance_identifier"
	IndexFingerprint          = "fingerprint"
)

// IndexAttributes maps each secondary index to the item attribute it is keyed by.
var IndexAttributes = map[string]string{
	IndexOwnerOrg:             "dmphub_owner_org",
	IndexContactID:            "dmphub_contact_id",
	IndexProvenanceIdentifier: "dmphub_provenance_identifier",
	IndexFingerprint:          "dmphub_fingerprint",
}

// Item is one schemaless record addressed by a partition key and a sort key.
// Attrs holds JSON-compatible values (string, float64, bool, nil,
// map[string]interface{} and []interface{}).
type Item struct {
	PK    string
	SK    string
	Attrs map[string]interface{}
}

// String returns the attribute as a string, or "" when absent or not a string.
func (i *Item) String(name string) string {
	if i == nil || i.Attrs == nil {
		return ""
	}
	s, _ := i.Attrs[name].(string)
	return s
}

// Condition guards a Put. A nil condition means an unconditional full replace.
type Condition struct {
	// NotExists requires that nothing is stored at (PK, SK) yet.
	NotExists bool

	// Attribute/Equals require the stored item to exist and carry
	// Attribute == Equals (compare-and-swap).
	Attribute string
	Equals    string
}

// Query selects items either by partition key (optionally restricted to a
// sort key prefix) or by a secondary index value.
type Query struct {
	PK       string
	SKPrefix string

	Index      string
	IndexValue string

	// SK keeps only items with exactly this sort key.
	SK string

	// Filter keeps only items whose string attributes equal the given values.
	Filter map[string]string

	// Projection limits the returned attributes. Keys are always returned.
	Projection []string
}

// Validate rejects queries that address neither a partition nor an index.
func (q Query) Validate() error {
	switch {
	case q.PK != "" && q.Index != "":
		return fmt.Errorf("query must address either a partition or an index, not both")
	case q.PK == "" && q.Index == "":
		return fmt.Errorf("query must address a partition or an index")
	case q.Index != "":
		if _, ok := IndexAttributes[q.Index]; !ok {
			return fmt.Errorf("unknown index %q", q.Index)
		}
		if q.IndexValue == "" {
			return fmt.Errorf("index %q queried without a value", q.Index)
		}
	}
	return nil
}

// Matches applies the sort key and filter predicates. Adapters use it for the
// parts of a query their backend does not evaluate natively.
func (q Query) Matches(item *Item) bool {
	if q.SKPrefix != "" && !strings.HasPrefix(item.SK, q.SKPrefix) {
		return false
	}
	if q.SK != "" && item.SK != q.SK {
		return false
	}
	for name, want := range q.Filter {
		if item.String(name) != want {
			return false
		}
	}
	return true
}

// Project returns item restricted to the query projection.
func (q Query) Project(item *Item) *Item {
	if len(q.Projection) == 0 {
		return item
	}
	out := &Item{PK: item.PK, SK: item.SK, Attrs: make(map[string]interface{}, len(q.Projection))}
	for _, name := range q.Projection {
		if v, ok := item.Attrs[name]; ok {
			out.Attrs[name] = v
		}
	}
	return out
}

// Store is the key-value gateway the registry persists to.
type Store interface {
	// Get returns ErrNotFound when nothing is stored at (pk, sk).
	Get(ctx context.Context, pk, sk string) (*Item, error)

	// Put fully replaces the item. With a non-nil condition it returns
	// ErrConditionFailed when the condition does not hold.
	Put(ctx context.Context, item *Item, cond *Condition) error

	// Delete removes the item. Deleting a missing item is not an error.
	Delete(ctx context.Context, pk, sk string) error

	// Query returns matching items ordered by (PK, SK).
	Query(ctx context.Context, q Query) ([]*Item, error)
}

// Exists reports whether an item is stored at (pk, sk).
func Exists(ctx context.Context, s Store, pk, sk string) (bool, error) {
	_, err := s.Get(ctx, pk, sk)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CloneAttrs deep-copies a JSON-compatible attribute map.
func CloneAttrs(attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		return nil
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return CloneAttrs(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
