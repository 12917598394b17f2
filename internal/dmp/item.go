package dmp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	v1 "github.com/dmphub-lab/dmphub/internal/api/v1"
	"github.com/dmphub-lab/dmphub/internal/core/storage"
	"github.com/dmphub-lab/dmphub/internal/identifier"
	"github.com/zeebo/xxh3"
)

// Bookkeeping attributes stored next to the plan document.
const (
	attrOwningProvenance     = "dmphub_owning_provenance"
	attrOwnerOrg             = "dmphub_owner_org"
	attrContactID            = "dmphub_contact_id"
	attrProvenanceIdentifier = "dmphub_provenance_identifier"
	attrFingerprint          = "dmphub_fingerprint"
	attrCreatedAt            = "dmphub_created_at"
	attrUpdatedAt            = "dmphub_updated_at"
	attrTombstonedAt         = "dmphub_tombstoned_at"

	// attrRelatedProvenance is carried on each related identifier entry.
	attrRelatedProvenance = "dmphub_provenance_id"
	attrRelated           = "dmproadmap_related_identifiers"
)

// internalAttributes is the closed set of top-level attributes that never
// leave the service. dmphub_versions is derived and not part of it.
var internalAttributes = map[string]struct{}{
	attrOwningProvenance:     {},
	attrOwnerOrg:             {},
	attrContactID:            {},
	attrProvenanceIdentifier: {},
	attrFingerprint:          {},
	attrCreatedAt:            {},
	attrUpdatedAt:            {},
	attrTombstonedAt:         {},
}

// StoredDMP is one stored version of a plan with its bookkeeping.
type StoredDMP struct {
	PK  string
	SK  string
	DMP v1.DMP

	OwningProvenance     string
	OwnerOrg             string
	ContactID            string
	ProvenanceIdentifier string
	Fingerprint          string

	CreatedAt    time.Time
	UpdatedAt    time.Time
	TombstonedAt *time.Time
}

// IsLatest reports whether this is the mutable current version.
func (s *StoredDMP) IsLatest() bool {
	return s.SK == identifier.LatestSortKey
}

// updateToken is the compare-and-swap value of the version.
func (s *StoredDMP) updateToken() string {
	return s.UpdatedAt.UTC().Format(time.RFC3339Nano)
}

// copyAs returns a copy of s stored under sk. The document's slices are
// shared; callers that mutate them must replace them first.
func (s *StoredDMP) copyAs(sk string) *StoredDMP {
	out := *s
	out.SK = sk
	return &out
}

// refreshDerived recomputes the attributes derived from the document.
func (s *StoredDMP) refreshDerived() {
	s.ContactID = contactReference(&s.DMP)
	s.Fingerprint = Fingerprint(&s.DMP)
}

func encodeItem(s *StoredDMP) (*storage.Item, error) {
	raw, err := json.Marshal(&s.DMP)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dmp %s: %w", s.PK, err)
	}
	var attrs map[string]interface{}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("failed to encode dmp %s: %w", s.PK, err)
	}

	attrs[attrOwningProvenance] = s.OwningProvenance
	attrs[attrCreatedAt] = s.CreatedAt.UTC().Format(time.RFC3339)
	attrs[attrUpdatedAt] = s.updateToken()
	// Index attributes are only written when set.
	setIfPresent(attrs, attrOwnerOrg, s.OwnerOrg)
	setIfPresent(attrs, attrContactID, s.ContactID)
	setIfPresent(attrs, attrProvenanceIdentifier, s.ProvenanceIdentifier)
	setIfPresent(attrs, attrFingerprint, s.Fingerprint)
	if s.TombstonedAt != nil {
		attrs[attrTombstonedAt] = s.TombstonedAt.UTC().Format(time.RFC3339)
	}

	return &storage.Item{PK: s.PK, SK: s.SK, Attrs: attrs}, nil
}

func decodeItem(item *storage.Item) (*StoredDMP, error) {
	out := &StoredDMP{
		PK:                   item.PK,
		SK:                   item.SK,
		OwningProvenance:     item.String(attrOwningProvenance),
		OwnerOrg:             item.String(attrOwnerOrg),
		ContactID:            item.String(attrContactID),
		ProvenanceIdentifier: item.String(attrProvenanceIdentifier),
		Fingerprint:          item.String(attrFingerprint),
	}

	raw, err := json.Marshal(item.Attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dmp %s %s: %w", item.PK, item.SK, err)
	}
	if err := json.Unmarshal(raw, &out.DMP); err != nil {
		return nil, fmt.Errorf("failed to decode dmp %s %s: %w", item.PK, item.SK, err)
	}

	out.CreatedAt = parseTime(item.String(attrCreatedAt))
	out.UpdatedAt = parseTime(item.String(attrUpdatedAt))
	if ts := item.String(attrTombstonedAt); ts != "" {
		t := parseTime(ts)
		out.TombstonedAt = &t
	}
	return out, nil
}

// project returns the caller-facing attributes of a stored item: the closed
// set of internal attributes and the per-entry provenance of related
// identifiers are removed.
func project(attrs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if _, internal := internalAttributes[k]; internal {
			continue
		}
		out[k] = v
	}

	if related, ok := out[attrRelated].([]interface{}); ok {
		cleaned := make([]interface{}, len(related))
		for i, entry := range related {
			m, ok := entry.(map[string]interface{})
			if !ok {
				cleaned[i] = entry
				continue
			}
			c := make(map[string]interface{}, len(m))
			for k, v := range m {
				if k != attrRelatedProvenance {
					c[k] = v
				}
			}
			cleaned[i] = c
		}
		out[attrRelated] = cleaned
	}
	return out
}

// toRecord projects a stored item into the caller-facing record.
func toRecord(item *storage.Item, versions []v1.VersionSnapshot) (*v1.Record, error) {
	raw, err := json.Marshal(project(item.Attrs))
	if err != nil {
		return nil, fmt.Errorf("failed to project dmp %s: %w", item.PK, err)
	}
	var rec v1.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to project dmp %s: %w", item.PK, err)
	}
	if len(versions) > 0 {
		rec.Versions = versions
	}
	return &rec, nil
}

// Fingerprint identifies equivalent plans: same contact and same title,
// ignoring case and surrounding whitespace.
func Fingerprint(d *v1.DMP) string {
	contact := contactReference(d)
	if contact == "" {
		contact = normalize(d.Contact.Mbox)
	}
	title := strings.Join(strings.Fields(normalize(d.Title)), " ")
	return fmt.Sprintf("%016x", xxh3.HashString(contact+"|"+title))
}

func contactReference(d *v1.DMP) string {
	if d.Contact.ContactID == nil {
		return ""
	}
	return normalize(d.Contact.ContactID.Identifier)
}

// relatedLinks groups related identifiers by descriptor for change events.
func relatedLinks(d *v1.DMP) map[string][]string {
	out := make(map[string][]string)
	for _, r := range d.RelatedIdentifiers {
		out[r.Descriptor] = append(out[r.Descriptor], r.Identifier)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func setIfPresent(attrs map[string]interface{}, name, value string) {
	if value != "" {
		attrs[name] = value
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
