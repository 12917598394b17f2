// Package identifier maps public DOI-style DMP IDs to store keys and back.
// Everything here is pure; the base domain comes from configuration.
package identifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	PartitionKeyPrefix = "DMP#"
	SortKeyPrefix      = "VERSION#"

	LatestLabel    = "latest"
	TombstoneLabel = "tombstone"

	LatestSortKey    = SortKeyPrefix + LatestLabel
	TombstoneSortKey = SortKeyPrefix + TombstoneLabel
)

// ErrInvalidIdentifier is returned when a value is not DOI-shaped once the
// protocol and known prefixes are stripped.
var ErrInvalidIdentifier = errors.New("invalid identifier")

var (
	doiPattern      = regexp.MustCompile(`^\d{2}\.\d{4,}/[A-Za-z0-9/_.-]+$`)
	protocolPattern = regexp.MustCompile(`^https?://`)
)

// Codec converts identifiers for one configured base domain, e.g. "doi.org".
type Codec struct {
	baseDomain string
}

// NewCodec accepts a bare domain or a URL ("https://doi.org/").
func NewCodec(baseDomain string) (*Codec, error) {
	domain := strings.TrimSuffix(protocolPattern.ReplaceAllString(strings.TrimSpace(baseDomain), ""), "/")
	if domain == "" {
		return nil, fmt.Errorf("identifier base domain is required")
	}
	return &Codec{baseDomain: domain}, nil
}

// BaseDomain returns the normalized base domain.
func (c *Codec) BaseDomain() string {
	return c.baseDomain
}

// DOI strips protocol, "doi:" prefix, the base domain and the partition key
// prefix, and returns the bare "10.xxxx/suffix" form.
func (c *Codec) DOI(id string) (string, error) {
	v := strings.TrimSpace(id)
	v = strings.TrimPrefix(v, PartitionKeyPrefix)
	v = protocolPattern.ReplaceAllString(v, "")
	v = strings.TrimPrefix(v, "doi:")
	v = strings.TrimPrefix(v, c.baseDomain+"/")

	if !doiPattern.MatchString(v) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return v, nil
}

// IsDOI reports whether id is a DOI for this codec.
func (c *Codec) IsDOI(id string) bool {
	_, err := c.DOI(id)
	return err == nil
}

// ToPartitionKey returns "DMP#<base-domain>/<doi>".
func (c *Codec) ToPartitionKey(id string) (string, error) {
	doi, err := c.DOI(id)
	if err != nil {
		return "", err
	}
	return PartitionKeyPrefix + c.baseDomain + "/" + doi, nil
}

// FromPartitionKey returns the public "https://<base-domain>/<doi>" form. The
// canonical base URL is always reattached.
func (c *Codec) FromPartitionKey(pk string) string {
	v := strings.TrimPrefix(pk, PartitionKeyPrefix)
	v = protocolPattern.ReplaceAllString(v, "")
	v = strings.TrimPrefix(v, c.baseDomain+"/")
	return "https://" + c.baseDomain + "/" + v
}

// ToSortKey prefixes a label ("latest", "tombstone" or a timestamp).
// Values that already carry the prefix are returned unchanged.
func ToSortKey(label string) string {
	if label == "" {
		return LatestSortKey
	}
	if strings.HasPrefix(label, SortKeyPrefix) {
		return label
	}
	return SortKeyPrefix + label
}

// FromSortKey returns the label of a sort key.
func FromSortKey(sk string) string {
	return strings.TrimPrefix(sk, SortKeyPrefix)
}

// SnapshotSortKey is the sort key of the snapshot taken of a version last
// modified at t.
func SnapshotSortKey(t time.Time) string {
	return SortKeyPrefix + t.UTC().Format(time.RFC3339)
}

// IsSnapshotSortKey reports whether sk names a historical snapshot.
func IsSnapshotSortKey(sk string) bool {
	if !strings.HasPrefix(sk, SortKeyPrefix) {
		return false
	}
	label := FromSortKey(sk)
	return label != LatestLabel && label != TombstoneLabel
}
