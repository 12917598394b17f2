// Package provenance resolves the calling system's identity into the
// provenance record that authorizes it.
package provenance

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmphub-lab/dmphub/internal/core/storage"
)

const (
	PartitionKeyPrefix = "PROVENANCE#"
	ProfileSortKey     = "PROFILE"

	// directoryPK holds one pointer item per provenance so records can be
	// listed without a table scan.
	directoryPK       = PartitionKeyPrefix + "_directory"
	directorySKPrefix = "NAME#"
)

var (
	// ErrForbidden is returned when the caller has no usable provenance.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned by Store.Get for unknown names.
	ErrNotFound = errors.New("provenance not found")
)

// CallerIdentity is what the transport layer learned about the caller from
// its credentials.
type CallerIdentity struct {
	Issuer   string
	ClientID string
	Subject  string
}

// Provenance is a registered client system.
type Provenance struct {
	Name                  string   `json:"name"`
	DisplayName           string   `json:"display_name,omitempty"`
	SeedingWithLiveDmpIDs bool     `json:"seeding_with_live_dmp_ids"`
	CallbackURI           string   `json:"callback_uri,omitempty"`
	Homepage              string   `json:"homepage,omitempty"`
	Description           string   `json:"description,omitempty"`
	ClientIDs             []string `json:"client_ids,omitempty"`
}

// Clone returns a deep copy of p.
func (p *Provenance) Clone() *Provenance {
	out := *p
	if p.ClientIDs != nil {
		out.ClientIDs = append([]string(nil), p.ClientIDs...)
	}
	return &out
}

// PartitionKey returns "PROVENANCE#<name>".
func PartitionKey(name string) string {
	return PartitionKeyPrefix + name
}

// Validate checks the fields an operator must supply.
func (p *Provenance) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("provenance name is required")
	}
	if strings.ContainsAny(p.Name, "#/ ") {
		return fmt.Errorf("provenance name %q must not contain '#', '/' or spaces", p.Name)
	}
	if strings.HasPrefix(p.Name, "_") {
		return fmt.Errorf("provenance name %q is reserved", p.Name)
	}
	return nil
}

// Allows reports whether the token client id may act as this provenance.
// A record without client ids accepts whichever client resolved to it.
func (p *Provenance) Allows(clientID string) bool {
	if len(p.ClientIDs) == 0 {
		return true
	}
	for _, id := range p.ClientIDs {
		if id == clientID {
			return true
		}
	}
	return false
}

func toItem(p *Provenance) (*storage.Item, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provenance: %w", err)
	}
	var attrs map[string]interface{}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("failed to encode provenance: %w", err)
	}
	return &storage.Item{PK: PartitionKey(p.Name), SK: ProfileSortKey, Attrs: attrs}, nil
}

func fromItem(item *storage.Item) (*Provenance, error) {
	raw, err := json.Marshal(item.Attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to decode provenance %s: %w", item.PK, err)
	}
	var p Provenance
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode provenance %s: %w", item.PK, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimPrefix(item.PK, PartitionKeyPrefix)
	}
	return &p, nil
}
