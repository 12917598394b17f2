package v1

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Identifier is a typed external identifier (DOI, ORCID, ROR, URL, ...).
type Identifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// Affiliation links a person to an organization.
type Affiliation struct {
	Name          string      `json:"name,omitempty"`
	AffiliationID *Identifier `json:"affiliation_id,omitempty"`
}

// Contact is the primary person responsible for the plan.
type Contact struct {
	Name        string       `json:"name"`
	Mbox        string       `json:"mbox"`
	ContactID   *Identifier  `json:"contact_id,omitempty"`
	Affiliation *Affiliation `json:"dmproadmap_affiliation,omitempty"`
}

// Contributor is any other person involved with the plan.
// Roles are URIs from a controlled vocabulary (e.g. CRediT).
type Contributor struct {
	Name          string       `json:"name"`
	Mbox          string       `json:"mbox,omitempty"`
	ContributorID *Identifier  `json:"contributor_id,omitempty"`
	Affiliation   *Affiliation `json:"dmproadmap_affiliation,omitempty"`
	Role          []string     `json:"role,omitempty"`
}

// Dataset is a research output described by the plan.
type Dataset struct {
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	Type          string      `json:"type,omitempty"`
	PersonalData  string      `json:"personal_data,omitempty"`
	SensitiveData string      `json:"sensitive_data,omitempty"`
	DatasetID     *Identifier `json:"dataset_id,omitempty"`
}

// Funding is one funding source of a project.
type Funding struct {
	Name          string      `json:"name,omitempty"`
	FunderID      *Identifier `json:"funder_id,omitempty"`
	FundingStatus string      `json:"funding_status,omitempty"`
	GrantID       *Identifier `json:"grant_id,omitempty"`
}

// Project is the research project the plan belongs to.
type Project struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       string    `json:"start,omitempty"`
	End         string    `json:"end,omitempty"`
	Funding     []Funding `json:"funding,omitempty"`
}

// Cost is a budget line.
type Cost struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Value        Amount `json:"value"`
	CurrencyCode string `json:"currency_code,omitempty"`
}

// Amount is a monetary value. It compares as a decimal but marshals back the
// JSON token it was decoded from, so "1200.50" keeps its quotes and trailing
// zero and a bare number stays a number.
type Amount struct {
	value decimal.Decimal
	raw   json.RawMessage
}

// NewAmount wraps d. It marshals as a JSON number.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{value: d}
}

// RequireAmount parses s and panics on malformed input. Intended for tests
// and constants.
func RequireAmount(s string) Amount {
	return NewAmount(decimal.RequireFromString(s))
}

// Decimal returns the parsed value.
func (a Amount) Decimal() decimal.Decimal { return a.value }

// Equal reports whether both amounts hold the same value regardless of how
// they were written.
func (a Amount) Equal(b Amount) bool { return a.value.Equal(b.value) }

func (a Amount) String() string { return a.value.String() }

func (a Amount) MarshalJSON() ([]byte, error) {
	if len(a.raw) > 0 {
		return a.raw, nil
	}
	return []byte(a.value.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = Amount{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("invalid amount %s: %w", b, err)
	}
	a.value = d
	a.raw = append(json.RawMessage(nil), b...)
	return nil
}

// RelatedIdentifier links the plan to related work (papers, datasets,
// software, ...). Non-owning provenance systems may contribute these.
type RelatedIdentifier struct {
	Descriptor string `json:"descriptor"`
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
	WorkType   string `json:"work_type,omitempty"`
	Citation   string `json:"citation,omitempty"`

	// Provenance is the provenance system that contributed the entry.
	// Internal bookkeeping, stripped before records leave the service.
	Provenance string `json:"dmphub_provenance_id,omitempty"`
}

// Key identifies a related identifier independently of who contributed it.
func (r RelatedIdentifier) Key() string {
	return r.Type + "|" + r.Identifier
}

// DMP is one version of a Data Management Plan.
type DMP struct {
	Title              string              `json:"title"`
	Description        string              `json:"description,omitempty"`
	Language           string              `json:"language,omitempty"`
	EthicalIssuesExist string              `json:"ethical_issues_exist,omitempty"`
	Created            time.Time           `json:"created"`
	Modified           time.Time           `json:"modified"`
	DmpID              *Identifier         `json:"dmp_id,omitempty"`
	Contact            Contact             `json:"contact"`
	Contributors       []Contributor       `json:"contributor,omitempty"`
	Datasets           []Dataset           `json:"dataset,omitempty"`
	Projects           []Project           `json:"project,omitempty"`
	Costs              []Cost              `json:"cost,omitempty"`
	RelatedIdentifiers []RelatedIdentifier `json:"dmproadmap_related_identifiers,omitempty"`
}

// VersionSnapshot points at one historical version of a plan.
type VersionSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
}

// Record is the caller-facing view of a stored plan.
type Record struct {
	DMP

	// Versions is assembled at read time and never stored.
	Versions []VersionSnapshot `json:"dmphub_versions,omitempty"`
}

// AuthorDocument is a plan that passed the author contract: the full
// document an owning provenance system submits.
type AuthorDocument struct {
	DMP
}

// AmendDocument is the subset of a plan a non-owning provenance system may
// change. Owner-controlled fields are not representable here.
type AmendDocument struct {
	DmpID              Identifier          `json:"dmp_id"`
	RelatedIdentifiers []RelatedIdentifier `json:"dmproadmap_related_identifiers,omitempty"`
}

// DeleteDocument names the plan a tombstone request targets.
type DeleteDocument struct {
	DmpID Identifier `json:"dmp_id"`
}

// DecodeAuthor converts a validated author document. Timestamps are
// server-assigned, so caller-supplied created/modified values are ignored.
func DecodeAuthor(doc map[string]interface{}) (*AuthorDocument, error) {
	trimmed := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k == "created" || k == "modified" {
			continue
		}
		trimmed[k] = v
	}

	var out AuthorDocument
	if err := decode(trimmed, &out.DMP); err != nil {
		return nil, err
	}
	return &out, nil
}

// DecodeAmend converts a validated amend document. Fields outside the amend
// subset are dropped.
func DecodeAmend(doc map[string]interface{}) (*AmendDocument, error) {
	var out AmendDocument
	if err := decode(doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DecodeDelete converts a validated delete document.
func DecodeDelete(doc map[string]interface{}) (*DeleteDocument, error) {
	var out DeleteDocument
	if err := decode(doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Unwrap accepts both `{"dmp": {...}}` and a bare plan object.
func Unwrap(body map[string]interface{}) map[string]interface{} {
	if len(body) != 1 {
		return body
	}
	if inner, ok := body["dmp"].(map[string]interface{}); ok {
		return inner
	}
	return body
}

func decode(doc map[string]interface{}, dst interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}
