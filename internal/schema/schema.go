package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// PlatformScope holds the contracts every provenance falls back to.
const PlatformScope = "_platform"

// Contract names one of the structural contracts a document is checked against.
type Contract string

const (
	// ContractAuthor is the full document an owning provenance submits.
	ContractAuthor Contract = "author"
	// ContractAmend is the reduced document a non-owner submits.
	ContractAmend Contract = "amend"
	// ContractDelete carries only the identifier to retire.
	ContractDelete Contract = "delete"
)

var Contracts = []Contract{ContractAuthor, ContractAmend, ContractDelete}

func (c Contract) Valid() bool {
	return slices.Contains(Contracts, c)
}

type State string

const (
	StateActive     State = "active"
	StateDeprecated State = "deprecated"
)

type Format string

const (
	FormatProtobuf Format = "protobuf"
	FormatYaml     Format = "yaml"
)

// Schema is one registered version of a contract within a scope (a
// provenance name, or PlatformScope).
type Schema struct {
	ID         string   `json:"id"`
	Scope      string   `json:"scope"`
	Contract   Contract `json:"contract"`
	Version    int      `json:"version"`
	Format     Format   `json:"format"`
	Definition []byte   `json:"definition"`

	// Fingerprint is the hex SHA-256 of Definition.
	Fingerprint string `json:"fingerprint"`
	State       State  `json:"state"`

	// StrictMode rejects documents with fields the contract does not declare.
	StrictMode bool `json:"strict_mode"`

	CreatedAt    time.Time  `json:"created_at"`
	DeprecatedAt *time.Time `json:"deprecated_at,omitempty"`
}

func ComputeFingerprint(definition []byte) string {
	sum := sha256.Sum256(definition)
	return hex.EncodeToString(sum[:])
}

// Key identifies a contract version within a scope.
type Key struct {
	Scope    string
	Contract Contract
	Version  int
}

func (s *Schema) Key() Key {
	return Key{Scope: s.Scope, Contract: s.Contract, Version: s.Version}
}

// CompiledSchema is a contract ready for validation. Format selects which of
// ProtoDescriptor and YAMLSpec is set.
type CompiledSchema struct {
	Contract   Contract
	Version    int
	Format     Format
	StrictMode bool

	ProtoDescriptor *protoreflect.MessageDescriptor
	YAMLSpec        interface{} // *yaml.SchemaSpec
}

func (c *CompiledSchema) GetProtoDescriptor() (protoreflect.MessageDescriptor, error) {
	if c.Format != FormatProtobuf || c.ProtoDescriptor == nil {
		return nil, fmt.Errorf("compiled %s contract is %s, not protobuf", c.Contract, c.Format)
	}
	return *c.ProtoDescriptor, nil
}

// GetYAMLSpec returns the compiled YAML contract, a *yaml.SchemaSpec.
func (c *CompiledSchema) GetYAMLSpec() (interface{}, error) {
	if c.Format != FormatYaml || c.YAMLSpec == nil {
		return nil, fmt.Errorf("compiled %s contract is %s, not yaml", c.Contract, c.Format)
	}
	return c.YAMLSpec, nil
}
