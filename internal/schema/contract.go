package schema

import (
	"context"
	"fmt"
)

// ContractValidator checks documents against the latest active version of a
// named contract. It is the entry point the registry core uses.
type ContractValidator struct {
	registry  *Registry
	validator *Validator
}

// NewContractValidator creates a validator backed by the given registry and
// format-aware validator.
func NewContractValidator(registry *Registry, validator *Validator) *ContractValidator {
	return &ContractValidator{registry: registry, validator: validator}
}

// Validate returns the violations of doc against contract, resolved in scope
// with platform fallback. An empty result means the document conforms.
//
// The error return is reserved for an unavailable or uncompilable contract;
// malformed documents are always reported as violations.
func (c *ContractValidator) Validate(ctx context.Context, scope string, contract Contract, doc map[string]interface{}) ([]*ValidationError, error) {
	if !contract.Valid() {
		return nil, fmt.Errorf("unknown contract %q", contract)
	}

	def, err := c.registry.Latest(ctx, scope, contract)
	if err != nil {
		return nil, fmt.Errorf("resolve contract %s: %w", contract, err)
	}

	if _, err := c.validator.Compile(ctx, def); err != nil {
		return nil, fmt.Errorf("compile contract %s v%d: %w", contract, def.Version, err)
	}

	if doc == nil {
		return []*ValidationError{{
			Contract: string(contract),
			Version:  def.Version,
			Format:   string(def.Format),
			Message:  "document is empty",
		}}, nil
	}

	err = c.validator.ValidateData(ctx, def, doc)
	if err == nil {
		return nil, nil
	}

	if found := violations(err); found != nil {
		return found, nil
	}
	return []*ValidationError{{
		Contract: string(contract),
		Version:  def.Version,
		Format:   string(def.Format),
		Message:  err.Error(),
	}}, nil
}
