package schema

import (
	"context"
)

// Repository defines the interface for contract storage.
type Repository interface {
	// Create stores a new contract. Returns ErrAlreadyExists if
	// a contract with the same (Scope, Contract, Version) already exists.
	Create(ctx context.Context, schema *Schema) error

	// Get retrieves a contract by key. Returns ErrNotFound if not found.
	Get(ctx context.Context, key Key) (*Schema, error)

	// List returns all contracts in a scope, optionally filtered by contract name.
	List(ctx context.Context, scope string, contract Contract) ([]*Schema, error)

	// UpdateState changes the state of a contract (e.g., deprecate).
	UpdateState(ctx context.Context, key Key, state State) error
}
