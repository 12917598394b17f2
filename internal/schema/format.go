package schema

import (
	"context"
	"fmt"
	"sync"
)

// FormatCompiler turns a contract definition into its runtime form.
type FormatCompiler interface {
	Compile(ctx context.Context, schema *Schema) (*CompiledSchema, error)
}

// FormatValidator checks a document against a compiled contract. Violations
// are returned as a *MultiValidationError.
type FormatValidator interface {
	ValidateData(ctx context.Context, compiled *CompiledSchema, data map[string]interface{}) error
}

type formatHandler struct {
	compiler  FormatCompiler
	validator FormatValidator
}

// FormatRegistry maps a definition format to its compiler and validator.
type FormatRegistry struct {
	mu       sync.RWMutex
	handlers map[Format]formatHandler
}

func NewFormatRegistry() *FormatRegistry {
	return &FormatRegistry{handlers: make(map[Format]formatHandler)}
}

// RegisterFormat installs (or replaces) the handler pair for format.
func (r *FormatRegistry) RegisterFormat(format Format, compiler FormatCompiler, validator FormatValidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[format] = formatHandler{compiler: compiler, validator: validator}
}

func (r *FormatRegistry) lookup(format Format) (formatHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[format]
	if !ok {
		return formatHandler{}, fmt.Errorf("unsupported contract format %q", format)
	}
	return h, nil
}

func (r *FormatRegistry) GetCompiler(format Format) (FormatCompiler, error) {
	h, err := r.lookup(format)
	if err != nil {
		return nil, err
	}
	return h.compiler, nil
}

func (r *FormatRegistry) GetValidator(format Format) (FormatValidator, error) {
	h, err := r.lookup(format)
	if err != nil {
		return nil, err
	}
	return h.validator, nil
}
