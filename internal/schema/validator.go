package schema

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Validator checks documents against contracts, compiling each contract
// definition once. Compilations are keyed by fingerprint, so a redefined
// contract is recompiled rather than served stale.
type Validator struct {
	formats *FormatRegistry

	compiled sync.Map // compileKey -> *CompiledSchema
	inflight singleflight.Group
}

func NewValidator(formats *FormatRegistry) *Validator {
	return &Validator{formats: formats}
}

func (v *Validator) RegisterFormat(format Format, compiler FormatCompiler, validator FormatValidator) {
	v.formats.RegisterFormat(format, compiler, validator)
}

func compileKey(s *Schema) string {
	return fmt.Sprintf("%s:%s:%d:%s", s.Scope, s.Contract, s.Version, s.Fingerprint)
}

// Compile returns the compiled form of a contract.
func (v *Validator) Compile(ctx context.Context, s *Schema) (*CompiledSchema, error) {
	key := compileKey(s)
	if cached, ok := v.compiled.Load(key); ok {
		return cached.(*CompiledSchema), nil
	}

	result, err, _ := v.inflight.Do(key, func() (interface{}, error) {
		if cached, ok := v.compiled.Load(key); ok {
			return cached, nil
		}
		compiler, err := v.formats.GetCompiler(s.Format)
		if err != nil {
			return nil, fmt.Errorf("compile %s v%d: %w", s.Contract, s.Version, err)
		}
		compiled, err := compiler.Compile(ctx, s)
		if err != nil {
			return nil, err
		}
		v.compiled.Store(key, compiled)
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*CompiledSchema), nil
}

// ValidateData compiles the contract if needed and validates the document
// with the contract format's validator.
func (v *Validator) ValidateData(ctx context.Context, s *Schema, data map[string]interface{}) error {
	compiled, err := v.Compile(ctx, s)
	if err != nil {
		return err
	}
	validator, err := v.formats.GetValidator(s.Format)
	if err != nil {
		return fmt.Errorf("validate %s v%d: %w", s.Contract, s.Version, err)
	}
	return validator.ValidateData(ctx, compiled, data)
}
