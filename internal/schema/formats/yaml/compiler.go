package yaml

import (
	"context"
	"fmt"

	"github.com/dmphub-lab/dmphub/internal/schema"
	"gopkg.in/yaml.v3"
)

// Compiler compiles YAML contract definitions.
type Compiler struct{}

// NewCompiler creates a new YAML compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile parses a YAML contract definition and returns the compiled schema.
func (c *Compiler) Compile(ctx context.Context, s *schema.Schema) (*schema.CompiledSchema, error) {
	if s.Format != schema.FormatYaml {
		return nil, fmt.Errorf("expected yaml format, got %s", s.Format)
	}

	var spec SchemaSpec
	if err := yaml.Unmarshal(s.Definition, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse YAML contract: %w", err)
	}

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid YAML contract: %w", err)
	}

	if spec.Contract != string(s.Contract) {
		return nil, fmt.Errorf("contract name %q does not match schema.Contract %q", spec.Contract, s.Contract)
	}

	if spec.Version != s.Version {
		return nil, fmt.Errorf("contract version %d does not match schema.Version %d", spec.Version, s.Version)
	}

	return &schema.CompiledSchema{
		Contract: s.Contract,
		Version:  s.Version,
		Format:   schema.FormatYaml,
		// The definition file is authoritative for strictness.
		StrictMode: spec.StrictMode,
		YAMLSpec:   &spec,
	}, nil
}
