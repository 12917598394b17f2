package yaml

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SchemaSpec represents a compiled YAML contract specification.
// This is the runtime representation used for validation.
type SchemaSpec struct {
	Contract    string            `yaml:"contract"`
	Version     int               `yaml:"version"`
	Description string            `yaml:"description,omitempty"`
	StrictMode  bool              `yaml:"strictMode,omitempty"`
	Fields      map[string]*Field `yaml:"fields"`
}

// Field defines a single field in a YAML contract.
//
// Fields support two declaration styles:
//
//	Shorthand (scalar): title: string!
//	Long form (mapping): dmp_id:
//	                        type: object!
//	                        fields:
//	                          identifier: string!
//
// Type names: string, bool, int32, int64, float, double, decimal, object, array.
// Append "!" to mark a field as required.
type Field struct {
	// Type is the internal type tag: "string", "boolean", "number",
	// "decimal", "object" or "array".
	// Populated by UnmarshalYAML from the user-facing type name.
	Type string `yaml:"type"`

	// Kind specifies numeric precision: int32, int64, float, double.
	// Internal only, derived from the type name (e.g. "int32" → Type="number", Kind="int32").
	Kind string `yaml:"-"`

	// Required indicates if the field must be present (default: false).
	// Set by the "!" suffix on the type name, or explicitly via "required: true" in long form.
	Required bool `yaml:"required,omitempty"`

	// Enum restricts values to a specific set (for strings and numbers).
	Enum []interface{} `yaml:"enum,omitempty"`

	// Min/Max constraints for numbers.
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`

	// String constraints.
	MinLength *int   `yaml:"minLength,omitempty"`
	MaxLength *int   `yaml:"maxLength,omitempty"`
	Pattern   string `yaml:"pattern,omitempty"`

	// Object members.
	Fields map[string]*Field `yaml:"fields,omitempty"`

	// Array element definition and size constraints.
	Items    *Field `yaml:"items,omitempty"`
	MinItems *int   `yaml:"minItems,omitempty"`
	MaxItems *int   `yaml:"maxItems,omitempty"`

	// Compiled regex (not serialized, populated during Validate).
	compiledPattern *regexp.Regexp `yaml:"-"`
}

// UnmarshalYAML implements custom unmarshaling to support both shorthand
// and long-form field declarations.
func (f *Field) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return f.parseTypeString(value.Value)
	}

	// Long form: decode struct fields via alias (avoids infinite recursion),
	// then normalize the type string.
	type fieldAlias Field
	var alias fieldAlias
	if err := value.Decode(&alias); err != nil {
		return err
	}
	*f = Field(alias)

	if f.Type == "" {
		return fmt.Errorf("field missing 'type'")
	}
	return f.parseTypeString(f.Type)
}

// parseTypeString parses a user-facing type name like "int32!" and sets
// Type, Kind, and (if "!" is present) Required on the receiver.
func (f *Field) parseTypeString(s string) error {
	if strings.HasSuffix(s, "!") {
		f.Required = true
		s = strings.TrimSuffix(s, "!")
	}

	switch s {
	case "string", "decimal", "object", "array":
		f.Type = s
	case "bool", "boolean":
		f.Type = "boolean"
	case "int32", "int64", "float", "double":
		f.Type = "number"
		f.Kind = s
	default:
		return fmt.Errorf("unsupported type %q (must be: string, bool, int32, int64, float, double, decimal, object, array)", s)
	}
	return nil
}

// Validate checks if the YAML contract spec is structurally valid.
// This is called during contract compilation to catch definition errors.
func (s *SchemaSpec) Validate() error {
	if s.Contract == "" {
		return fmt.Errorf("contract name is required")
	}
	if s.Version < 1 {
		return fmt.Errorf("version must be >= 1")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("contract must define at least one field")
	}
	return validateFields("", s.Fields)
}

func validateFields(prefix string, fields map[string]*Field) error {
	for name, field := range fields {
		path := joinPath(prefix, name)
		if field == nil {
			return fmt.Errorf("field %q: type cannot be empty", path)
		}
		if err := field.Validate(path); err != nil {
			return fmt.Errorf("field %q: %w", path, err)
		}
	}
	return nil
}

// Validate checks if a field definition is structurally valid.
func (f *Field) Validate(path string) error {
	if f.Type != "object" && len(f.Fields) > 0 {
		return fmt.Errorf("only object fields may declare fields")
	}
	if f.Type != "array" && (f.Items != nil || f.MinItems != nil || f.MaxItems != nil) {
		return fmt.Errorf("only array fields may declare items, minItems or maxItems")
	}

	switch f.Type {
	case "string":
		return f.validateStringField()
	case "boolean":
		return f.validateScalarWithoutConstraints("boolean")
	case "number":
		return f.validateNumberField()
	case "decimal":
		if f.MinLength != nil || f.MaxLength != nil || f.Pattern != "" || len(f.Enum) > 0 {
			return fmt.Errorf("decimal fields only support min/max constraints")
		}
		return f.validateRange()
	case "object":
		if err := f.validateScalarWithoutConstraints("object"); err != nil {
			return err
		}
		return validateFields(path, f.Fields)
	case "array":
		if err := f.validateScalarWithoutConstraints("array"); err != nil {
			return err
		}
		if f.Items == nil {
			return fmt.Errorf("array fields require items")
		}
		if f.MinItems != nil && *f.MinItems < 0 {
			return fmt.Errorf("minItems cannot be negative")
		}
		if f.MinItems != nil && f.MaxItems != nil && *f.MinItems > *f.MaxItems {
			return fmt.Errorf("minItems (%d) cannot exceed maxItems (%d)", *f.MinItems, *f.MaxItems)
		}
		return f.Items.Validate(path + "[]")
	default:
		return fmt.Errorf("unsupported type %q", f.Type)
	}
}

func (f *Field) validateStringField() error {
	if f.MinLength != nil && *f.MinLength < 0 {
		return fmt.Errorf("minLength cannot be negative")
	}
	if f.MaxLength != nil && *f.MaxLength < 0 {
		return fmt.Errorf("maxLength cannot be negative")
	}
	if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
		return fmt.Errorf("minLength (%d) cannot exceed maxLength (%d)", *f.MinLength, *f.MaxLength)
	}
	if f.Min != nil || f.Max != nil {
		return fmt.Errorf("string fields do not support min/max constraints")
	}

	if f.Pattern != "" {
		if len(f.Pattern) > 1000 {
			return fmt.Errorf("pattern too long (max 1000 chars)")
		}
		compiled, err := regexp.Compile(f.Pattern)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		f.compiledPattern = compiled
	}

	for i, val := range f.Enum {
		if _, ok := val.(string); !ok {
			return fmt.Errorf("enum[%d]: expected string, got %T", i, val)
		}
	}
	return nil
}

func (f *Field) validateScalarWithoutConstraints(kind string) error {
	if f.MinLength != nil || f.MaxLength != nil || f.Pattern != "" {
		return fmt.Errorf("%s fields do not support length or pattern constraints", kind)
	}
	if f.Min != nil || f.Max != nil {
		return fmt.Errorf("%s fields do not support min/max constraints", kind)
	}
	if len(f.Enum) > 0 {
		return fmt.Errorf("%s fields do not support enum constraints", kind)
	}
	return nil
}

func (f *Field) validateNumberField() error {
	switch f.Kind {
	case "int32", "int64", "float", "double":
	default:
		return fmt.Errorf("invalid number kind %q (must be: int32, int64, float, double)", f.Kind)
	}

	for i, val := range f.Enum {
		switch val.(type) {
		case int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("enum[%d]: expected number, got %T", i, val)
		}
	}

	if f.MinLength != nil || f.MaxLength != nil || f.Pattern != "" {
		return fmt.Errorf("number fields do not support length or pattern constraints")
	}
	return f.validateRange()
}

func (f *Field) validateRange() error {
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return fmt.Errorf("min (%v) cannot exceed max (%v)", *f.Min, *f.Max)
	}
	return nil
}

// String returns a human-readable description of the field type.
func (f *Field) String() string {
	parts := []string{f.Type}
	if f.Kind != "" {
		parts = append(parts, fmt.Sprintf("(%s)", f.Kind))
	}
	if f.Type == "array" && f.Items != nil {
		parts = append(parts, "of "+f.Items.String())
	}
	if f.Required {
		parts = append(parts, "required")
	}
	if len(f.Enum) > 0 {
		parts = append(parts, fmt.Sprintf("enum[%d]", len(f.Enum)))
	}
	return strings.Join(parts, " ")
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
