package yaml

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmphub-lab/dmphub/internal/schema"
	"github.com/shopspring/decimal"
)

// Validator validates documents against YAML contracts.
type Validator struct{}

// NewValidator creates a new YAML validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateData validates the document against the compiled YAML contract.
// All violations are collected; nested fields are reported with dotted paths
// ("contact.mbox", "contributor[1].name").
func (v *Validator) ValidateData(ctx context.Context, compiled *schema.CompiledSchema, data map[string]interface{}) error {
	specIntf, err := compiled.GetYAMLSpec()
	if err != nil {
		return err
	}
	spec, ok := specIntf.(*SchemaSpec)
	if !ok {
		return fmt.Errorf("compiled schema is not a YAML SchemaSpec: %T", specIntf)
	}

	w := &walker{compiled: compiled}
	w.object("", spec.Fields, data)

	if len(w.errors) > 0 {
		return &schema.MultiValidationError{Errors: w.errors}
	}
	return nil
}

type walker struct {
	compiled *schema.CompiledSchema
	errors   []*schema.ValidationError
}

func (w *walker) fail(field, format string, args ...interface{}) {
	w.errors = append(w.errors, &schema.ValidationError{
		Contract: string(w.compiled.Contract),
		Version:  w.compiled.Version,
		Format:   string(schema.FormatYaml),
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (w *walker) typeMismatch(field, expected string, value interface{}) {
	ve := schema.NewTypeMismatchError(string(w.compiled.Contract), w.compiled.Version, field, expected, jsonTypeName(value))
	ve.Format = string(schema.FormatYaml)
	w.errors = append(w.errors, ve)
}

func (w *walker) object(prefix string, fields map[string]*Field, data map[string]interface{}) {
	if w.compiled.StrictMode {
		var unknown []string
		for key := range data {
			if _, exists := fields[key]; !exists {
				unknown = append(unknown, joinPath(prefix, key))
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			ve := schema.NewUnknownFieldsError(string(w.compiled.Contract), w.compiled.Version, unknown)
			ve.Format = string(schema.FormatYaml)
			w.errors = append(w.errors, ve)
		}
	}

	// Sorted for deterministic error order.
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := fields[name]
		path := joinPath(prefix, name)
		value, exists := data[name]
		if !exists {
			if spec.Required {
				w.fail(path, "required field is missing")
			}
			continue
		}
		w.value(path, spec, value)
	}
}

func (w *walker) value(path string, spec *Field, value interface{}) {
	if value == nil {
		if spec.Required {
			w.fail(path, "required field cannot be null")
		}
		return
	}

	switch spec.Type {
	case "string":
		w.string(path, spec, value)
	case "boolean":
		if _, ok := value.(bool); !ok {
			w.typeMismatch(path, "boolean", value)
		}
	case "number":
		w.number(path, spec, value)
	case "decimal":
		w.decimal(path, spec, value)
	case "object":
		obj, ok := value.(map[string]interface{})
		if !ok {
			w.typeMismatch(path, "object", value)
			return
		}
		w.object(path, spec.Fields, obj)
	case "array":
		w.array(path, spec, value)
	default:
		w.fail(path, "unknown field type: %s", spec.Type)
	}
}

func (w *walker) array(path string, spec *Field, value interface{}) {
	items, ok := value.([]interface{})
	if !ok {
		w.typeMismatch(path, "array", value)
		return
	}
	if spec.MinItems != nil && len(items) < *spec.MinItems {
		w.fail(path, "array has %d items, minimum is %d", len(items), *spec.MinItems)
	}
	if spec.MaxItems != nil && len(items) > *spec.MaxItems {
		w.fail(path, "array has %d items, maximum is %d", len(items), *spec.MaxItems)
	}
	for i, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if item == nil {
			w.fail(itemPath, "array items cannot be null")
			continue
		}
		w.value(itemPath, spec.Items, item)
	}
}

func (w *walker) string(path string, spec *Field, value interface{}) {
	str, ok := value.(string)
	if !ok {
		w.typeMismatch(path, "string", value)
		return
	}

	if len(spec.Enum) > 0 {
		found := false
		for _, allowed := range spec.Enum {
			if allowedStr, ok := allowed.(string); ok && allowedStr == str {
				found = true
				break
			}
		}
		if !found {
			w.fail(path, "value %q not in enum %v", str, spec.Enum)
			return
		}
	}

	length := len(str)
	if spec.MinLength != nil && length < *spec.MinLength {
		w.fail(path, "string length %d is less than minimum %d", length, *spec.MinLength)
		return
	}
	if spec.MaxLength != nil && length > *spec.MaxLength {
		w.fail(path, "string length %d exceeds maximum %d", length, *spec.MaxLength)
		return
	}

	if spec.compiledPattern != nil && !spec.compiledPattern.MatchString(str) {
		w.fail(path, "string does not match pattern %q", spec.Pattern)
	}
}

// number validates a number field with strict overflow protection.
func (w *walker) number(path string, spec *Field, value interface{}) {
	// JSON unmarshals all numbers as float64
	num, ok := value.(float64)
	if !ok {
		if intVal, ok := value.(int); ok {
			num = float64(intVal)
		} else {
			w.typeMismatch(path, "number", value)
			return
		}
	}

	switch spec.Kind {
	case "int32":
		if num != float64(int64(num)) {
			w.fail(path, "expected integer, got float with fractional part")
			return
		}
		if num < -2147483648 || num > 2147483647 {
			w.fail(path, "value %v out of range for int32", num)
			return
		}
	case "int64":
		if num != float64(int64(num)) {
			w.fail(path, "expected integer, got float with fractional part")
			return
		}
		if num < -9223372036854775808 || num > 9223372036854775807 {
			w.fail(path, "value %v out of range for int64", num)
			return
		}
	case "float":
		if num != 0 && (num < -3.4e38 || num > 3.4e38) {
			w.fail(path, "value %v out of range for float32", num)
			return
		}
	case "double":
	default:
		w.fail(path, "unknown number kind: %s", spec.Kind)
		return
	}

	if len(spec.Enum) > 0 && !numberInEnum(num, spec.Enum) {
		w.fail(path, "value %v not in enum %v", num, spec.Enum)
		return
	}

	if spec.Min != nil && num < *spec.Min {
		w.fail(path, "value %v is less than minimum %v", num, *spec.Min)
		return
	}
	if spec.Max != nil && num > *spec.Max {
		w.fail(path, "value %v exceeds maximum %v", num, *spec.Max)
	}
}

// decimal accepts a JSON number or a numeric string, so monetary amounts can
// be submitted without float rounding.
func (w *walker) decimal(path string, spec *Field, value interface{}) {
	var d decimal.Decimal
	switch t := value.(type) {
	case float64:
		d = decimal.NewFromFloat(t)
	case int:
		d = decimal.NewFromInt(int64(t))
	case string:
		parsed, err := decimal.NewFromString(t)
		if err != nil {
			w.fail(path, "value %q is not a decimal number", t)
			return
		}
		d = parsed
	default:
		w.typeMismatch(path, "decimal", value)
		return
	}

	if spec.Min != nil && d.LessThan(decimal.NewFromFloat(*spec.Min)) {
		w.fail(path, "value %s is less than minimum %v", d, *spec.Min)
		return
	}
	if spec.Max != nil && d.GreaterThan(decimal.NewFromFloat(*spec.Max)) {
		w.fail(path, "value %s exceeds maximum %v", d, *spec.Max)
	}
}

func numberInEnum(num float64, enum []interface{}) bool {
	for _, allowed := range enum {
		var allowedNum float64
		switch v := allowed.(type) {
		case int:
			allowedNum = float64(v)
		case int32:
			allowedNum = float64(v)
		case int64:
			allowedNum = float64(v)
		case float32:
			allowedNum = float64(v)
		case float64:
			allowedNum = v
		default:
			continue
		}
		if allowedNum == num {
			return true
		}
	}
	return false
}

// jsonTypeName returns a human-readable type name for JSON values.
func jsonTypeName(v interface{}) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case bool:
		return "bool"
	case float64, int:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
