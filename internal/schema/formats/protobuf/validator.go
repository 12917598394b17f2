package protobuf

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmphub-lab/dmphub/internal/schema"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Validator checks JSON documents against a message descriptor, using the
// proto field names (or their JSON names) as document keys. Fields declared
// `required` (proto2) must be present and non-null.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateData reports every violation, with nested fields as dotted paths
// like the YAML format.
func (v *Validator) ValidateData(ctx context.Context, compiled *schema.CompiledSchema, data map[string]interface{}) error {
	md, err := compiled.GetProtoDescriptor()
	if err != nil {
		return err
	}

	w := &walker{compiled: compiled}
	w.message("", md, data)
	if len(w.errors) > 0 {
		return &schema.MultiValidationError{Errors: w.errors}
	}
	return nil
}

type walker struct {
	compiled *schema.CompiledSchema
	errors   []*schema.ValidationError
}

func (w *walker) add(ve *schema.ValidationError) {
	ve.Format = string(schema.FormatProtobuf)
	w.errors = append(w.errors, ve)
}

func (w *walker) typeMismatch(path, expected string, value interface{}) {
	w.add(schema.NewTypeMismatchError(string(w.compiled.Contract), w.compiled.Version, path, expected, jsonTypeName(value)))
}

func (w *walker) message(prefix string, md protoreflect.MessageDescriptor, data map[string]interface{}) {
	fields := md.Fields()
	byKey := make(map[string]protoreflect.FieldDescriptor, fields.Len()*2)
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		byKey[string(fd.Name())] = fd
		byKey[fd.JSONName()] = fd
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var unknown []string
	seen := make(map[protoreflect.FieldNumber]bool, len(data))
	for _, key := range keys {
		fd, ok := byKey[key]
		if !ok {
			unknown = append(unknown, joinPath(prefix, key))
			continue
		}
		value := data[key]
		if value == nil {
			continue
		}
		seen[fd.Number()] = true
		w.field(joinPath(prefix, key), fd, value)
	}

	if w.compiled.StrictMode && len(unknown) > 0 {
		w.add(schema.NewUnknownFieldsError(string(w.compiled.Contract), w.compiled.Version, unknown))
	}

	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.Cardinality() == protoreflect.Required && !seen[fd.Number()] {
			w.add(schema.NewRequiredFieldError(string(w.compiled.Contract), w.compiled.Version, joinPath(prefix, string(fd.Name()))))
		}
	}
}

func (w *walker) field(path string, fd protoreflect.FieldDescriptor, value interface{}) {
	switch {
	case fd.IsMap():
		m, ok := value.(map[string]interface{})
		if !ok {
			w.typeMismatch(path, "object", value)
			return
		}
		for k, item := range m {
			w.single(fmt.Sprintf("%s[%q]", path, k), fd.MapValue(), item)
		}
	case fd.IsList():
		items, ok := value.([]interface{})
		if !ok {
			w.typeMismatch(path, "array", value)
			return
		}
		for i, item := range items {
			w.single(fmt.Sprintf("%s[%d]", path, i), fd, item)
		}
	default:
		w.single(path, fd, value)
	}
}

func (w *walker) single(path string, fd protoreflect.FieldDescriptor, value interface{}) {
	if value == nil {
		return
	}

	switch fd.Kind() {
	case protoreflect.BoolKind:
		if _, ok := value.(bool); !ok {
			w.typeMismatch(path, "bool", value)
		}

	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if _, ok := integer(value); !ok {
			w.typeMismatch(path, "integer", value)
		}

	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if n, ok := integer(value); !ok || n < 0 {
			w.typeMismatch(path, "unsigned integer", value)
		}

	case protoreflect.FloatKind, protoreflect.DoubleKind:
		switch value.(type) {
		case float64, float32, int, int64:
		default:
			w.typeMismatch(path, "number", value)
		}

	case protoreflect.StringKind, protoreflect.BytesKind:
		if _, ok := value.(string); !ok {
			w.typeMismatch(path, "string", value)
		}

	case protoreflect.EnumKind:
		w.enum(path, fd.Enum(), value)

	case protoreflect.MessageKind, protoreflect.GroupKind:
		m, ok := value.(map[string]interface{})
		if !ok {
			w.typeMismatch(path, "object", value)
			return
		}
		w.message(path, fd.Message(), m)
	}
}

// enum accepts a value name ("references") or its number.
func (w *walker) enum(path string, ed protoreflect.EnumDescriptor, value interface{}) {
	switch v := value.(type) {
	case string:
		if ed.Values().ByName(protoreflect.Name(v)) == nil {
			w.add(&schema.ValidationError{
				Contract: string(w.compiled.Contract),
				Version:  w.compiled.Version,
				Field:    path,
				Message:  fmt.Sprintf("%q is not a value of %s", v, ed.Name()),
			})
		}
	default:
		n, ok := integer(value)
		if !ok {
			w.typeMismatch(path, "string or integer (enum)", value)
			return
		}
		if ed.Values().ByNumber(protoreflect.EnumNumber(n)) == nil {
			w.add(&schema.ValidationError{
				Contract: string(w.compiled.Contract),
				Version:  w.compiled.Version,
				Field:    path,
				Message:  fmt.Sprintf("%d is not a value of %s", n, ed.Name()),
			})
		}
	}
}

// integer accepts whole JSON numbers as well as Go ints from callers that
// build documents in code.
func integer(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func jsonTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case float64, int, int64:
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
