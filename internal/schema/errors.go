package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no contract exists for a key or scope.
	ErrNotFound      = errors.New("contract not found")
	ErrAlreadyExists = errors.New("contract already exists")
	ErrDeprecated    = errors.New("contract is deprecated")
)

// ValidationError is one contract violation. Field is a dotted path into the
// document ("contact.mbox", "contributor[1].name").
type ValidationError struct {
	Contract      string   `json:"contract"`
	Version       int      `json:"version"`
	Format        string   `json:"format,omitempty"`
	Message       string   `json:"message"`
	Field         string   `json:"field,omitempty"`
	ExpectedType  string   `json:"expected_type,omitempty"`
	ActualType    string   `json:"actual_type,omitempty"`
	UnknownFields []string `json:"unknown_fields,omitempty"`
}

func (e *ValidationError) Error() string {
	where := fmt.Sprintf("contract %s v%d", e.Contract, e.Version)
	switch {
	case len(e.UnknownFields) > 0:
		return fmt.Sprintf("unknown field(s) %v not allowed in %s", e.UnknownFields, where)
	case e.Field != "":
		return fmt.Sprintf("field '%s': %s (%s)", e.Field, e.Message, where)
	default:
		return fmt.Sprintf("%s (%s)", e.Message, where)
	}
}

// paths lists the document paths this violation concerns.
func (e *ValidationError) paths() []string {
	if e.Field != "" {
		return append([]string{e.Field}, e.UnknownFields...)
	}
	return e.UnknownFields
}

// MultiValidationError is every violation a format validator found in one
// document.
type MultiValidationError struct {
	Errors []*ValidationError
}

func (e *MultiValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "validation failed"
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// ValidationDetailer is implemented by errors that carry structured details
// for API error bodies.
type ValidationDetailer interface {
	Details() map[string]interface{}
}

func (e *ValidationError) Details() map[string]interface{} {
	d := make(map[string]interface{})
	if e.Field != "" {
		d["field"] = e.Field
	}
	if len(e.UnknownFields) > 0 {
		d["unknown_fields"] = e.UnknownFields
	}
	return d
}

// Details lists every violated path under "fields".
func (e *MultiValidationError) Details() map[string]interface{} {
	var fields []string
	for _, ve := range e.Errors {
		fields = append(fields, ve.paths()...)
	}
	if len(fields) == 0 {
		return map[string]interface{}{}
	}
	return map[string]interface{}{"fields": fields}
}

// violations flattens a format validator's error into a list. Errors that
// are not validation errors yield nil.
func violations(err error) []*ValidationError {
	var multi *MultiValidationError
	if errors.As(err, &multi) {
		return multi.Errors
	}
	var single *ValidationError
	if errors.As(err, &single) {
		return []*ValidationError{single}
	}
	return nil
}

func NewUnknownFieldsError(contract string, version int, fields []string) *ValidationError {
	return &ValidationError{
		Contract:      contract,
		Version:       version,
		Message:       fmt.Sprintf("unknown field(s) not allowed: %v", fields),
		UnknownFields: fields,
	}
}

func NewTypeMismatchError(contract string, version int, field, expected, actual string) *ValidationError {
	return &ValidationError{
		Contract:     contract,
		Version:      version,
		Field:        field,
		Message:      fmt.Sprintf("expected %s, got %s", expected, actual),
		ExpectedType: expected,
		ActualType:   actual,
	}
}

func NewRequiredFieldError(contract string, version int, field string) *ValidationError {
	return &ValidationError{
		Contract: contract,
		Version:  version,
		Field:    field,
		Message:  "required field is missing",
	}
}
