package protobuf_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dmphub-lab/dmphub/internal/schema"
	"github.com/dmphub-lab/dmphub/internal/schema/formats/protobuf"
	"github.com/stretchr/testify/require"
)

const amendProto = `
syntax = "proto2";

enum RelationType {
  REFERENCES = 0;
  IS_CITED_BY = 1;
}

message RelatedIdentifier {
  required string identifier = 1;
  optional RelationType relation_type = 2;
}

message Contact {
  required string mbox = 1;
}

message AmendDocument {
  required string title = 1;
  optional Contact contact = 2;
  repeated RelatedIdentifier related_identifier = 3;
  map<string, int32> counts = 4;
}
`

func compile(t *testing.T, contract schema.Contract, definition string, strict bool) *schema.CompiledSchema {
	t.Helper()
	compiled, err := protobuf.NewCompiler().Compile(context.Background(), &schema.Schema{
		Scope:      schema.PlatformScope,
		Contract:   contract,
		Version:    1,
		Format:     schema.FormatProtobuf,
		Definition: []byte(definition),
		StrictMode: strict,
	})
	require.NoError(t, err)
	return compiled
}

func violations(t *testing.T, err error) []*schema.ValidationError {
	t.Helper()
	var multi *schema.MultiValidationError
	require.True(t, errors.As(err, &multi), "expected MultiValidationError, got %v", err)
	return multi.Errors
}

func fields(errs []*schema.ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Field != "" {
			out = append(out, e.Field)
		}
		out = append(out, e.UnknownFields...)
	}
	return out
}

func TestCompiler_PicksMessageNamedAfterContract(t *testing.T) {
	compiled := compile(t, schema.ContractAmend, amendProto, false)

	md, err := compiled.GetProtoDescriptor()
	require.NoError(t, err)
	require.Equal(t, "AmendDocument", string(md.Name()))
	require.Equal(t, schema.ContractAmend, compiled.Contract)
}

func TestCompiler_FallsBackToLastMessage(t *testing.T) {
	compiled := compile(t, schema.ContractDelete, `
syntax = "proto3";
message Identifier { string identifier = 1; }
message Envelope { Identifier dmp_id = 1; }
`, false)

	md, err := compiled.GetProtoDescriptor()
	require.NoError(t, err)
	require.Equal(t, "Envelope", string(md.Name()))
}

func TestCompiler_Errors(t *testing.T) {
	c := protobuf.NewCompiler()
	ctx := context.Background()

	_, err := c.Compile(ctx, &schema.Schema{Contract: schema.ContractAuthor, Format: schema.FormatYaml})
	require.Error(t, err)

	_, err = c.Compile(ctx, &schema.Schema{
		Contract:   schema.ContractAuthor,
		Version:    1,
		Format:     schema.FormatProtobuf,
		Definition: []byte(`syntax = "proto3"; message {`),
	})
	require.Error(t, err)

	_, err = c.Compile(ctx, &schema.Schema{
		Contract:   schema.ContractAuthor,
		Version:    1,
		Format:     schema.FormatProtobuf,
		Definition: []byte(`syntax = "proto3"; enum Only { ZERO = 0; }`),
	})
	require.ErrorContains(t, err, "defines no message")
}

func TestValidator_AcceptsValidDocument(t *testing.T) {
	compiled := compile(t, schema.ContractAmend, amendProto, true)

	err := protobuf.NewValidator().ValidateData(context.Background(), compiled, map[string]interface{}{
		"title":   "Coral reef survey",
		"contact": map[string]interface{}{"mbox": "pi@example.edu"},
		"related_identifier": []interface{}{
			map[string]interface{}{"identifier": "https://doi.org/10.5281/zenodo.1", "relation_type": "IS_CITED_BY"},
			map[string]interface{}{"identifier": "https://doi.org/10.5281/zenodo.2", "relationType": float64(0)},
		},
		"counts": map[string]interface{}{"datasets": float64(3)},
	})
	require.NoError(t, err)
}

func TestValidator_ReportsRequiredFieldsWithPaths(t *testing.T) {
	compiled := compile(t, schema.ContractAmend, amendProto, false)

	err := protobuf.NewValidator().ValidateData(context.Background(), compiled, map[string]interface{}{
		"contact": map[string]interface{}{},
		"related_identifier": []interface{}{
			map[string]interface{}{"relation_type": "REFERENCES"},
		},
	})

	errs := violations(t, err)
	require.ElementsMatch(t, []string{"title", "contact.mbox", "related_identifier[0].identifier"}, fields(errs))
	for _, e := range errs {
		require.Equal(t, "required field is missing", e.Message)
		require.Equal(t, string(schema.FormatProtobuf), e.Format)
	}
}

func TestValidator_CollectsEveryViolation(t *testing.T) {
	compiled := compile(t, schema.ContractAmend, amendProto, true)

	err := protobuf.NewValidator().ValidateData(context.Background(), compiled, map[string]interface{}{
		"title":   42,
		"contact": map[string]interface{}{"mbox": "pi@example.edu", "phone": "555"},
		"related_identifier": []interface{}{
			map[string]interface{}{"identifier": "x", "relation_type": "SUPERSEDES"},
			"not-an-object",
		},
		"counts": map[string]interface{}{"datasets": 1.5},
		"extra":  true,
	})

	errs := violations(t, err)
	require.ElementsMatch(t, []string{
		"title",
		"contact.phone",
		"related_identifier[0].relation_type",
		"related_identifier[1]",
		`counts["datasets"]`,
		"extra",
	}, fields(errs))
}

func TestValidator_UnknownFieldsIgnoredWhenNotStrict(t *testing.T) {
	compiled := compile(t, schema.ContractAmend, amendProto, false)

	err := protobuf.NewValidator().ValidateData(context.Background(), compiled, map[string]interface{}{
		"title":   "t",
		"contact": map[string]interface{}{"mbox": "m", "phone": "555"},
		"extra":   true,
	})
	require.NoError(t, err)
}

func TestValidator_NullCountsAsMissing(t *testing.T) {
	compiled := compile(t, schema.ContractAmend, amendProto, false)

	err := protobuf.NewValidator().ValidateData(context.Background(), compiled, map[string]interface{}{
		"title": nil,
	})
	require.Equal(t, []string{"title"}, fields(violations(t, err)))
}

func TestValidator_RejectsNonProtobufSchema(t *testing.T) {
	err := protobuf.NewValidator().ValidateData(context.Background(), &schema.CompiledSchema{Format: schema.FormatYaml}, nil)
	require.Error(t, err)
}
