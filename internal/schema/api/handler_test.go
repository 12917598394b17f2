package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmphub-lab/dmphub/internal/schema"
	"github.com/dmphub-lab/dmphub/internal/schema/formats/yaml"
	schemaStorage "github.com/dmphub-lab/dmphub/internal/schema/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const deleteContract = `
contract: delete
version: 1
description: Names the plan a tombstone request targets.
strictMode: true
fields:
  dmp_id:
    type: object!
    fields:
      identifier: string!
`

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	dir := filepath.Join(root, schema.PlatformScope, "delete")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "v1.yaml"), []byte(deleteContract), 0o644))

	registry := schema.NewRegistry(schemaStorage.NewFileSystemRepository(root))
	validator := schema.NewValidator(schema.NewFormatRegistry())
	validator.RegisterFormat(schema.FormatYaml, yaml.NewCompiler(), yaml.NewValidator())

	r := gin.New()
	NewHandler(registry, validator).RegisterRoutes(r)
	return r
}

func TestHandleList_ReturnsArrayWithJSONDefinitions(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/contracts", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body, 1)
	require.Equal(t, schema.PlatformScope, body[0]["scope"])
	require.Equal(t, "delete", body[0]["contract"])
	require.Equal(t, float64(1), body[0]["version"])
	require.Equal(t, "yaml", body[0]["format"])
	require.Equal(t, true, body[0]["strict_mode"])

	defMap, ok := body[0]["definition"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "delete", defMap["contract"])
}

func TestHandleGet(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{name: "platform contract", path: "/v1/contracts/delete/1", wantCode: http.StatusOK},
		{name: "provenance scope falls back", path: "/v1/contracts/delete/1?scope=dmptool", wantCode: http.StatusOK},
		{name: "missing version", path: "/v1/contracts/delete/2", wantCode: http.StatusNotFound},
		{name: "unknown contract", path: "/v1/contracts/publish/1", wantCode: http.StatusNotFound},
		{name: "bad version", path: "/v1/contracts/delete/latest", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestHandleValidate(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantFields []interface{}
	}{
		{
			name:     "valid document",
			body:     `{"dmp_id": {"identifier": "10.80030/ab12cd34"}}`,
			wantCode: http.StatusOK,
		},
		{
			name:       "violations are listed",
			body:       `{"dmp_id": {}}`,
			wantCode:   http.StatusBadRequest,
			wantFields: []interface{}{"dmp_id.identifier"},
		},
		{
			name:     "invalid json",
			body:     `{`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/contracts/delete/1/validate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, req)

			require.Equal(t, tt.wantCode, resp.Code)
			if tt.wantFields == nil {
				return
			}

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			require.Equal(t, "validation_failed", body["error"])
			details := body["details"].(map[string]interface{})
			require.Equal(t, tt.wantFields, details["fields"])
		})
	}
}
