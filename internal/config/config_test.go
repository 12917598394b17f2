package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	root := t.TempDir()
	schemaDir := filepath.Join(root, "schemas")
	requireNoError(t, os.MkdirAll(schemaDir, 0o755))

	if !strings.Contains(body, "auth:") {
		body += "\nauth:\n  signing_key: \"test-key\"\n"
	}

	cfgPath := filepath.Join(root, "dmphub.yaml")
	requireNoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
schema:
  source_type: "filesystem"
  path: "%s"
%s`, schemaDir, body)), 0o644))
	return cfgPath
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	requireNoError(t, err)

	if cfg.Server.Port != 8080 || cfg.Server.Mode != "release" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Identifier.BaseDomain != "doi.org" || cfg.Identifier.MintAttempts != 10 {
		t.Fatalf("unexpected identifier defaults: %+v", cfg.Identifier)
	}
	if cfg.Versioning.QuiescenceWindow != time.Hour {
		t.Fatalf("expected 1h quiescence window, got %s", cfg.Versioning.QuiescenceWindow)
	}
	if cfg.Provenance.CacheTTL != 5*time.Minute {
		t.Fatalf("expected 5m cache ttl, got %s", cfg.Provenance.CacheTTL)
	}
	if cfg.Pagination.DefaultPerPage != 25 || cfg.Pagination.MaxPerPage != 250 {
		t.Fatalf("unexpected pagination defaults: %+v", cfg.Pagination)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	cfgPath := writeConfig(t, `
server:
  port: 9000
identifier:
  shoulder: "10.48321"
versioning:
  quiescence_window: "30m"
  conditional_writes: true
storage:
  backend: "dynamodb"
  dynamodb:
    table: "dmphub-test"
notify:
  sink: "kafka"
  kafka:
    brokers: ["localhost:9092"]
auth:
  signing_key: "test-key"
  client_aliases:
    dmptool-prod: dmptool
`)
	t.Setenv("DMPHUB_SERVER__PORT", "9191")
	t.Setenv("DMPHUB_STORAGE__DYNAMODB__ENDPOINT", "http://localhost:4566")

	cfg, err := Load(cfgPath)
	requireNoError(t, err)

	if cfg.Server.Port != 9191 {
		t.Fatalf("expected env to override server.port, got %d", cfg.Server.Port)
	}
	if cfg.Identifier.Shoulder != "10.48321" {
		t.Fatalf("expected shoulder from file, got %q", cfg.Identifier.Shoulder)
	}
	if cfg.Versioning.QuiescenceWindow != 30*time.Minute || !cfg.Versioning.ConditionalWrites {
		t.Fatalf("unexpected versioning config: %+v", cfg.Versioning)
	}
	if cfg.Storage.DynamoDB.Endpoint != "http://localhost:4566" {
		t.Fatalf("expected dynamodb endpoint from env, got %q", cfg.Storage.DynamoDB.Endpoint)
	}
	if cfg.Auth.ClientAliases["dmptool-prod"] != "dmptool" {
		t.Fatalf("expected client alias, got %v", cfg.Auth.ClientAliases)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "invalid port",
			body:    "server:\n  port: -1\n",
			wantErr: "invalid server.port",
		},
		{
			name:    "too many mint attempts",
			body:    "identifier:\n  mint_attempts: 50\n",
			wantErr: "identifier.mint_attempts must be 1-10",
		},
		{
			name:    "unknown storage backend",
			body:    "storage:\n  backend: \"sqlite\"\n",
			wantErr: "unsupported storage.backend",
		},
		{
			name:    "redis sink without url",
			body:    "notify:\n  sink: \"redis\"\n",
			wantErr: "notify.redis.url is required",
		},
		{
			name:    "outbox without postgres",
			body:    "storage:\n  backend: \"memory\"\nnotify:\n  outbox: true\n",
			wantErr: "notify.outbox requires the postgres storage backend",
		},
		{
			name:    "tracing without endpoint",
			body:    "tracing:\n  enabled: true\n",
			wantErr: "tracing.endpoint is required",
		},
		{
			name:    "default page larger than max",
			body:    "pagination:\n  default_per_page: 500\n",
			wantErr: "exceeds pagination.max_per_page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_MissingSigningKey(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "dmphub.yaml")
	requireNoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
schema:
  path: "%s"
`, root)), 0o644))

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "auth.signing_key is required") {
		t.Fatalf("expected signing key error, got %v", err)
	}

	cfg, err := LoadUnvalidated(cfgPath)
	requireNoError(t, err)
	if cfg.Schema.Path != root {
		t.Fatalf("expected schema path %q, got %q", root, cfg.Schema.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to load config file") {
		t.Fatalf("expected file error, got %v", err)
	}
}

func requireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
