package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  extra: true
llm:
  default_provider: anthropic
  anthropic:
    api_key: sk-test
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadValidatesDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  anthropic:
    api_key: sk-test
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_provider") {
		t.Fatalf("expected default_provider error, got %v", err)
	}
}

func TestLoadValidatesFallbackChain(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  fallback_chain: [openai]
  anthropic:
    api_key: sk-test
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "fallback_chain") {
		t.Fatalf("expected fallback_chain error, got %v", err)
	}
}

func TestLoadValidatesVectorIndexBackend(t *testing.T) {
	path := writeConfig(t, `
vector_index:
  backend: qdrant
llm:
  default_provider: anthropic
  anthropic:
    api_key: sk-test
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "qdrant_url") {
		t.Fatalf("expected qdrant_url error, got %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  http_port: 8080
llm:
  default_provider: anthropic
  anthropic:
    api_key: sk-test
    default_model: claude-3-5-sonnet
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Fatalf("expected http_port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Cache.Backend != "memory" {
		t.Fatalf("expected default cache backend memory, got %q", cfg.Cache.Backend)
	}
	if cfg.Alerts.Schedule == "" {
		t.Fatalf("expected default alert schedule to be applied")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("GROUNDEDCORE_HOST", "127.0.0.1")
	t.Setenv("GROUNDEDCORE_HTTP_PORT", "9999")
	t.Setenv("DATABASE_URL", "postgres://override@localhost:5432/groundedcore?sslmode=disable")

	path := writeConfig(t, `
server:
  host: 0.0.0.0
  http_port: 8080
database:
  url: postgres://default@localhost:5432/groundedcore?sslmode=disable
llm:
  default_provider: anthropic
  anthropic:
    api_key: sk-test
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("expected host override, got %q", cfg.Server.Host)
	}
	if cfg.Server.HTTPPort != 9999 {
		t.Fatalf("expected http_port override, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Database.URL != "postgres://override@localhost:5432/groundedcore?sslmode=disable" {
		t.Fatalf("expected database url override, got %q", cfg.Database.URL)
	}
}

func TestLoadValidatesGateMinCitations(t *testing.T) {
	path := writeConfig(t, `
gate:
  min_citations_for_fact: -1
llm:
  default_provider: anthropic
  anthropic:
    api_key: sk-test
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "min_citations_for_fact") {
		t.Fatalf("expected min_citations_for_fact error, got %v", err)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "groundedcore.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
