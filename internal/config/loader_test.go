package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/redlinehq/redline/internal/config"
)

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  listen_addr: ":9090"
  log_level: warn
providers:
  llm:
    name: ollama
    model: llama3.1
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":9090")
	}
	if cfg.Server.LogLevel != config.LogWarn {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogWarn)
	}
	if cfg.Providers.LLM.Model != "llama3.1" {
		t.Errorf("providers.llm.model: got %q, want %q", cfg.Providers.LLM.Model, "llama3.1")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server: [not: a: mapping"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	_, err := config.Load(cfgPath)
	if err == nil {
		t.Fatal("expected error for malformed YAML, got nil")
	}
}

func TestValidate_TLSComplete(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  tls:
    cert_file: /etc/redline/cert.pem
    key_file: /etc/redline/key.pem
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.TLS == nil {
		t.Fatal("server.tls should be non-nil")
	}
	if cfg.Server.TLS.CertFile != "/etc/redline/cert.pem" {
		t.Errorf("server.tls.cert_file: got %q", cfg.Server.TLS.CertFile)
	}
}

func TestValidate_TLSOmittedIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.TLS != nil {
		t.Error("server.tls should be nil when omitted")
	}
}

func TestValidate_TemperatureBoundaries(t *testing.T) {
	t.Parallel()
	for _, temp := range []string{"0.0", "2.0"} {
		yaml := "corrector:\n  temperature: " + temp + "\n"
		if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
			t.Errorf("temperature %s should be valid, got error: %v", temp, err)
		}
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
corrector:
  temperature: -1.0
  max_tokens: -5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	// All failures should be reported in a single joined error.
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "temperature") {
		t.Errorf("error should mention temperature, got: %v", err)
	}
	if !strings.Contains(errStr, "max_tokens") {
		t.Errorf("error should mention max_tokens, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	// Sanity-check that the map is populated.
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	llmNames := config.ValidProviderNames["llm"]
	if len(llmNames) == 0 {
		t.Fatal("ValidProviderNames[\"llm\"] should not be empty")
	}
	// Check that "openai" is in the LLM list.
	found := false
	for _, n := range llmNames {
		if n == "openai" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"llm\"] should contain \"openai\"")
	}
}
