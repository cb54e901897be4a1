package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
  extra: true
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
turn_core:
  memory_enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default logging level info, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected default logging format json, got %q", cfg.Logging.Format)
	}
	if cfg.TurnCore.GuardrailsMode != "off" {
		t.Fatalf("expected default guardrails mode off, got %q", cfg.TurnCore.GuardrailsMode)
	}
}

func TestLoadValidatesLoggingFormat(t *testing.T) {
	path := writeConfig(t, `
logging:
  format: yaml
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format error, got %v", err)
	}
}

func TestLoadValidatesGuardrailsMode(t *testing.T) {
	path := writeConfig(t, `
turn_core:
  guardrails_mode: sometimes
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "guardrails_mode") {
		t.Fatalf("expected guardrails_mode error, got %v", err)
	}
}

func TestLoadValidatesToolGroupSetting(t *testing.T) {
	path := writeConfig(t, `
turn_core:
  tool_groups:
    web: sometimes
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "tool_groups[web]") {
		t.Fatalf("expected tool_groups[web] error, got %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: text
turn_core:
  guardrails_mode: auto
  memory_enabled: true
  tool_groups:
    web: ask
    memory_read: always
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.TurnCore.ToolGroups["web"] != "ask" {
		t.Fatalf("expected web=ask, got %q", cfg.TurnCore.ToolGroups["web"])
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "turncore.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
