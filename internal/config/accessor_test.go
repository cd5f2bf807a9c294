package config

import (
	"strings"
	"testing"
)

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := Defaults()

	val, err := GetByPath(cfg, "provider.model")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "gemini-1.5-flash" {
		t.Fatalf("unexpected value %v", val)
	}

	val, err = GetByPath(cfg, "server.port")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != float64(3000) {
		t.Fatalf("unexpected value %v", val)
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	cfg := Defaults()
	if _, err := GetByPath(cfg, "provider.nonexistent"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetByPath_ValidPath(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "provider.model", "gemini-1.5-pro"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Provider.Model != "gemini-1.5-pro" {
		t.Fatalf("value not applied: %q", cfg.Provider.Model)
	}
}

func TestSetByPath_IntConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "server.port", "8080"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("int not converted: %d", cfg.Server.Port)
	}
}

func TestSetByPath_BoolConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "metrics.enabled", "false"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("bool not converted")
	}
}

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Provider.APIKey = "sk-abcdefghijklmnop"
	cfg.Server.Auth.PasswordHash = "deadbeef"

	sanitized := Sanitize(cfg)
	if sanitized.Provider.APIKey == cfg.Provider.APIKey {
		t.Fatal("api key not masked")
	}
	if !strings.HasPrefix(sanitized.Provider.APIKey, "sk-a") {
		t.Fatalf("mask should keep a prefix: %q", sanitized.Provider.APIKey)
	}
	if sanitized.Server.Auth.PasswordHash != "***" {
		t.Fatalf("password hash not masked: %q", sanitized.Server.Auth.PasswordHash)
	}
	// Original untouched.
	if cfg.Provider.APIKey != "sk-abcdefghijklmnop" {
		t.Fatal("sanitize mutated the original")
	}
}

func TestSanitize_ShortSecret(t *testing.T) {
	cfg := Defaults()
	cfg.Music.APIKey = "short"
	if got := Sanitize(cfg).Music.APIKey; got != "***" {
		t.Fatalf("short secret must be fully masked, got %q", got)
	}
}

func TestListPaths_ReturnsAllLeaves(t *testing.T) {
	cfg := Defaults()
	paths := ListPaths(cfg)
	for _, want := range []string{"provider.model", "server.port", "agent.maxToolRounds", "store.dbPath"} {
		if _, ok := paths[want]; !ok {
			t.Fatalf("missing path %q", want)
		}
	}
}
