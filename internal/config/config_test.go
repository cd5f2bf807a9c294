package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	ResolveSecrets(cfg)
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Provider.Model != "gemini-1.5-flash" {
		t.Fatalf("unexpected default model %q", cfg.Provider.Model)
	}
	if cfg.Agent.MaxToolRounds != 5 {
		t.Fatalf("unexpected default round bound %d", cfg.Agent.MaxToolRounds)
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"server": {"port": 8081}, "provider": {"model": "gemini-1.5-pro"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Fatalf("override not applied: %d", cfg.Server.Port)
	}
	if cfg.Provider.Model != "gemini-1.5-pro" {
		t.Fatalf("override not applied: %q", cfg.Provider.Model)
	}
	// Untouched sections keep defaults.
	if cfg.Music.MaxResults != 5 {
		t.Fatalf("default lost: %d", cfg.Music.MaxResults)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("MELOBOT_TEST_KEY", "sk-123")
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"provider": {"apiKey": "${MELOBOT_TEST_KEY}"}, "weather": {"apiKey": "${MELOBOT_TEST_MISSING:-fallback}"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider.APIKey != "sk-123" {
		t.Fatalf("env var not expanded: %q", cfg.Provider.APIKey)
	}
	if cfg.Weather.APIKey != "fallback" {
		t.Fatalf("default value not applied: %q", cfg.Weather.APIKey)
	}
}

func TestResolveSecrets_UnsetCollapsesToEmpty(t *testing.T) {
	cfg := Defaults()
	cfg.Music.APIKey = "${MELOBOT_DEFINITELY_UNSET_VAR}"
	ResolveSecrets(cfg)
	if cfg.Music.APIKey != "" {
		t.Fatalf("unset placeholder must collapse to empty, got %q", cfg.Music.APIKey)
	}
}

func TestValidate_Errors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 70000
	cfg.Provider.Model = ""
	cfg.Agent.MaxToolRounds = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"server.port", "provider.model", "agent.maxToolRounds"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in: %v", want, err)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Defaults()
	cfg.Server.Port = 4040
	cfg.General.BotName = "Bot de Teste"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Server.Port != 4040 || loaded.General.BotName != "Bot de Teste" {
		t.Fatalf("round trip lost values: %+v", loaded)
	}
}
