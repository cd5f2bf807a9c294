package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for melobot.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Server   ServerConfig   `json:"server"`
	Provider ProviderConfig `json:"provider"`
	Store    StoreConfig    `json:"store"`
	Weather  WeatherConfig  `json:"weather"`
	Music    MusicConfig    `json:"music"`
	Personas PersonasConfig `json:"personas"`
	Agent    AgentConfig    `json:"agent"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"`
	BotName  string `json:"botName"`
}

type ServerConfig struct {
	Host           string     `json:"host"`
	Port           int        `json:"port"`
	AllowedOrigins []string   `json:"allowedOrigins"`
	StaticDir      string     `json:"staticDir,omitempty"`
	Auth           ServerAuth `json:"auth"`
}

// ServerAuth is the fallback admin credential pair. The hash stored in the
// settings table takes precedence when the seed command has run.
type ServerAuth struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

type ProviderConfig struct {
	APIKey         string  `json:"apiKey,omitempty"`
	APIBase        string  `json:"apiBase,omitempty"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"topP"`
	TopK           int     `json:"topK"`
	TimeoutSeconds int     `json:"timeoutSeconds"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath"`
}

type WeatherConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	APIBase string `json:"apiBase,omitempty"`
}

type MusicConfig struct {
	APIKey     string `json:"apiKey,omitempty"`
	APIBase    string `json:"apiBase,omitempty"`
	MaxResults int    `json:"maxResults"`
}

type PersonasConfig struct {
	Dir string `json:"dir,omitempty"`
}

type AgentConfig struct {
	MaxToolRounds int `json:"maxToolRounds"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.melobot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".melobot"
	}
	return filepath.Join(home, ".melobot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Personas.Dir = ExpandPath(cfg.Personas.Dir)
	cfg.Server.StaticDir = ExpandPath(cfg.Server.StaticDir)
	ResolveSecrets(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}

	if cfg.Provider.Model == "" {
		errs = append(errs, "provider.model must not be empty")
	}
	if cfg.Provider.Temperature < 0 || cfg.Provider.Temperature > 2 {
		errs = append(errs, "provider.temperature must be between 0 and 2")
	}
	if cfg.Provider.TimeoutSeconds < 1 {
		errs = append(errs, "provider.timeoutSeconds must be >= 1")
	}

	if cfg.Agent.MaxToolRounds < 1 || cfg.Agent.MaxToolRounds > 20 {
		errs = append(errs, "agent.maxToolRounds must be between 1 and 20")
	}

	if cfg.Music.MaxResults < 1 {
		errs = append(errs, "music.maxResults must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ResolveSecrets expands env placeholders left in the secret fields. The
// compiled-in defaults reference ${GEMINI_API_KEY} and friends so that keys
// come from the environment even without a config file. A placeholder whose
// variable is unset collapses to "".
func ResolveSecrets(cfg *Config) {
	cfg.Provider.APIKey = resolveSecret(cfg.Provider.APIKey)
	cfg.Weather.APIKey = resolveSecret(cfg.Weather.APIKey)
	cfg.Music.APIKey = resolveSecret(cfg.Music.APIKey)
}

func resolveSecret(v string) string {
	expanded := ExpandEnvVars(v)
	if envVarPattern.MatchString(expanded) {
		return ""
	}
	return expanded
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
