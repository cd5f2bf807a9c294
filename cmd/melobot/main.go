package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"melobot/internal/agent"
	"melobot/internal/config"
	"melobot/internal/domain"
	"melobot/internal/fastpath"
	"melobot/internal/persona"
	"melobot/internal/provider"
	"melobot/internal/server"
	"melobot/internal/store"
	"melobot/internal/tool"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// Secrets (GEMINI_API_KEY, OPENWEATHER_API_KEY, LASTFM_API_KEY) may live
	// in a local .env file.
	godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "melobot",
		Short: "melobot: web backend for a Brazilian-Portuguese music chatbot",
		Long:  "melobot serves a music chat API backed by the Gemini generateContent endpoint with clock, weather and song-search tools.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.melobot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config file, falling back to defaults when it does
// not exist yet.
func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
		config.ResolveSecrets(cfg)
	}
	return cfg
}

func setupLogger(cfg config.GeneralConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	out := os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(config.ExpandPath(cfg.LogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Warn("cannot open log file, logging to stderr", "path", cfg.LogFile, "err", err)
		} else {
			out = f
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the chat API server",
		Long:  "Starts the HTTP chat backend. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger = setupLogger(cfg.General)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	prov := provider.NewGemini(provider.GeminiConfig{
		APIKey:      cfg.Provider.APIKey,
		APIBase:     cfg.Provider.APIBase,
		Model:       cfg.Provider.Model,
		Temperature: cfg.Provider.Temperature,
		TopP:        cfg.Provider.TopP,
		TopK:        cfg.Provider.TopK,
		Timeout:     time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
		Logger:      logger,
	})
	if err := prov.Healthy(ctx); err != nil {
		logger.Warn("provider unhealthy at startup", "provider", prov.Name(), "err", err)
	} else {
		logger.Info("provider healthy", "provider", prov.Name())
	}

	clock := tool.NewClockTool()
	weather := tool.NewWeatherTool(tool.WeatherConfig{
		APIKey:  cfg.Weather.APIKey,
		APIBase: cfg.Weather.APIBase,
		Logger:  logger,
	})
	songs := tool.NewSongSearchTool(tool.SongSearchConfig{
		APIKey:     cfg.Music.APIKey,
		APIBase:    cfg.Music.APIBase,
		MaxResults: cfg.Music.MaxResults,
		Logger:     logger,
	})

	toolReg := tool.NewRegistry(logger)
	toolReg.Register(clock)
	toolReg.Register(weather)
	toolReg.Register(songs)

	orch := agent.New(agent.Config{
		Provider:  prov,
		Tools:     toolReg,
		Clock:     clock,
		Logger:    logger,
		MaxRounds: cfg.Agent.MaxToolRounds,
	})

	detector := fastpath.NewDetector(clock, weather, logger)
	resolver := agent.NewInstructionResolver(db, db, logger)

	personas, err := persona.Catalog(config.ExpandPath(cfg.Personas.Dir), logger)
	if err != nil {
		logger.Warn("persona catalog unavailable", "err", err)
	}

	srv := server.New(server.Config{
		Server:       cfg.Server,
		Metrics:      cfg.Metrics,
		BotName:      cfg.General.BotName,
		Version:      version,
		Logger:       logger,
		Orchestrator: orch,
		Detector:     detector,
		Resolver:     resolver,
		Clock:        clock,
		Transcripts:  db,
		Settings:     db,
		Users:        db,
		Ranking:      db,
		AccessLog:    db,
		Personas:     personas,
	})

	return srv.Start(ctx)
}

func seedCmd() *cobra.Command {
	var password string
	var instruction string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the admin password hash and default system instruction",
		Long:  "Writes the admin password hash into the settings table and, if none exists yet, a default global system instruction.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			if password == "" {
				password = os.Getenv("SEED_ADMIN_PASSWORD")
			}
			if password == "" {
				password = "admin123"
			}
			if instruction == "" {
				instruction = os.Getenv("SEED_SYSTEM_INSTRUCTION")
			}
			if instruction == "" {
				instruction = "Você é um assistente em PT-BR."
			}

			db, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			ctx := context.Background()

			hash := server.HashPassword(password)
			if err := db.SetSetting(ctx, domain.SettingAdminPasswordHash, hash); err != nil {
				return fmt.Errorf("seed admin password: %w", err)
			}
			logger.Info("admin password hash seeded")

			existing, err := db.GetSetting(ctx, domain.SettingSystemInstruction)
			if err != nil {
				return fmt.Errorf("read system instruction: %w", err)
			}
			if existing == "" {
				if err := db.SetSetting(ctx, domain.SettingSystemInstruction, instruction); err != nil {
					return fmt.Errorf("seed system instruction: %w", err)
				}
				logger.Info("default system instruction seeded")
			} else {
				logger.Info("system instruction already present, left untouched")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "admin password to hash (default: $SEED_ADMIN_PASSWORD or admin123)")
	cmd.Flags().StringVar(&instruction, "instruction", "", "default global system instruction (default: $SEED_SYSTEM_INSTRUCTION)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
				config.ResolveSecrets(cfg)
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			ctx := context.Background()
			prov := provider.NewGemini(provider.GeminiConfig{
				APIKey:  cfg.Provider.APIKey,
				APIBase: cfg.Provider.APIBase,
				Model:   cfg.Provider.Model,
				Logger:  logger,
			})
			if err := prov.Healthy(ctx); err != nil {
				logger.Info("provider", "name", prov.Name(), "healthy", false, "err", err)
			} else {
				logger.Info("provider", "name", prov.Name(), "healthy", true)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. provider.model)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. provider.model gemini-1.5-pro)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
