// Package server exposes the chat backend over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"melobot/internal/agent"
	"melobot/internal/config"
	"melobot/internal/domain"
	"melobot/internal/fastpath"
	"melobot/internal/metrics"
	"melobot/internal/persona"
	"melobot/internal/tool"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const shutdownTimeout = 5 * time.Second

// Server wires the HTTP API to the orchestrator, detector and stores.
type Server struct {
	cfg         config.ServerConfig
	botName     string
	version     string
	logger      *slog.Logger
	orch        *agent.Orchestrator
	detector    *fastpath.Detector
	resolver    *agent.InstructionResolver
	clock       *tool.ClockTool
	transcripts domain.TranscriptStore
	settings    domain.SettingStore
	users       domain.UserStore
	ranking     domain.RankingStore
	accessLog   domain.AccessLogStore
	personas    []persona.Persona
	metricsCfg  config.MetricsConfig
	httpSrv     *http.Server
}

type Config struct {
	Server       config.ServerConfig
	Metrics      config.MetricsConfig
	BotName      string
	Version      string
	Logger       *slog.Logger
	Orchestrator *agent.Orchestrator
	Detector     *fastpath.Detector
	Resolver     *agent.InstructionResolver
	Clock        *tool.ClockTool
	Transcripts  domain.TranscriptStore
	Settings     domain.SettingStore
	Users        domain.UserStore
	Ranking      domain.RankingStore
	AccessLog    domain.AccessLogStore
	Personas     []persona.Persona
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.BotName == "" {
		cfg.BotName = "Chatbot Musical"
	}
	return &Server{
		cfg:         cfg.Server,
		botName:     cfg.BotName,
		version:     cfg.Version,
		logger:      cfg.Logger,
		orch:        cfg.Orchestrator,
		detector:    cfg.Detector,
		resolver:    cfg.Resolver,
		clock:       cfg.Clock,
		transcripts: cfg.Transcripts,
		settings:    cfg.Settings,
		users:       cfg.Users,
		ranking:     cfg.Ranking,
		accessLog:   cfg.AccessLog,
		personas:    cfg.Personas,
		metricsCfg:  cfg.Metrics,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Post("/chat", s.handleChat)
	r.Get("/check-time", s.handleCheckTime)
	r.Get("/status", s.handleStatus)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat/salvar-historico", s.handleSaveTranscript)
		r.Get("/chat/historicos", s.handleListTranscripts)
		r.Delete("/chat/historicos/{id}", s.requireAdmin(s.handleDeleteTranscript))
		r.Put("/chat/historicos/{id}/titulo", s.requireAdmin(s.handleRenameTranscript))
		r.Post("/chat/historicos/{id}/gerar-titulo", s.handleGenerateTitle)

		r.Post("/log-connection", s.handleLogConnection)
		r.Post("/ranking/registrar-acesso-bot", s.handleRecordAccess)
		r.Get("/ranking/visualizar", s.handleViewRanking)

		r.Get("/personas", s.handleListPersonas)

		r.Get("/user/preferences", s.requireUser(s.handleGetPreferences))
		r.Put("/user/preferences", s.requireUser(s.handleSetPreferences))
	})

	if s.metricsCfg.Enabled {
		endpoint := s.metricsCfg.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.Get(endpoint, metrics.Collector.Handler())
	}

	if s.cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	s.logger.Info("http server started", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
	}()

	if err := s.httpSrv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.AllowedOrigins
}
