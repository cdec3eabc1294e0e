package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/driftfix/driftfix-agent/internal/analysis"
	"github.com/driftfix/driftfix-agent/internal/engine"
	"github.com/driftfix/driftfix-agent/internal/export"
	"github.com/driftfix/driftfix-agent/internal/normalize"
	"github.com/driftfix/driftfix-agent/internal/offset"
	"github.com/driftfix/driftfix-agent/internal/playback"
	"github.com/driftfix/driftfix-agent/internal/preview"
	"github.com/driftfix/driftfix-agent/internal/session"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	UploadDir      string
	MaxUploadBytes int64 // 0 means config.MaxUploadBytes
	SessionService *session.Service
	Repository     session.Repository
	OffsetStore    *offset.Store
	Preview        *preview.Controller
	VideoPort      *preview.StatePort
	AudioPort      *preview.StatePort
	Normalizer     *normalize.Normalizer
	Analyzer       *analysis.Client
	Exporter       *export.Exporter
	Playback       playback.PlaybackService
	Relay          http.Handler
	Engine         engine.Engine
	Logger         *slog.Logger
	StartTime      time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  0, // uploads may take minutes
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
