package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/driftfix/driftfix-agent/internal/analysis"
	"github.com/driftfix/driftfix-agent/internal/api"
	"github.com/driftfix/driftfix-agent/internal/config"
	"github.com/driftfix/driftfix-agent/internal/db"
	"github.com/driftfix/driftfix-agent/internal/engine"
	"github.com/driftfix/driftfix-agent/internal/export"
	"github.com/driftfix/driftfix-agent/internal/logging"
	"github.com/driftfix/driftfix-agent/internal/normalize"
	"github.com/driftfix/driftfix-agent/internal/offset"
	"github.com/driftfix/driftfix-agent/internal/playback"
	"github.com/driftfix/driftfix-agent/internal/preview"
	"github.com/driftfix/driftfix-agent/internal/relay"
	"github.com/driftfix/driftfix-agent/internal/session"
	"github.com/driftfix/driftfix-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	uploadDir := filepath.Join(cfg.DataDir(), "uploads")
	for _, dir := range []string{cfg.DataDir(), cfg.PreviewDir(), cfg.OutputDir(), uploadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting driftfix agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := session.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                   DRIFTFIX AGENT v%-7s                 ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Upstream:   %-45s ║\n", cfg.UpstreamURL())
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	sessionSvc := session.NewService(repo, logger)
	store := offset.NewStore()

	eng := engine.NewFFmpegEngine(cfg.FFmpegPath(), logger)

	videoPort := preview.NewStatePort("video")
	audioPort := preview.NewStatePort("audio")
	controller := preview.NewController(videoPort, audioPort, store, logger)

	normalizer := normalize.NewNormalizer(eng, cfg.PreviewDir(), cfg.ConvertTimeout(), logger)
	analyzer := analysis.NewClient(cfg.UpstreamURL(), store, controller, cfg.SettleDelay(), logger)
	exporter := export.NewExporter(eng, cfg.OutputDir(), cfg.ExportTimeout(), logger)
	playbackSvc := playback.NewServer(logger)
	upstreamRelay := relay.New(cfg.UpstreamURL(), logger)

	// Warm up the engine in the background; the first operation that
	// needs ffmpeg awaits the result.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ProbeTimeout())
		defer cancel()
		if err := eng.Await(ctx); err != nil {
			logger.Warn("ffmpeg unavailable, conversion and export disabled", "error", err)
		} else {
			logger.Info("ffmpeg engine ready")
		}
	}()

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		UploadDir:      uploadDir,
		SessionService: sessionSvc,
		Repository:     repo,
		OffsetStore:    store,
		Preview:        controller,
		VideoPort:      videoPort,
		AudioPort:      audioPort,
		Normalizer:     normalizer,
		Analyzer:       analyzer,
		Exporter:       exporter,
		Playback:       playbackSvc,
		Relay:          upstreamRelay,
		Engine:         eng,
		Logger:         logger,
		StartTime:      startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Logger: logger,
			OnStopPreview: func() {
				controller.Stop()
			},
			OnQuit: func() {
				close(quitCh)
			},
		})

		store.Subscribe(func(ms float64, source offset.Source) {
			tray.UpdateOffset(ms, string(source))
		})

		normalizer.Progress = tray.UpdateStatus

		sessionSvc.AssetChanged = func(asset *session.MediaAsset) {
			tray.UpdateAsset(asset.DisplayName)
		}

		sessionSvc.OperationChanged = func(opType, status string) {
			switch {
			case status != session.OpStatusRunning:
				tray.UpdateStatus("Idle")
			case opType == session.OpTypeAnalyze:
				tray.UpdateStatus("Analyzing")
			case opType == session.OpTypeExport:
				tray.UpdateStatus("Exporting")
			}
		}

		controller.SetStateFunc(func(state preview.State) {
			if state == preview.StatePlaying {
				tray.UpdateStatus("Previewing")
			} else {
				tray.UpdateStatus("Idle")
			}
		})

		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	controller.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(repo session.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 24)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}
	return token, nil
}
