package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/driftfix/driftfix-agent/internal/config"
	"github.com/driftfix/driftfix-agent/internal/normalize"
	"github.com/driftfix/driftfix-agent/internal/offset"
	"github.com/driftfix/driftfix-agent/internal/playback"
	"github.com/driftfix/driftfix-agent/internal/session"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Post("/media", selectMediaHandler(cfg))
		r.Get("/media", getMediaHandler(cfg))
		r.Get("/media/preview-file", mediaFileHandler(cfg, playback.RolePreview))
		r.Get("/media/original-file", mediaFileHandler(cfg, playback.RoleOriginal))

		r.Post("/analyze", analyzeHandler(cfg))

		r.Get("/offset", getOffsetHandler(cfg))
		r.Put("/offset", setOffsetHandler(cfg))

		r.Post("/preview", previewHandler(cfg))
		r.Post("/preview/stop", previewStopHandler(cfg))
		r.Get("/preview/state", previewStateHandler(cfg))

		r.Post("/export", exportHandler(cfg))
		r.Get("/export/file", exportFileHandler(cfg))

		r.Get("/operations", listOperationsHandler(cfg))

		if cfg.Relay != nil {
			r.Mount("/relay", http.StripPrefix("/relay", cfg.Relay))
		}
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		resp := StatusResponse{
			Offset:      offsetResponse(cfg),
			Preview:     cfg.Preview.Snapshot(),
			EngineState: string(cfg.Engine.State()),
			Busy: BusyResponse{
				Normalize: cfg.SessionService.Busy(session.OpTypeNormalize),
				Analyze:   cfg.SessionService.Busy(session.OpTypeAnalyze),
				Export:    cfg.SessionService.Busy(session.OpTypeExport),
			},
		}

		if asset, err := cfg.SessionService.CurrentAsset(ctx); err == nil && asset != nil {
			ar := AssetToResponse(asset)
			resp.Asset = &ar
		}

		ops, _ := cfg.SessionService.Operations(ctx, 10)
		resp.Operations = make([]OperationResponse, len(ops))
		for i, op := range ops {
			resp.Operations[i] = OperationToResponse(op)
			if resp.LastError == "" && op.Status == session.OpStatusFailed {
				resp.LastError = op.Error
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func selectMediaHandler(cfg ServerConfig) http.HandlerFunc {
	maxBytes := cfg.MaxUploadBytes
	if maxBytes == 0 {
		maxBytes = config.MaxUploadBytes
	}

	return func(w http.ResponseWriter, r *http.Request) {
		// The form-parse overhead stays small; the cap protects against
		// bodies far beyond the accepted file size.
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

		file, header, err := r.FormFile("video")
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				WriteError(w, http.StatusBadRequest, "file exceeds the maximum upload size", "VALIDATION_ERROR")
				return
			}
			WriteError(w, http.StatusBadRequest, "missing video file field", "BAD_REQUEST")
			return
		}
		defer file.Close()

		// Rejection happens before any engine or network work.
		if err := normalize.Validate(header.Filename, header.Size); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}

		op, err := cfg.SessionService.BeginOperation(r.Context(), session.OpTypeNormalize, "")
		if err != nil {
			if errors.Is(err, session.ErrBusy) {
				WriteError(w, http.StatusConflict, "a file selection is already in progress", "BUSY")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		uploadPath := filepath.Join(cfg.UploadDir, session.NewID()[:8]+"_"+filepath.Base(header.Filename))
		dst, err := os.Create(uploadPath)
		if err != nil {
			cfg.SessionService.FinishOperation(r.Context(), op.ID, "", err)
			WriteError(w, http.StatusInternalServerError, "cannot store upload", "INTERNAL_ERROR")
			return
		}
		if _, err := io.Copy(dst, file); err != nil {
			dst.Close()
			os.Remove(uploadPath)
			cfg.SessionService.FinishOperation(r.Context(), op.ID, "", err)
			WriteError(w, http.StatusInternalServerError, "cannot store upload", "INTERNAL_ERROR")
			return
		}
		dst.Close()

		asset, err := cfg.Normalizer.Normalize(r.Context(), uploadPath, header.Filename, header.Size)
		if err != nil {
			os.Remove(uploadPath)
			cfg.SessionService.FinishOperation(r.Context(), op.ID, "", err)

			var ne *normalize.NormalizationError
			if errors.As(err, &ne) {
				WriteError(w, http.StatusUnprocessableEntity, ne.Error(), "NORMALIZATION_ERROR")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		// A new selection supersedes whatever the old asset was doing.
		cfg.Preview.Stop()
		cfg.OffsetStore.Reset()

		registered, err := cfg.SessionService.Register(r.Context(), asset)
		if err != nil {
			cfg.SessionService.FinishOperation(r.Context(), op.ID, "", err)
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		cfg.SessionService.FinishOperation(r.Context(), op.ID, registered.PreviewPath, nil)
		WriteJSON(w, http.StatusCreated, AssetToResponse(registered))
	}
}

func getMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := cfg.SessionService.CurrentAsset(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if asset == nil {
			WriteError(w, http.StatusNotFound, "no media selected", "NO_ASSET")
			return
		}
		WriteJSON(w, http.StatusOK, AssetToResponse(asset))
	}
}

func mediaFileHandler(cfg ServerConfig, role playback.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := cfg.SessionService.CurrentAsset(r.Context())
		if err != nil || asset == nil {
			WriteError(w, http.StatusNotFound, "no media selected", "NO_ASSET")
			return
		}

		path := asset.PreviewPath
		if role == playback.RoleOriginal {
			path = asset.OriginalPath
		}

		if err := cfg.Playback.ServeFile(w, r, path, role); err != nil {
			cfg.Logger.Error("playback error", "error", err, "path", path)
		}
	}
}

func analyzeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := cfg.SessionService.CurrentAsset(r.Context())
		if err != nil || asset == nil {
			WriteError(w, http.StatusBadRequest, "no media selected", "NO_ASSET")
			return
		}

		op, err := cfg.SessionService.BeginOperation(r.Context(), session.OpTypeAnalyze, asset.ID)
		if err != nil {
			if errors.Is(err, session.ErrBusy) {
				WriteError(w, http.StatusConflict, "analysis already in progress", "BUSY")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		result, err := cfg.Analyzer.Analyze(r.Context(), asset)
		cfg.SessionService.FinishOperation(r.Context(), op.ID, "", err)
		if err != nil {
			// Deliberately generic: network and server failures read the
			// same at the UI level. The detail stays in the logs.
			cfg.Logger.Warn("analysis failed", "asset_id", asset.ID, "error", err)
			WriteError(w, http.StatusBadGateway, "could not analyze file", "ANALYSIS_ERROR")
			return
		}

		if result.OffsetMs != nil {
			if err := cfg.SessionService.SaveOffset(r.Context(), asset.ID, cfg.OffsetStore.Get(), string(cfg.OffsetStore.GetSource())); err != nil {
				cfg.Logger.Warn("failed to persist detected offset", "error", err)
			}
		}

		WriteJSON(w, http.StatusOK, AnalyzeResponse{
			OffsetFrames: result.OffsetFrames,
			Confidence:   result.Confidence,
			OffsetMs:     result.OffsetMs,
		})
	}
}

func offsetResponse(cfg ServerConfig) OffsetResponse {
	return OffsetResponse{
		OffsetMs: cfg.OffsetStore.Get(),
		Source:   string(cfg.OffsetStore.GetSource()),
		MinMs:    config.OffsetMinMs,
		MaxMs:    config.OffsetMaxMs,
		StepMs:   config.OffsetStepMs,
	}
}

func getOffsetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, offsetResponse(cfg))
	}
}

func setOffsetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetOffsetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		cfg.OffsetStore.SetFromUser(req.OffsetMs)

		if asset, err := cfg.SessionService.CurrentAsset(r.Context()); err == nil && asset != nil {
			if err := cfg.SessionService.SaveOffset(r.Context(), asset.ID, cfg.OffsetStore.Get(), string(offset.SourceUser)); err != nil {
				cfg.Logger.Warn("failed to persist offset", "error", err)
			}
		}

		WriteJSON(w, http.StatusOK, offsetResponse(cfg))
	}
}

func previewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := cfg.SessionService.CurrentAsset(r.Context())
		if err != nil || asset == nil {
			WriteError(w, http.StatusBadRequest, "no media selected", "NO_ASSET")
			return
		}

		cfg.Preview.Preview()
		WriteJSON(w, http.StatusOK, cfg.Preview.Snapshot())
	}
}

func previewStopHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Preview.Stop()
		WriteJSON(w, http.StatusOK, cfg.Preview.Snapshot())
	}
}

func previewStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := cfg.Preview.Snapshot()
		WriteJSON(w, http.StatusOK, PreviewStateResponse{
			State:          string(snap.State),
			PendingStream:  snap.PendingStream,
			PendingDelayMs: snap.PendingDelayMs,
			Video:          cfg.VideoPort.State(),
			Audio:          cfg.AudioPort.State(),
		})
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := cfg.SessionService.CurrentAsset(r.Context())
		if err != nil || asset == nil {
			WriteError(w, http.StatusBadRequest, "no media selected", "NO_ASSET")
			return
		}

		op, err := cfg.SessionService.BeginOperation(r.Context(), session.OpTypeExport, asset.ID)
		if err != nil {
			if errors.Is(err, session.ErrBusy) {
				WriteError(w, http.StatusConflict, "export already in progress", "BUSY")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		outputPath, err := cfg.Exporter.Export(r.Context(), asset, cfg.OffsetStore.Get())
		cfg.SessionService.FinishOperation(r.Context(), op.ID, outputPath, err)
		if err != nil {
			WriteError(w, http.StatusBadGateway, err.Error(), "EXPORT_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, ExportResponse{
			OperationID: op.ID,
			OutputPath:  outputPath,
		})
	}
}

func exportFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ops, err := cfg.SessionService.Operations(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		for _, op := range ops {
			if op.Type == session.OpTypeExport && op.Status == session.OpStatusCompleted && op.OutputPath != "" {
				if err := cfg.Playback.ServeFile(w, r, op.OutputPath, playback.RoleExport); err != nil {
					cfg.Logger.Error("playback error", "error", err, "path", op.OutputPath)
				}
				return
			}
		}

		WriteError(w, http.StatusNotFound, "no completed export", "NOT_FOUND")
	}
}

func listOperationsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ops, err := cfg.SessionService.Operations(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list operations", "INTERNAL_ERROR")
			return
		}

		resp := OperationsResponse{Operations: make([]OperationResponse, len(ops))}
		for i, op := range ops {
			resp.Operations[i] = OperationToResponse(op)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
