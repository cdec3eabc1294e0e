// Package export produces the final output file with the offset baked
// in. Two decode instances of the original file are opened; one gets an
// input-level time offset, and the output maps the shifted instance's
// video with the unshifted instance's audio.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/driftfix/driftfix-agent/internal/engine"
	"github.com/driftfix/driftfix-agent/internal/session"
)

// ExportError reports a failed remux. Detail carries the engine
// diagnostic for logs.
type ExportError struct {
	Detail string
}

func (e *ExportError) Error() string {
	return "export failed: " + e.Detail
}

// Exporter runs the final remux through the transcoding engine.
type Exporter struct {
	engine    engine.Engine
	outputDir string
	timeout   time.Duration
	logger    *slog.Logger
}

func NewExporter(eng engine.Engine, outputDir string, timeout time.Duration, logger *slog.Logger) *Exporter {
	return &Exporter{
		engine:    eng,
		outputDir: outputDir,
		timeout:   timeout,
		logger:    logger,
	}
}

// Export writes a durably aligned copy of the asset's original file and
// returns its path. A zero offset still runs the full engine path; the
// passthrough is not short-circuited.
func (e *Exporter) Export(ctx context.Context, asset *session.MediaAsset, offsetMs float64) (string, error) {
	outputPath := filepath.Join(e.outputDir, outputName(asset.DisplayName))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.engine.Await(ctx); err != nil {
		return "", &ExportError{Detail: err.Error()}
	}

	if e.logger != nil {
		e.logger.Info("export started",
			"asset_id", asset.ID,
			"offset_ms", offsetMs,
			"output", outputPath,
		)
	}

	result := e.engine.Run(ctx, BuildRemuxArgs(asset.OriginalPath, outputPath, offsetMs))
	if !result.IsSuccess() {
		if e.logger != nil {
			e.logger.Warn("export failed",
				"asset_id", asset.ID,
				"exit_code", result.ExitCode,
				"stderr_tail", result.StderrTail,
			)
		}
		return "", &ExportError{Detail: result.StderrTail}
	}

	if e.logger != nil {
		e.logger.Info("export complete",
			"asset_id", asset.ID,
			"duration_ms", result.Duration.Milliseconds(),
		)
	}
	return outputPath, nil
}

// BuildRemuxArgs constructs the ffmpeg invocation. The first input is
// the time-shifted decode instance supplying video; the second is the
// unshifted instance supplying audio. A positive offset (audio lags)
// shifts the video instance by -delay; a non-positive offset flips the
// sign so the correction direction matches.
func BuildRemuxArgs(originalPath, outputPath string, offsetMs float64) []string {
	delaySeconds := math.Abs(offsetMs) / 1000

	inputOffset := -delaySeconds
	if offsetMs <= 0 {
		inputOffset = delaySeconds
	}

	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-itsoffset", strconv.FormatFloat(inputOffset, 'f', 3, 64),
		"-i", originalPath,
		"-i", originalPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		outputPath,
	}
}

func outputName(displayName string) string {
	base := strings.TrimSuffix(displayName, filepath.Ext(displayName))
	if base == "" {
		base = "output"
	}
	return fmt.Sprintf("%s_synced.mp4", base)
}
