// Package normalize validates selected files and converts containers
// the preview surface cannot decode into a preview-only MP4 copy. The
// original file is never modified: analysis and export always read the
// original bytes, since re-encoding first could alter the true offset.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/driftfix/driftfix-agent/internal/config"
	"github.com/driftfix/driftfix-agent/internal/engine"
	"github.com/driftfix/driftfix-agent/internal/session"
)

// Extensions the preview surface decodes natively.
var previewableExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
}

// Extensions accepted but requiring a preview-only conversion.
var convertibleExtensions = map[string]bool{
	".avi": true,
	".mkv": true,
}

// ValidationError reports a file rejected before any processing began.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// NormalizationError reports a failed preview conversion. Detail carries
// the engine diagnostic for logs; the user sees Error().
type NormalizationError struct {
	Detail string
}

func (e *NormalizationError) Error() string {
	return "conversion failed: " + e.Detail
}

// Validate rejects unsupported extensions and oversize files. It runs
// before any engine or network work.
func Validate(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !previewableExtensions[ext] && !convertibleExtensions[ext] {
		return &ValidationError{Reason: fmt.Sprintf("unsupported file type %q", ext)}
	}
	if size > config.MaxUploadBytes {
		return &ValidationError{Reason: fmt.Sprintf("file exceeds %d byte limit", int64(config.MaxUploadBytes))}
	}
	return nil
}

// NeedsConversion reports whether the file's container requires a
// preview-only transcode. The check is extension-based and
// case-insensitive.
func NeedsConversion(filename string) bool {
	return convertibleExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Normalizer turns a validated file into a MediaAsset with a playable
// preview copy.
type Normalizer struct {
	engine     engine.Engine
	previewDir string
	timeout    time.Duration
	logger     *slog.Logger

	// Progress receives advisory human-readable notes for the UI. Not
	// part of the functional contract.
	Progress func(note string)
}

func NewNormalizer(eng engine.Engine, previewDir string, timeout time.Duration, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		engine:     eng,
		previewDir: previewDir,
		timeout:    timeout,
		logger:     logger,
	}
}

// Normalize wraps the file as a MediaAsset, converting AVI/MKV input to
// a preview MP4 first. On conversion failure no asset is produced and
// the selection must be aborted.
func (n *Normalizer) Normalize(ctx context.Context, originalPath, displayName string, size int64) (*session.MediaAsset, error) {
	ext := strings.ToLower(filepath.Ext(displayName))

	asset := &session.MediaAsset{
		ID:           session.NewID(),
		DisplayName:  displayName,
		OriginalPath: originalPath,
		PreviewPath:  originalPath,
		Size:         size,
		Container:    strings.TrimPrefix(ext, "."),
	}

	if !NeedsConversion(displayName) {
		n.probe(ctx, asset)
		return asset, nil
	}

	n.note("Converting…")

	previewPath := filepath.Join(n.previewDir, asset.ID+".mp4")

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.engine.Await(ctx); err != nil {
		return nil, &NormalizationError{Detail: err.Error()}
	}

	result := n.engine.Run(ctx, ConvertArgs(originalPath, previewPath))
	if !result.IsSuccess() {
		if n.logger != nil {
			n.logger.Warn("preview conversion failed",
				"input", displayName,
				"exit_code", result.ExitCode,
				"stderr_tail", result.StderrTail,
			)
		}
		return nil, &NormalizationError{Detail: result.StderrTail}
	}

	n.note("Converted successfully")

	asset.PreviewPath = previewPath
	n.probe(ctx, asset)
	return asset, nil
}

// probe fills in duration and codec metadata from the original file.
// Advisory only: a probe failure never blocks the selection.
func (n *Normalizer) probe(ctx context.Context, asset *session.MediaAsset) {
	info, err := n.engine.Probe(ctx, asset.OriginalPath)
	if err != nil {
		if n.logger != nil {
			n.logger.Warn("probe failed", "input", asset.DisplayName, "error", err)
		}
		return
	}
	asset.DurationSeconds = info.DurationSeconds
	asset.VideoCodec = info.VideoCodec
	asset.AudioCodec = info.AudioCodec
}

func (n *Normalizer) note(s string) {
	if n.Progress != nil {
		n.Progress(s)
	}
}

// ConvertArgs builds the ffmpeg arguments for the preview conversion: a
// fast, lossy-acceptable H.264/AAC re-encode into MP4.
func ConvertArgs(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		outputPath,
	}
}
