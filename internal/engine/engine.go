// Package engine wraps the ffmpeg/ffprobe binaries behind a lazily
// initialised execution engine. The engine resolves its binaries the
// first time any operation awaits it, so startup never blocks on a
// missing ffmpeg install.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// State is the engine lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// Engine is the transcoding engine contract. All media operations go
// through Run; Await gates them on binary resolution.
type Engine interface {
	// Await blocks until the engine is ready or has failed to initialise.
	Await(ctx context.Context) error

	// Run executes ffmpeg with the given arguments.
	Run(ctx context.Context, args []string) RunResult

	// Probe inspects a media file with ffprobe.
	Probe(ctx context.Context, path string) (*ProbeInfo, error)

	// State returns the current lifecycle state.
	State() State
}

// RunResult captures the outcome of one ffmpeg invocation.
type RunResult struct {
	ExitCode   int
	StderrTail string
	Duration   time.Duration
}

func (r RunResult) IsSuccess() bool {
	return r.ExitCode == 0
}

// ProbeInfo is a reduced ffprobe summary.
type ProbeInfo struct {
	DurationSeconds float64
	VideoCodec      string
	AudioCodec      string
	Width           int
	Height          int
}

// FFmpegEngine is the production Engine backed by the ffmpeg and
// ffprobe binaries.
type FFmpegEngine struct {
	preferred string // explicit ffmpeg path, "" = PATH lookup
	logger    *slog.Logger

	mu      sync.Mutex
	state   State
	loaded  chan struct{} // closed when loading finishes
	ffmpeg  string
	ffprobe string
	initErr error
}

func NewFFmpegEngine(preferred string, logger *slog.Logger) *FFmpegEngine {
	return &FFmpegEngine{
		preferred: preferred,
		logger:    logger,
		state:     StateUninitialized,
	}
}

func (e *FFmpegEngine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Await resolves the binaries on first use. Concurrent awaiters during
// loading wait for the same resolution; a failed engine stays failed.
func (e *FFmpegEngine) Await(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateReady:
		e.mu.Unlock()
		return nil
	case StateFailed:
		err := e.initErr
		e.mu.Unlock()
		return err
	case StateLoading:
		ch := e.loaded
		e.mu.Unlock()
		select {
		case <-ch:
			return e.Await(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Uninitialized: this goroutine performs the load.
	e.state = StateLoading
	e.loaded = make(chan struct{})
	e.mu.Unlock()

	ffmpeg, ffprobe, err := resolveBinaries(e.preferred)

	e.mu.Lock()
	if err != nil {
		e.state = StateFailed
		e.initErr = err
		if e.logger != nil {
			e.logger.Error("transcoding engine unavailable", "error", err)
		}
	} else {
		e.state = StateReady
		e.ffmpeg = ffmpeg
		e.ffprobe = ffprobe
		if e.logger != nil {
			e.logger.Info("transcoding engine ready", "ffmpeg", ffmpeg, "ffprobe", ffprobe)
		}
	}
	close(e.loaded)
	e.mu.Unlock()
	return err
}

// Run executes ffmpeg. Callers are expected to have called Await first;
// Run re-awaits defensively so a stray call cannot race initialisation.
func (e *FFmpegEngine) Run(ctx context.Context, args []string) RunResult {
	start := time.Now()

	if err := e.Await(ctx); err != nil {
		return RunResult{ExitCode: -1, StderrTail: err.Error(), Duration: time.Since(start)}
	}

	cmd := exec.CommandContext(ctx, e.ffmpeg, args...)

	// Capture stderr with bounded buffer
	var stderrBuf bytes.Buffer
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})
	cmd.Stdout = io.Discard

	if e.logger != nil {
		e.logger.Info("executing engine command", "args", args)
	}

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			if stderrBuf.Len() == 0 {
				stderrBuf.WriteString(err.Error())
			}
		}
	}

	stderrTail := stderrBuf.String()

	if e.logger != nil {
		if exitCode != 0 {
			e.logger.Warn("engine command failed",
				"exit_code", exitCode,
				"duration_ms", elapsed.Milliseconds(),
				"stderr_tail", truncate(stderrTail, 512),
			)
		} else {
			e.logger.Info("engine command succeeded", "duration_ms", elapsed.Milliseconds())
		}
	}

	return RunResult{
		ExitCode:   exitCode,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

// Probe runs ffprobe and parses the stream summary.
func (e *FFmpegEngine) Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	if err := e.Await(ctx); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var raw struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	info := &ProbeInfo{}
	info.DurationSeconds, _ = strconv.ParseFloat(raw.Format.Duration, 64)
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}
	return info, nil
}

// resolveBinaries finds usable ffmpeg and ffprobe binaries.
func resolveBinaries(preferred string) (string, string, error) {
	var ffmpeg string
	if preferred != "" {
		p, err := exec.LookPath(preferred)
		if err != nil {
			return "", "", fmt.Errorf("configured ffmpeg %q not found", preferred)
		}
		ffmpeg = p
	} else {
		p, err := exec.LookPath("ffmpeg")
		if err != nil {
			return "", "", fmt.Errorf("no ffmpeg binary found on PATH")
		}
		ffmpeg = p
	}

	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return "", "", fmt.Errorf("no ffprobe binary found on PATH")
	}

	return ffmpeg, ffprobe, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
