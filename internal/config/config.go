// Package config provides configuration management for the Driftfix Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort        = 8591
	DefaultLogLevel    = "info"
	DefaultDataDir     = ".driftfix"
	DefaultUpstreamURL = "http://127.0.0.1:9000"

	// Environment variable names
	EnvPort        = "DRIFTFIX_PORT"
	EnvLogLevel    = "DRIFTFIX_LOG_LEVEL"
	EnvDataDir     = "DRIFTFIX_DATA_DIR"
	EnvUpstreamURL = "DRIFTFIX_UPSTREAM_URL"
	EnvFFmpegPath  = "DRIFTFIX_FFMPEG"
	EnvHeadless    = "DRIFTFIX_HEADLESS"

	// Database filename
	DBFilename = "driftfix.db"

	// Offset control bounds (milliseconds)
	OffsetMinMs  = -2000
	OffsetMaxMs  = 2000
	OffsetStepMs = 10

	// Upload limits
	MaxUploadBytes = 1 << 30 // 1 GiB

	// SettleDelay is how long the analysis client waits after storing a
	// detected offset before auto-starting the preview, so the control
	// surface can reflect the new value first.
	DefaultSettleDelay = 250 * time.Millisecond

	// Engine operation timeouts (seconds)
	DefaultTimeoutConvert = 600
	DefaultTimeoutExport  = 900
	DefaultTimeoutAnalyze = 300
	DefaultTimeoutProbe   = 30
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	PreviewDir() string
	OutputDir() string
	UpstreamURL() string
	FFmpegPath() string
	Headless() bool
	SettleDelay() time.Duration
	ConvertTimeout() time.Duration
	ExportTimeout() time.Duration
	AnalyzeTimeout() time.Duration
	ProbeTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port        int
	logLevel    string
	dataDir     string
	upstreamURL string
	ffmpegPath  string
	headless    bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:        DefaultPort,
		logLevel:    DefaultLogLevel,
		dataDir:     defaultDataDir(),
		upstreamURL: DefaultUpstreamURL,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if u := os.Getenv(EnvUpstreamURL); u != "" {
		cfg.upstreamURL = u
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// PreviewDir returns the directory holding preview-only converted copies
func (c *EnvConfig) PreviewDir() string {
	return filepath.Join(c.dataDir, "preview")
}

// OutputDir returns the directory holding exported files
func (c *EnvConfig) OutputDir() string {
	return filepath.Join(c.dataDir, "output")
}

// UpstreamURL returns the base URL of the offset detection service
func (c *EnvConfig) UpstreamURL() string {
	return c.upstreamURL
}

// FFmpegPath returns an explicit ffmpeg binary path, or "" for PATH lookup
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

// Headless reports whether the system tray should be skipped
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) SettleDelay() time.Duration {
	return DefaultSettleDelay
}

func (c *EnvConfig) ConvertTimeout() time.Duration {
	return time.Duration(DefaultTimeoutConvert) * time.Second
}

func (c *EnvConfig) ExportTimeout() time.Duration {
	return time.Duration(DefaultTimeoutExport) * time.Second
}

func (c *EnvConfig) AnalyzeTimeout() time.Duration {
	return time.Duration(DefaultTimeoutAnalyze) * time.Second
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return time.Duration(DefaultTimeoutProbe) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
