// Package analysis talks to the remote offset-detection collaborator.
// The detection algorithm itself is an opaque black box; this client
// uploads the original file bytes and consumes the numeric result.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/driftfix/driftfix-agent/internal/offset"
	"github.com/driftfix/driftfix-agent/internal/session"
)

const fingerprintHeadBytes = 64 * 1024

// AnalysisResult is the detection collaborator's response. OffsetMs is
// a pointer so an absent field is distinguishable from zero.
type AnalysisResult struct {
	OffsetFrames float64  `json:"offset_frames"`
	Confidence   float64  `json:"confidence"`
	OffsetMs     *float64 `json:"offset_ms"`
}

// AnalysisError reports a failed detection round trip. The UI surfaces
// a generic upload-failure message; the fields here are kept for
// diagnostics only.
type AnalysisError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis upload failed: %v", e.Err)
	}
	return fmt.Sprintf("analysis upload failed: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Previewer is the auto-preview hook invoked after a detected offset
// settles into the store.
type Previewer interface {
	Preview()
}

// Client uploads media for offset detection and feeds the result into
// the offset store.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      *offset.Store
	previewer  Previewer
	settle     time.Duration
	cache      *gocache.Cache
	logger     *slog.Logger
}

func NewClient(baseURL string, store *offset.Store, previewer Previewer, settle time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		store:     store,
		previewer: previewer,
		settle:    settle,
		cache:     gocache.New(30*time.Minute, 10*time.Minute),
		logger:    logger,
	}
}

// Analyze uploads the asset's ORIGINAL bytes (never the preview copy)
// and applies the detected offset. Identical bytes analyzed before are
// served from the result cache without a round trip; a cache hit still
// follows the settle-then-preview path. Strictly single-attempt: any
// failure surfaces as AnalysisError with no state mutation.
func (c *Client) Analyze(ctx context.Context, asset *session.MediaAsset) (*AnalysisResult, error) {
	fp, err := fingerprint(asset.OriginalPath)
	if err != nil {
		return nil, &AnalysisError{Err: fmt.Errorf("cannot fingerprint file: %w", err)}
	}

	if cached, ok := c.cache.Get(fp); ok {
		result := cached.(*AnalysisResult)
		if c.logger != nil {
			c.logger.Info("analysis result served from cache", "asset_id", asset.ID, "fingerprint", fp[:12])
		}
		c.apply(ctx, result)
		return result, nil
	}

	result, err := c.upload(ctx, asset)
	if err != nil {
		return nil, err
	}

	c.cache.Set(fp, result, gocache.DefaultExpiration)
	c.apply(ctx, result)
	return result, nil
}

func (c *Client) upload(ctx context.Context, asset *session.MediaAsset) (*AnalysisResult, error) {
	file, err := os.Open(asset.OriginalPath)
	if err != nil {
		return nil, &AnalysisError{Err: fmt.Errorf("cannot open file: %w", err)}
	}
	defer file.Close()

	// Stream the multipart body so a 1 GiB upload never sits in memory.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("video", asset.DisplayName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	url := c.baseURL + "/api/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return nil, &AnalysisError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if c.logger != nil {
		c.logger.Info("uploading file for analysis",
			"url", url,
			"asset_id", asset.ID,
			"size", asset.Size,
		)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &AnalysisError{Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AnalysisError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result AnalysisResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &AnalysisError{Err: fmt.Errorf("malformed response body: %w", err)}
	}

	if c.logger != nil {
		offsetMs := 0.0
		if result.OffsetMs != nil {
			offsetMs = *result.OffsetMs
		}
		c.logger.Info("analysis complete",
			"asset_id", asset.ID,
			"offset_frames", result.OffsetFrames,
			"offset_ms", offsetMs,
			"confidence", result.Confidence,
		)
	}
	return &result, nil
}

// apply stores a detected offset and, after the settling delay, starts
// the preview so the corrected alignment is shown automatically.
func (c *Client) apply(ctx context.Context, result *AnalysisResult) {
	if result.OffsetMs == nil {
		return
	}

	c.store.SetFromDetection(*result.OffsetMs)

	select {
	case <-time.After(c.settle):
	case <-ctx.Done():
		return
	}

	if c.previewer != nil {
		c.previewer.Preview()
	}
}

// fingerprint identifies file content by size, mtime and a hash of the
// head bytes, cheap enough to run on every Analyze call.
func fingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.CopyN(h, file, fingerprintHeadBytes); err != nil && err != io.EOF {
		return "", err
	}
	fmt.Fprintf(h, "%d:%d", info.Size(), info.ModTime().UnixNano())

	return hex.EncodeToString(h.Sum(nil)), nil
}
