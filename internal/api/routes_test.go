package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/driftfix/driftfix-agent/internal/analysis"
	"github.com/driftfix/driftfix-agent/internal/db"
	"github.com/driftfix/driftfix-agent/internal/engine"
	"github.com/driftfix/driftfix-agent/internal/export"
	"github.com/driftfix/driftfix-agent/internal/normalize"
	"github.com/driftfix/driftfix-agent/internal/offset"
	"github.com/driftfix/driftfix-agent/internal/playback"
	"github.com/driftfix/driftfix-agent/internal/preview"
	"github.com/driftfix/driftfix-agent/internal/session"
)

const testToken = "test-token-12345"

type testEnv struct {
	router http.Handler
	repo   *session.SQLiteRepository
	store  *offset.Store
	eng    *engine.StubEngine
	dir    string
}

func newTestEnv(t *testing.T, upstreamURL string) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	database, err := db.New(filepath.Join(dir, "test.db"), logger)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := session.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), "auth_token", testToken); err != nil {
		t.Fatalf("failed to set auth token: %v", err)
	}

	svc := session.NewService(repo, logger)
	store := offset.NewStore()
	video := preview.NewStatePort("video")
	audio := preview.NewStatePort("audio")
	ctrl := preview.NewController(video, audio, store, logger)
	eng := engine.NewStubEngine(logger)

	cfg := ServerConfig{
		UploadDir:      dir,
		MaxUploadBytes: 1 << 20,
		SessionService: svc,
		Repository:     repo,
		OffsetStore:    store,
		Preview:        ctrl,
		VideoPort:      video,
		AudioPort:      audio,
		Normalizer:     normalize.NewNormalizer(eng, dir, time.Minute, logger),
		Analyzer:       analysis.NewClient(upstreamURL, store, ctrl, 0, logger),
		Exporter:       export.NewExporter(eng, dir, time.Minute, logger),
		Playback:       playback.NewServer(logger),
		Engine:         eng,
		Logger:         logger,
		StartTime:      time.Now(),
	}

	return &testEnv{
		router: NewRouter(cfg),
		repo:   repo,
		store:  store,
		eng:    eng,
		dir:    dir,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func multipartVideo(t *testing.T, filename string, content []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("video", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func (env *testEnv) uploadFile(t *testing.T, filename string, content []byte) AssetResponse {
	t.Helper()

	body, contentType := multipartVideo(t, filename, content)
	w := env.do(t, "POST", "/media", body, contentType)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload returned status %d: %s", w.Code, w.Body.String())
	}

	var resp AssetResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode asset response: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestHealthNoAuth(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"wrong token", "Bearer wrong-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", w.Code)
			}
		})
	}
}

func TestSelectMediaPreviewable(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	resp := env.uploadFile(t, "concert.mp4", []byte("fake mp4 data"))
	if resp.Converted {
		t.Error("mp4 upload should not be marked converted")
	}
	if resp.DisplayName != "concert.mp4" {
		t.Errorf("expected display name concert.mp4, got %q", resp.DisplayName)
	}
	if len(env.eng.Calls()) != 0 {
		t.Errorf("mp4 upload should not invoke the engine, got %d calls", len(env.eng.Calls()))
	}

	w := env.do(t, "GET", "/media", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var current AssetResponse
	if err := json.Unmarshal(w.Body.Bytes(), &current); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if current.ID != resp.ID {
		t.Errorf("current asset %q does not match uploaded %q", current.ID, resp.ID)
	}
}

func TestSelectMediaRejectsUnsupported(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	body, contentType := multipartVideo(t, "notes.txt", []byte("not a video"))
	w := env.do(t, "POST", "/media", body, contentType)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "VALIDATION_ERROR" {
		t.Errorf("expected code VALIDATION_ERROR, got %q", resp.Code)
	}
	if len(env.eng.Calls()) != 0 {
		t.Error("rejected upload should not invoke the engine")
	}

	if w := env.do(t, "GET", "/media", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("expected no asset after rejected upload, got status %d", w.Code)
	}
}

func TestSelectMediaConverts(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	resp := env.uploadFile(t, "recording.avi", []byte("fake avi data"))
	if !resp.Converted {
		t.Error("avi upload should be marked converted")
	}

	calls := env.eng.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 engine call, got %d", len(calls))
	}
	joined := strings.Join(calls[0], " ")
	if !strings.Contains(joined, "libx264") {
		t.Errorf("conversion args missing libx264: %s", joined)
	}
}

func TestSelectMediaConversionFailure(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.eng.FailWith = "moov atom not found"

	body, contentType := multipartVideo(t, "recording.avi", []byte("fake avi data"))
	w := env.do(t, "POST", "/media", body, contentType)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "NORMALIZATION_ERROR" {
		t.Errorf("expected code NORMALIZATION_ERROR, got %q", resp.Code)
	}

	if w := env.do(t, "GET", "/media", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("expected no asset after failed conversion, got status %d", w.Code)
	}
}

func TestSelectMediaResetsOffset(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	env.uploadFile(t, "first.mp4", []byte("one"))
	env.do(t, "PUT", "/offset", strings.NewReader(`{"offset_ms": 500}`), "application/json")

	env.uploadFile(t, "second.mp4", []byte("two"))

	w := env.do(t, "GET", "/offset", nil, "")
	var resp OffsetResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.OffsetMs != 0 {
		t.Errorf("expected offset reset to 0, got %v", resp.OffsetMs)
	}
	if resp.Source != "none" {
		t.Errorf("expected source none after reset, got %q", resp.Source)
	}
}

func TestSetOffsetClamps(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	tests := []struct {
		input float64
		want  float64
	}{
		{500, 500},
		{5000, 2000},
		{-5000, -2000},
		{-123.4, -123.4},
	}

	for _, tt := range tests {
		body := strings.NewReader(fmt.Sprintf(`{"offset_ms": %v}`, tt.input))
		w := env.do(t, "PUT", "/offset", body, "application/json")
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		var resp OffsetResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.OffsetMs != tt.want {
			t.Errorf("input %v: expected offset %v, got %v", tt.input, tt.want, resp.OffsetMs)
		}
		if resp.Source != "user" {
			t.Errorf("expected source user, got %q", resp.Source)
		}
	}
}

func TestOffsetRangeMetadata(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	w := env.do(t, "GET", "/offset", nil, "")
	var resp OffsetResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.MinMs != -2000 || resp.MaxMs != 2000 || resp.StepMs != 10 {
		t.Errorf("unexpected range metadata: min=%d max=%d step=%d", resp.MinMs, resp.MaxMs, resp.StepMs)
	}
}

func TestSetOffsetPersists(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	asset := env.uploadFile(t, "clip.mp4", []byte("data"))
	env.do(t, "PUT", "/offset", strings.NewReader(`{"offset_ms": 750}`), "application/json")

	stored, err := env.repo.GetAsset(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("failed to load asset: %v", err)
	}
	if stored.OffsetMs != 750 {
		t.Errorf("expected persisted offset 750, got %v", stored.OffsetMs)
	}
	if stored.OffsetSource != session.OffsetSourceUser {
		t.Errorf("expected persisted source user, got %q", stored.OffsetSource)
	}
}

func TestPreviewRequiresAsset(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	w := env.do(t, "POST", "/preview", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "NO_ASSET" {
		t.Errorf("expected code NO_ASSET, got %q", resp.Code)
	}
}

func TestPreviewAndState(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	env.uploadFile(t, "clip.mp4", []byte("data"))
	env.do(t, "PUT", "/offset", strings.NewReader(`{"offset_ms": 2000}`), "application/json")

	w := env.do(t, "POST", "/preview", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	w = env.do(t, "GET", "/preview/state", nil, "")
	var state PreviewStateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if state.State != "playing" {
		t.Errorf("expected state playing, got %q", state.State)
	}
	if !state.Video.Playing {
		t.Error("video should lead with a positive offset")
	}
	if state.Audio.Playing {
		t.Error("audio should still be waiting for its wake-up")
	}
	if state.PendingStream != "audio" {
		t.Errorf("expected pending stream audio, got %q", state.PendingStream)
	}
	if state.PendingDelayMs != 2000 {
		t.Errorf("expected pending delay 2000, got %v", state.PendingDelayMs)
	}
}

func TestPreviewStop(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	env.uploadFile(t, "clip.mp4", []byte("data"))
	env.do(t, "POST", "/preview", nil, "")

	w := env.do(t, "POST", "/preview/stop", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	w = env.do(t, "GET", "/preview/state", nil, "")
	var state PreviewStateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if state.State != "idle" {
		t.Errorf("expected state idle after stop, got %q", state.State)
	}
	if state.Video.Playing || state.Audio.Playing {
		t.Error("both streams should be paused after stop")
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.eng.OnRun = func(args []string) {
		// The last argument is the output path.
		os.WriteFile(args[len(args)-1], []byte("exported"), 0644)
	}

	env.uploadFile(t, "concert.mp4", []byte("data"))
	env.do(t, "PUT", "/offset", strings.NewReader(`{"offset_ms": 300}`), "application/json")

	w := env.do(t, "POST", "/export", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ExportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.OutputPath == "" {
		t.Error("expected a non-empty output path")
	}

	calls := env.eng.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 engine call, got %d", len(calls))
	}
	joined := strings.Join(calls[0], " ")
	if !strings.Contains(joined, "-itsoffset -0.300") {
		t.Errorf("export args missing itsoffset: %s", joined)
	}

	w = env.do(t, "GET", "/export/file", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for export file, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("expected attachment disposition, got %q", cd)
	}
	if w.Body.String() != "exported" {
		t.Errorf("unexpected export file body: %q", w.Body.String())
	}
}

func TestExportRequiresAsset(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	w := env.do(t, "POST", "/export", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestExportFailure(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	env.uploadFile(t, "concert.mp4", []byte("data"))
	env.eng.FailWith = "invalid data found when processing input"

	w := env.do(t, "POST", "/export", nil, "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "EXPORT_ERROR" {
		t.Errorf("expected code EXPORT_ERROR, got %q", resp.Code)
	}

	if w := env.do(t, "GET", "/export/file", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for export file after failure, got %d", w.Code)
	}
}

func TestAnalyze(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"offset_frames": 9.0, "confidence": 0.92, "offset_ms": 375.5}`))
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)
	asset := env.uploadFile(t, "concert.mp4", []byte("fake mp4 data"))

	w := env.do(t, "POST", "/analyze", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.OffsetMs == nil || *resp.OffsetMs != 375.5 {
		t.Errorf("expected offset_ms 375.5, got %v", resp.OffsetMs)
	}

	if got := env.store.Get(); got != 375.5 {
		t.Errorf("expected store offset 375.5, got %v", got)
	}
	if src := env.store.GetSource(); src != offset.SourceServer {
		t.Errorf("expected source server, got %q", src)
	}

	stored, err := env.repo.GetAsset(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("failed to load asset: %v", err)
	}
	if stored.OffsetMs != 375.5 {
		t.Errorf("expected persisted offset 375.5, got %v", stored.OffsetMs)
	}
}

func TestAnalyzeRequiresAsset(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	w := env.do(t, "POST", "/analyze", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestAnalyzeFailure(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.uploadFile(t, "concert.mp4", []byte("data"))

	w := env.do(t, "POST", "/analyze", nil, "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", w.Code)
	}
	resp := decodeError(t, w)
	if resp.Code != "ANALYSIS_ERROR" {
		t.Errorf("expected code ANALYSIS_ERROR, got %q", resp.Code)
	}
	if resp.Error != "could not analyze file" {
		t.Errorf("expected a generic message, got %q", resp.Error)
	}

	if got := env.store.Get(); got != 0 {
		t.Errorf("offset should be untouched after failure, got %v", got)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.uploadFile(t, "clip.mp4", []byte("data"))

	w := env.do(t, "GET", "/status", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Asset == nil {
		t.Fatal("expected asset in status")
	}
	if resp.EngineState != "ready" {
		t.Errorf("expected engine state ready, got %q", resp.EngineState)
	}
	if resp.Busy.Normalize || resp.Busy.Analyze || resp.Busy.Export {
		t.Error("no operation should be busy")
	}
	if len(resp.Operations) == 0 {
		t.Error("expected the normalize operation in status history")
	}
}

func TestOperationsListed(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.uploadFile(t, "clip.mp4", []byte("data"))

	w := env.do(t, "GET", "/operations", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp OperationsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(resp.Operations))
	}
	op := resp.Operations[0]
	if op.Type != session.OpTypeNormalize {
		t.Errorf("expected normalize operation, got %q", op.Type)
	}
	if op.Status != session.OpStatusCompleted {
		t.Errorf("expected completed status, got %q", op.Status)
	}
}

func TestMediaPreviewFile(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.uploadFile(t, "clip.mp4", []byte("0123456789"))

	w := env.do(t, "GET", "/media/preview-file", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "0123456789" {
		t.Errorf("unexpected file body: %q", w.Body.String())
	}

	req := httptest.NewRequest("GET", "/media/preview-file", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected status 206, got %d", rec.Code)
	}
	if rec.Body.String() != "2345" {
		t.Errorf("unexpected partial body: %q", rec.Body.String())
	}
}

func TestSelectMediaRejectsOversizeBody(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	// 3 MiB body against the 1 MiB test cap (plus form overhead margin).
	body, contentType := multipartVideo(t, "huge.mp4", bytes.Repeat([]byte("x"), 3<<20))
	w := env.do(t, "POST", "/media", body, contentType)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "VALIDATION_ERROR" {
		t.Errorf("expected code VALIDATION_ERROR, got %q", resp.Code)
	}
	if len(env.eng.Calls()) != 0 {
		t.Error("oversize upload should not invoke the engine")
	}
	if w := env.do(t, "GET", "/media", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("expected no asset after oversize upload, got status %d", w.Code)
	}
}

func TestSelectMediaIncludesProbeMetadata(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.eng.ProbeResult = &engine.ProbeInfo{
		DurationSeconds: 93.2,
		VideoCodec:      "h264",
		AudioCodec:      "aac",
	}

	resp := env.uploadFile(t, "concert.mp4", []byte("fake mp4 data"))
	if resp.DurationSeconds != 93.2 {
		t.Errorf("expected duration 93.2, got %v", resp.DurationSeconds)
	}
	if resp.VideoCodec != "h264" || resp.AudioCodec != "aac" {
		t.Errorf("codecs = %q/%q, want h264/aac", resp.VideoCodec, resp.AudioCodec)
	}

	// Metadata survives the round trip through the store.
	w := env.do(t, "GET", "/media", nil, "")
	var current AssetResponse
	if err := json.Unmarshal(w.Body.Bytes(), &current); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if current.DurationSeconds != 93.2 {
		t.Errorf("expected stored duration 93.2, got %v", current.DurationSeconds)
	}
}
