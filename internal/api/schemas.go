package api

import (
	"time"

	"github.com/driftfix/driftfix-agent/internal/preview"
	"github.com/driftfix/driftfix-agent/internal/session"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	Asset       *AssetResponse      `json:"asset,omitempty"`
	Offset      OffsetResponse      `json:"offset"`
	Preview     preview.Snapshot    `json:"preview"`
	EngineState string              `json:"engine_state"`
	Busy        BusyResponse        `json:"busy"`
	LastError   string              `json:"last_error,omitempty"`
	Operations  []OperationResponse `json:"operations"`
}

type BusyResponse struct {
	Normalize bool `json:"normalize"`
	Analyze   bool `json:"analyze"`
	Export    bool `json:"export"`
}

type AssetResponse struct {
	ID              string  `json:"id"`
	DisplayName     string  `json:"display_name"`
	Size            int64   `json:"size"`
	Container       string  `json:"container"`
	DurationSeconds float64 `json:"duration_seconds"`
	VideoCodec      string  `json:"video_codec,omitempty"`
	AudioCodec      string  `json:"audio_codec,omitempty"`
	Converted       bool    `json:"converted"`
	CreatedAt       string  `json:"created_at"`
}

type OffsetResponse struct {
	OffsetMs float64 `json:"offset_ms"`
	Source   string  `json:"source"`
	MinMs    int     `json:"min_ms"`
	MaxMs    int     `json:"max_ms"`
	StepMs   int     `json:"step_ms"`
}

type SetOffsetRequest struct {
	OffsetMs float64 `json:"offset_ms"`
}

type AnalyzeResponse struct {
	OffsetFrames float64  `json:"offset_frames"`
	Confidence   float64  `json:"confidence"`
	OffsetMs     *float64 `json:"offset_ms,omitempty"`
}

type ExportResponse struct {
	OperationID string `json:"operation_id"`
	OutputPath  string `json:"output_path"`
}

type PreviewStateResponse struct {
	State          string            `json:"state"`
	PendingStream  string            `json:"pending_stream,omitempty"`
	PendingDelayMs float64           `json:"pending_delay_ms,omitempty"`
	Video          preview.PortState `json:"video"`
	Audio          preview.PortState `json:"audio"`
}

type OperationResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	AssetID    string `json:"asset_id,omitempty"`
	Error      string `json:"error,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type OperationsResponse struct {
	Operations []OperationResponse `json:"operations"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func AssetToResponse(a *session.MediaAsset) AssetResponse {
	return AssetResponse{
		ID:              a.ID,
		DisplayName:     a.DisplayName,
		Size:            a.Size,
		Container:       a.Container,
		DurationSeconds: a.DurationSeconds,
		VideoCodec:      a.VideoCodec,
		AudioCodec:      a.AudioCodec,
		Converted:       a.Converted(),
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
	}
}

func OperationToResponse(op *session.Operation) OperationResponse {
	return OperationResponse{
		ID:         op.ID,
		Type:       op.Type,
		Status:     op.Status,
		AssetID:    op.AssetID,
		Error:      op.Error,
		OutputPath: op.OutputPath,
		CreatedAt:  op.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  op.UpdatedAt.Format(time.RFC3339),
	}
}
