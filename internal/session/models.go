package session

import (
	"crypto/rand"
	"fmt"
	"time"
)

// MediaAsset is the user's working file. At most one asset is live at a
// time; selecting a new file releases the previous one. OriginalPath is
// what analysis and export read; PreviewPath is the preview-only copy
// (identical to OriginalPath when no conversion was needed).
type MediaAsset struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	OriginalPath string    `json:"original_path"`
	PreviewPath  string    `json:"preview_path"`
	Size         int64     `json:"size"`
	Container    string    `json:"container"`

	// Probe metadata, zero when ffprobe was unavailable at selection time.
	DurationSeconds float64 `json:"duration_seconds"`
	VideoCodec      string  `json:"video_codec"`
	AudioCodec      string  `json:"audio_codec"`

	OffsetMs     float64   `json:"offset_ms"`
	OffsetSource string    `json:"offset_source"`
	Live         bool      `json:"live"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Converted reports whether the preview copy differs from the original.
func (a *MediaAsset) Converted() bool {
	return a.PreviewPath != a.OriginalPath
}

const (
	OffsetSourceNone   = "none"
	OffsetSourceServer = "server"
	OffsetSourceUser   = "user"
)

const (
	OpTypeNormalize = "normalize"
	OpTypeAnalyze   = "analyze"
	OpTypeExport    = "export"

	OpStatusRunning   = "running"
	OpStatusCompleted = "completed"
	OpStatusFailed    = "failed"
)

// Operation is one single-attempt run of a long operation kind, recorded
// for the status surface. There is no retry: a failed operation stays
// failed until the user triggers a new one.
type Operation struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	AssetID    string    `json:"asset_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
