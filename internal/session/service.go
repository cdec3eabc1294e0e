package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// ErrBusy is returned when an operation kind is triggered while a prior
// run of the same kind is still in flight. Each kind is guarded
// independently so the offset control stays usable during an export.
var ErrBusy = errors.New("operation already in progress")

type SessionService interface {
	Register(ctx context.Context, asset *MediaAsset) (*MediaAsset, error)
	CurrentAsset(ctx context.Context) (*MediaAsset, error)
	SaveOffset(ctx context.Context, assetID string, offsetMs float64, source string) error
	BeginOperation(ctx context.Context, opType, assetID string) (*Operation, error)
	FinishOperation(ctx context.Context, opID string, outputPath string, opErr error)
	Operations(ctx context.Context, limit int) ([]*Operation, error)
	Busy(opType string) bool
}

type Service struct {
	repo   Repository
	logger *slog.Logger

	// AssetChanged, when set, is invoked after a new asset becomes live.
	AssetChanged func(asset *MediaAsset)

	// OperationChanged, when set, is invoked when an operation starts
	// or finishes.
	OperationChanged func(opType, status string)

	normalizing atomic.Bool
	analyzing   atomic.Bool
	exporting   atomic.Bool
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Register makes asset the single live asset, releasing the previous one.
// The released asset's preview copy is deleted when it was a converted
// file (the original is never touched).
func (s *Service) Register(ctx context.Context, asset *MediaAsset) (*MediaAsset, error) {
	prior, err := s.repo.GetLiveAsset(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ReleaseLiveAssets(ctx); err != nil {
		return nil, err
	}

	if prior != nil && prior.Converted() {
		if err := os.Remove(prior.PreviewPath); err != nil && !os.IsNotExist(err) {
			if s.logger != nil {
				s.logger.Warn("failed to remove stale preview copy", "path", prior.PreviewPath, "error", err)
			}
		}
	}

	now := time.Now()
	asset.Live = true
	asset.OffsetMs = 0
	asset.OffsetSource = OffsetSourceNone
	asset.CreatedAt = now
	asset.UpdatedAt = now
	if asset.ID == "" {
		asset.ID = NewID()
	}

	if err := s.repo.CreateAsset(ctx, asset); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("asset registered",
			"asset_id", asset.ID,
			"name", asset.DisplayName,
			"size", asset.Size,
			"converted", asset.Converted(),
		)
	}
	if s.AssetChanged != nil {
		s.AssetChanged(asset)
	}
	return asset, nil
}

func (s *Service) CurrentAsset(ctx context.Context) (*MediaAsset, error) {
	return s.repo.GetLiveAsset(ctx)
}

func (s *Service) SaveOffset(ctx context.Context, assetID string, offsetMs float64, source string) error {
	return s.repo.UpdateAssetOffset(ctx, assetID, offsetMs, source)
}

// BeginOperation records a single-attempt operation and takes the busy
// flag for its kind. Callers must pair it with FinishOperation.
func (s *Service) BeginOperation(ctx context.Context, opType, assetID string) (*Operation, error) {
	guard := s.guardFor(opType)
	if guard == nil {
		return nil, fmt.Errorf("unknown operation type %q", opType)
	}
	if guard.Swap(true) {
		return nil, ErrBusy
	}

	now := time.Now()
	op := &Operation{
		ID:        NewID(),
		Type:      opType,
		Status:    OpStatusRunning,
		AssetID:   assetID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateOperation(ctx, op); err != nil {
		guard.Store(false)
		return nil, err
	}

	if s.OperationChanged != nil {
		s.OperationChanged(opType, OpStatusRunning)
	}
	return op, nil
}

func (s *Service) FinishOperation(ctx context.Context, opID string, outputPath string, opErr error) {
	op, err := s.repo.GetOperation(ctx, opID)
	if err != nil || op == nil {
		if s.logger != nil {
			s.logger.Error("failed to load operation for finish", "operation_id", opID, "error", err)
		}
		return
	}

	status := OpStatusCompleted
	errMsg := ""
	if opErr != nil {
		status = OpStatusFailed
		errMsg = opErr.Error()
	}

	if err := s.repo.UpdateOperation(ctx, opID, status, errMsg, outputPath); err != nil && s.logger != nil {
		s.logger.Error("failed to update operation", "operation_id", opID, "error", err)
	}

	if guard := s.guardFor(op.Type); guard != nil {
		guard.Store(false)
	}
	if s.OperationChanged != nil {
		s.OperationChanged(op.Type, status)
	}
}

func (s *Service) Operations(ctx context.Context, limit int) ([]*Operation, error) {
	return s.repo.ListOperations(ctx, limit)
}

func (s *Service) Busy(opType string) bool {
	if guard := s.guardFor(opType); guard != nil {
		return guard.Load()
	}
	return false
}

func (s *Service) guardFor(opType string) *atomic.Bool {
	switch opType {
	case OpTypeNormalize:
		return &s.normalizing
	case OpTypeAnalyze:
		return &s.analyzing
	case OpTypeExport:
		return &s.exporting
	default:
		return nil
	}
}
