package session

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateAsset(ctx context.Context, asset *MediaAsset) error
	GetAsset(ctx context.Context, id string) (*MediaAsset, error)
	GetLiveAsset(ctx context.Context) (*MediaAsset, error)
	ReleaseLiveAssets(ctx context.Context) error
	UpdateAssetOffset(ctx context.Context, id string, offsetMs float64, source string) error

	CreateOperation(ctx context.Context, op *Operation) error
	GetOperation(ctx context.Context, id string) (*Operation, error)
	ListOperations(ctx context.Context, limit int) ([]*Operation, error)
	UpdateOperation(ctx context.Context, id, status, errorMsg, outputPath string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateAsset(ctx context.Context, a *MediaAsset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assets (id, display_name, original_path, preview_path, size, container, duration_seconds, video_codec, audio_codec, offset_ms, offset_source, live, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.DisplayName, a.OriginalPath, a.PreviewPath, a.Size, a.Container,
		a.DurationSeconds, a.VideoCodec, a.AudioCodec,
		a.OffsetMs, a.OffsetSource, boolToInt(a.Live),
		a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetAsset(ctx context.Context, id string) (*MediaAsset, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, display_name, original_path, preview_path, size, container, duration_seconds, video_codec, audio_codec, offset_ms, offset_source, live, created_at, updated_at
		FROM assets WHERE id = ?
	`, id)
	return r.scanAsset(row)
}

func (r *SQLiteRepository) GetLiveAsset(ctx context.Context) (*MediaAsset, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, display_name, original_path, preview_path, size, container, duration_seconds, video_codec, audio_codec, offset_ms, offset_source, live, created_at, updated_at
		FROM assets WHERE live = 1 ORDER BY created_at DESC LIMIT 1
	`)
	return r.scanAsset(row)
}

func (r *SQLiteRepository) scanAsset(row *sql.Row) (*MediaAsset, error) {
	var a MediaAsset
	var live int
	var createdAt, updatedAt string

	err := row.Scan(&a.ID, &a.DisplayName, &a.OriginalPath, &a.PreviewPath, &a.Size,
		&a.Container, &a.DurationSeconds, &a.VideoCodec, &a.AudioCodec,
		&a.OffsetMs, &a.OffsetSource, &live, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a.Live = live == 1
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

func (r *SQLiteRepository) ReleaseLiveAssets(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE assets SET live = 0, updated_at = datetime('now') WHERE live = 1")
	return err
}

func (r *SQLiteRepository) UpdateAssetOffset(ctx context.Context, id string, offsetMs float64, source string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE assets SET offset_ms = ?, offset_source = ?, updated_at = datetime('now') WHERE id = ?",
		offsetMs, source, id)
	return err
}

func (r *SQLiteRepository) CreateOperation(ctx context.Context, op *Operation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO operations (id, type, status, asset_id, error, output_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, op.ID, op.Type, op.Status, nullString(op.AssetID), nullString(op.Error), nullString(op.OutputPath),
		op.CreatedAt.Format(time.RFC3339), op.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetOperation(ctx context.Context, id string) (*Operation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, status, asset_id, error, output_path, created_at, updated_at
		FROM operations WHERE id = ?
	`, id)

	var op Operation
	var assetID, errMsg, outputPath sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&op.ID, &op.Type, &op.Status, &assetID, &errMsg, &outputPath, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	op.AssetID = assetID.String
	op.Error = errMsg.String
	op.OutputPath = outputPath.String
	op.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	op.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &op, nil
}

func (r *SQLiteRepository) ListOperations(ctx context.Context, limit int) ([]*Operation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, asset_id, error, output_path, created_at, updated_at
		FROM operations ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		var op Operation
		var assetID, errMsg, outputPath sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&op.ID, &op.Type, &op.Status, &assetID, &errMsg, &outputPath, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		op.AssetID = assetID.String
		op.Error = errMsg.String
		op.OutputPath = outputPath.String
		op.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		op.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

func (r *SQLiteRepository) UpdateOperation(ctx context.Context, id, status, errorMsg, outputPath string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE operations SET status = ?, error = ?, output_path = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), nullString(outputPath), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
