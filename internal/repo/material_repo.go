package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xxxsen/livinglib/internal/model"
	"github.com/xxxsen/livinglib/internal/pkg/dbutil"
	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

type MaterialRepo struct {
	db *sql.DB
}

func NewMaterialRepo(db *sql.DB) *MaterialRepo {
	return &MaterialRepo{db: db}
}

// GetPrimaryAsset returns the material joined with its primary file asset.
func (r *MaterialRepo) GetPrimaryAsset(ctx context.Context, materialID int64) (*model.MaterialAsset, error) {
	const query = `
		SELECT m.material_id, m.title,
			fa.file_id, fa.material_id, fa.storage_provider, fa.storage_path,
			COALESCE(fa.storage_bucket, ''), fa.is_primary, fa.is_accessible, COALESCE(fa.pages, 0)
		FROM material m
		JOIN file_asset fa ON fa.material_id = m.material_id AND fa.is_primary
		WHERE m.material_id = ?
		ORDER BY fa.file_id
		LIMIT 1
	`
	sqlStr, args := dbutil.Finalize(query, []interface{}{materialID})
	var out model.MaterialAsset
	a := &out.Asset
	err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&out.MaterialID,
		&out.Title,
		&a.FileID,
		&a.MaterialID,
		&a.StorageProvider,
		&a.StoragePath,
		&a.StorageBucket,
		&a.IsPrimary,
		&a.IsAccessible,
		&a.Pages,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("material %d has no primary file: %w", materialID, appErr.ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}
