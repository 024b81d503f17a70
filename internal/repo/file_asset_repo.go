package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/livinglib/internal/model"
	"github.com/xxxsen/livinglib/internal/pkg/dbutil"
	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

var fileAssetFields = []string{
	"file_id",
	"material_id",
	"storage_provider",
	"storage_path",
	"COALESCE(storage_bucket, '') AS storage_bucket",
	"is_primary",
	"is_accessible",
	"COALESCE(pages, 0) AS pages",
}

type FileAssetRepo struct {
	db *sql.DB
}

func NewFileAssetRepo(db *sql.DB) *FileAssetRepo {
	return &FileAssetRepo{db: db}
}

// ListUnprocessed returns primary file assets stored under one of the given
// provider names that have no text chunks yet, ordered by material.
func (r *FileAssetRepo) ListUnprocessed(ctx context.Context, providers []string) ([]model.FileAsset, error) {
	if len(providers) == 0 {
		return nil, nil
	}
	const query = `
		SELECT fa.file_id, fa.material_id, fa.storage_provider, fa.storage_path,
			COALESCE(fa.storage_bucket, ''), fa.is_primary, fa.is_accessible, COALESCE(fa.pages, 0)
		FROM file_asset fa
		WHERE fa.is_primary
			AND LOWER(fa.storage_provider) IN (?)
			AND NOT EXISTS (SELECT 1 FROM text_chunk tc WHERE tc.file_id = fa.file_id)
		ORDER BY fa.material_id, fa.file_id
	`
	sqlStr, args, err := dbutil.In(query, providers)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assets []model.FileAsset
	for rows.Next() {
		var item model.FileAsset
		if err := scanFileAsset(rows, &item); err != nil {
			return nil, err
		}
		assets = append(assets, item)
	}
	return assets, rows.Err()
}

func (r *FileAssetRepo) GetByID(ctx context.Context, fileID int64) (*model.FileAsset, error) {
	where := map[string]interface{}{
		"file_id": fileID,
		"_limit":  []uint{0, 1},
	}
	sqlStr, args, err := builder.BuildSelect("file_asset", where, fileAssetFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var item model.FileAsset
	if err := scanFileAsset(r.db.QueryRowContext(ctx, sqlStr, args...), &item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("file asset %d: %w", fileID, appErr.ErrNotFound)
		}
		return nil, err
	}
	return &item, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFileAsset(row rowScanner, item *model.FileAsset) error {
	return row.Scan(
		&item.FileID,
		&item.MaterialID,
		&item.StorageProvider,
		&item.StoragePath,
		&item.StorageBucket,
		&item.IsPrimary,
		&item.IsAccessible,
		&item.Pages,
	)
}
