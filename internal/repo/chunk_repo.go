package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/livinglib/internal/model"
	"github.com/xxxsen/livinglib/internal/pkg/dbutil"
	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertBatch writes the chunks and their embeddings in one transaction and
// returns the number of chunks written. With claim set, the file_asset row is
// locked first and the batch is refused with ErrAlreadyProcessed when the file
// already has chunks.
func (r *ChunkRepo) InsertBatch(ctx context.Context, fileID int64, chunks []model.PendingChunk, claim bool) (n int, err error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if claim {
		if err = lockUnprocessed(ctx, tx, fileID); err != nil {
			return 0, err
		}
	}

	chunkSQL, _ := dbutil.Finalize("INSERT INTO text_chunk (file_id, page_number, chunk_text) VALUES (?, ?, ?) RETURNING chunk_id", nil)
	chunkStmt, err := tx.PrepareContext(ctx, chunkSQL)
	if err != nil {
		return 0, err
	}
	defer chunkStmt.Close()
	embSQL, _ := dbutil.Finalize("INSERT INTO chunk_embedding (chunk_id, embedding) VALUES (?, ?)", nil)
	embStmt, err := tx.PrepareContext(ctx, embSQL)
	if err != nil {
		return 0, err
	}
	defer embStmt.Close()

	for i := range chunks {
		c := &chunks[i]
		var chunkID int64
		if err = chunkStmt.QueryRowContext(ctx, fileID, c.PageNumber, c.Text).Scan(&chunkID); err != nil {
			return 0, fmt.Errorf("insert chunk (page %d): %w", c.PageNumber, err)
		}
		if _, err = embStmt.ExecContext(ctx, chunkID, pgvector.NewVector(c.Embedding)); err != nil {
			return 0, fmt.Errorf("insert embedding for chunk %d: %w", chunkID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func lockUnprocessed(ctx context.Context, tx *sql.Tx, fileID int64) error {
	lockSQL, args := dbutil.Finalize("SELECT file_id FROM file_asset WHERE file_id = ? FOR UPDATE", []interface{}{fileID})
	var locked int64
	if err := tx.QueryRowContext(ctx, lockSQL, args...).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("file asset %d: %w", fileID, appErr.ErrNotFound)
		}
		return fmt.Errorf("lock file asset %d: %w", fileID, err)
	}
	existsSQL, args := dbutil.Finalize("SELECT EXISTS (SELECT 1 FROM text_chunk WHERE file_id = ?)", []interface{}{fileID})
	var exists bool
	if err := tx.QueryRowContext(ctx, existsSQL, args...).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("file asset %d: %w", fileID, appErr.ErrAlreadyProcessed)
	}
	return nil
}

func (r *ChunkRepo) CountByFile(ctx context.Context, fileID int64) (int, error) {
	sqlStr, args := dbutil.Finalize("SELECT COUNT(*) FROM text_chunk WHERE file_id = ?", []interface{}{fileID})
	count := 0
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
