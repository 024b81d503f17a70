package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/livinglib/internal/ai"
	"github.com/xxxsen/livinglib/internal/model"
	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

type FileAssetStore interface {
	ListUnprocessed(ctx context.Context, providers []string) ([]model.FileAsset, error)
	GetByID(ctx context.Context, fileID int64) (*model.FileAsset, error)
}

type ChunkWriter interface {
	InsertBatch(ctx context.Context, fileID int64, chunks []model.PendingChunk, claim bool) (int, error)
}

type IngestService struct {
	assets    FileAssetStore
	chunks    ChunkWriter
	source    *DocumentSource
	segmenter *ai.Segmenter
	embedder  ai.IEmbedder
	flushSize int
}

func NewIngestService(assets FileAssetStore, chunks ChunkWriter, source *DocumentSource, segmenter *ai.Segmenter, embedder ai.IEmbedder, flushSize int) *IngestService {
	if flushSize <= 0 {
		flushSize = 100
	}
	return &IngestService{
		assets:    assets,
		chunks:    chunks,
		source:    source,
		segmenter: segmenter,
		embedder:  embedder,
		flushSize: flushSize,
	}
}

// Run ingests every primary file asset that has no chunks yet. A failing
// document is counted as skipped and the run moves on.
func (s *IngestService) Run(ctx context.Context) (*model.IngestResult, error) {
	logger := logutil.GetLogger(ctx)
	assets, err := s.assets.ListUnprocessed(ctx, s.source.Providers())
	if err != nil {
		logger.Error("list unprocessed files failed", zap.Error(err))
		return nil, err
	}
	logger.Info("ingestion started", zap.Int("documents", len(assets)))
	start := time.Now()
	result := &model.IngestResult{}
	for i := range assets {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		logger.Info("ingesting document",
			zap.Int("index", i+1),
			zap.Int("total", len(assets)),
			zap.Int64("file_id", assets[i].FileID),
			zap.Int64("material_id", assets[i].MaterialID))
		s.ingest(ctx, &assets[i], result)
	}
	logger.Info("ingestion finished",
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("chunks", result.Chunks),
		zap.Duration("cost", time.Since(start)))
	return result, nil
}

// IngestFile runs a single file asset through the same pipeline. Files that
// already have chunks are reported as skipped.
func (s *IngestService) IngestFile(ctx context.Context, fileID int64) (*model.IngestResult, error) {
	asset, err := s.assets.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	result := &model.IngestResult{}
	s.ingest(ctx, asset, result)
	return result, nil
}

func (s *IngestService) ingest(ctx context.Context, asset *model.FileAsset, result *model.IngestResult) {
	logger := logutil.GetLogger(ctx).With(zap.Int64("file_id", asset.FileID), zap.Int64("material_id", asset.MaterialID))
	n, err := s.ingestDocument(ctx, asset)
	result.Chunks += n
	switch {
	case err == nil:
		result.Processed++
		logger.Info("document ingested", zap.Int("chunks", n))
	case errors.Is(err, appErr.ErrAlreadyProcessed):
		result.Skipped++
		logger.Info("document already processed by another run, skip")
	default:
		result.Skipped++
		logger.Error("document ingestion failed, skip", zap.Int("chunks_committed", n), zap.Error(err))
	}
}

// ingestDocument returns the number of chunks committed, which may be
// non-zero even when an error is returned.
func (s *IngestService) ingestDocument(ctx context.Context, asset *model.FileAsset) (int, error) {
	doc, err := s.source.Open(ctx, asset)
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	logger := logutil.GetLogger(ctx).With(zap.Int64("file_id", asset.FileID))
	written := 0
	claimed := false
	var buffer []model.PendingChunk
	flush := func(batch []model.PendingChunk) error {
		n, err := s.chunks.InsertBatch(ctx, asset.FileID, batch, !claimed)
		if err != nil {
			return err
		}
		claimed = true
		written += n
		logger.Debug("chunk batch committed", zap.Int("chunks", n), zap.Int("total", written))
		return nil
	}

	for page := 1; page <= doc.PageCount(); page++ {
		text, err := doc.PageText(ctx, page)
		if err != nil {
			return written, err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pieces := s.segmenter.Segment(text)
		if len(pieces) == 0 {
			continue
		}
		vecs, err := s.embedder.Embed(ctx, pieces, ai.TaskDocument)
		if err != nil {
			return written, err
		}
		if len(vecs) != len(pieces) {
			return written, fmt.Errorf("got %d embeddings for %d chunks on page %d", len(vecs), len(pieces), page)
		}
		for i, piece := range pieces {
			buffer = append(buffer, model.PendingChunk{PageNumber: page, Text: piece, Embedding: vecs[i]})
		}
		for len(buffer) >= s.flushSize {
			if err := flush(buffer[:s.flushSize]); err != nil {
				return written, err
			}
			buffer = append(buffer[:0], buffer[s.flushSize:]...)
		}
	}
	if len(buffer) > 0 {
		if err := flush(buffer); err != nil {
			return written, err
		}
	}
	return written, nil
}
