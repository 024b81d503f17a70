package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/livinglib/internal/ai"
	"github.com/xxxsen/livinglib/internal/config"
	"github.com/xxxsen/livinglib/internal/db"
	"github.com/xxxsen/livinglib/internal/embedcache"
	"github.com/xxxsen/livinglib/internal/filestore"
	"github.com/xxxsen/livinglib/internal/pdf"
	"github.com/xxxsen/livinglib/internal/repo"
	"github.com/xxxsen/livinglib/internal/service"
)

// app holds the wired services shared by the run and ingest commands.
type app struct {
	db        *sql.DB
	embedder  *ai.EmbeddingProvider
	ingest    *service.IngestService
	search    *service.SearchService
	artifacts *service.ArtifactService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logutil.GetLogger(ctx)
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	providerArgs := cfg.Embedding.Data
	if providerArgs == nil {
		providerArgs = cfg.Embedding
	}
	backend, err := ai.NewEmbedProvider(cfg.Embedding.Provider, providerArgs)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}
	embedder := ai.NewEmbeddingProvider(backend, ai.EmbeddingOptions{
		Model:         cfg.Embedding.Model,
		Dimension:     cfg.Embedding.Dimension,
		BatchSize:     cfg.Embedding.BatchSize,
		Concurrent:    cfg.Embedding.Concurrent,
		Timeout:       time.Duration(cfg.Embedding.Timeout) * time.Second,
		RetryInterval: time.Duration(cfg.Embedding.RetryInterval) * time.Second,
	})
	queryEmbedder := embedcache.WrapLruCacheToEmbedder(
		embedder,
		cfg.Embedding.CacheSize,
		time.Duration(cfg.Embedding.CacheTTL)*time.Second,
	)

	local, err := filestore.NewLocalStore(cfg.Storage.LocalDir)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	var remote filestore.ObjectStore
	if cfg.RemoteEnabled() {
		store, err := filestore.NewS3Store(ctx, cfg.Storage.Remote)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("init remote storage: %w", err)
		}
		remote = store
	} else {
		logger.Warn("remote storage disabled: credentials not configured")
	}

	poppler := pdf.NewPoppler(pdf.PopplerOptions{
		WorkDir: cfg.Render.WorkDir,
		Workers: cfg.Render.Workers,
	})
	if err := poppler.AssertReady(); err != nil {
		logger.Warn("pdf tools not ready", zap.Error(err))
	}
	source := service.NewDocumentSource(local, remote, poppler)

	segmenter, err := ai.NewSegmenter(cfg.Chunking.Size, cfg.Chunking.Overlap, cfg.Chunking.MinLen)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &app{
		db:       conn,
		embedder: embedder,
		ingest: service.NewIngestService(
			repo.NewFileAssetRepo(conn),
			repo.NewChunkRepo(conn),
			source,
			segmenter,
			embedder,
			cfg.Ingest.FlushSize,
		),
		search:    service.NewSearchService(repo.NewSearchRepo(conn), queryEmbedder),
		artifacts: service.NewArtifactService(repo.NewMaterialRepo(conn), source, cfg.Render.DPI, cfg.Render.Workers),
	}, nil
}

func (a *app) Close() {
	_ = a.embedder.Close()
	_ = a.db.Close()
}
