package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xxxsen/livinglib/internal/model"
	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

type MaterialLookup interface {
	GetPrimaryAsset(ctx context.Context, materialID int64) (*model.MaterialAsset, error)
}

// ArtifactService serves page images and display info for materials.
type ArtifactService struct {
	materials MaterialLookup
	source    *DocumentSource
	dpi       int
	// bounds documents held open (and remote bytes held in memory) at once
	sem *semaphore.Weighted
}

func NewArtifactService(materials MaterialLookup, source *DocumentSource, dpi int, workers int) *ArtifactService {
	if dpi <= 0 {
		dpi = 150
	}
	if workers <= 0 {
		workers = 4
	}
	return &ArtifactService{
		materials: materials,
		source:    source,
		dpi:       dpi,
		sem:       semaphore.NewWeighted(int64(workers)),
	}
}

func (s *ArtifactService) lookup(ctx context.Context, materialID int64) (*model.MaterialAsset, error) {
	ma, err := s.materials.GetPrimaryAsset(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if !ma.Asset.IsAccessible {
		return nil, fmt.Errorf("material %d is not accessible: %w", materialID, appErr.ErrForbidden)
	}
	return ma, nil
}

// RenderPage returns the PNG of one page of the material's primary file.
func (s *ArtifactService) RenderPage(ctx context.Context, materialID int64, page int) ([]byte, error) {
	ma, err := s.lookup(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	doc, err := s.source.Open(ctx, &ma.Asset)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if page < 1 || page > doc.PageCount() {
		return nil, fmt.Errorf("page %d out of range [1,%d]: %w", page, doc.PageCount(), appErr.ErrNotFound)
	}
	data, err := doc.RenderPNG(ctx, page, s.dpi)
	if err != nil {
		logutil.GetLogger(ctx).Error("render page failed",
			zap.Int64("material_id", materialID), zap.Int("page", page), zap.Error(err))
		if ctx.Err() != nil || errors.Is(err, appErr.ErrUpstream) || errors.Is(err, appErr.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("render page %d: %w: %w", page, appErr.ErrUpstream, err)
	}
	return data, nil
}

// Info tells the caller whether the material can be fetched whole from a URL
// or must be rendered page by page.
func (s *ArtifactService) Info(ctx context.Context, materialID int64) (*model.MaterialInfo, error) {
	ma, err := s.lookup(ctx, materialID)
	if err != nil {
		return nil, err
	}
	loc, err := ma.Asset.Location()
	if err != nil {
		return nil, err
	}
	info := &model.MaterialInfo{
		MaterialID: ma.MaterialID,
		Title:      ma.Title,
		Pages:      ma.Asset.Pages,
	}
	switch l := loc.(type) {
	case model.LocalLocation:
		info.Kind = model.AccessKindLocal
	case model.RemoteLocation:
		url, err := s.source.RemoteURL(ctx, l)
		if err != nil {
			return nil, err
		}
		info.Kind = model.AccessKindRemote
		info.URL = url
	default:
		return nil, fmt.Errorf("unhandled location %T: %w", loc, appErr.ErrInvalid)
	}
	return info, nil
}
