package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/livinglib/internal/ai"
	"github.com/xxxsen/livinglib/internal/model"
	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
	displayTextLen     = 500
)

type ChunkSearcher interface {
	Search(ctx context.Context, query []float32, filter model.SearchFilter, limit int) ([]model.SearchHit, error)
}

type SearchService struct {
	searcher ChunkSearcher
	embedder ai.IEmbedder
}

func NewSearchService(searcher ChunkSearcher, embedder ai.IEmbedder) *SearchService {
	return &SearchService{searcher: searcher, embedder: embedder}
}

func (s *SearchService) Search(ctx context.Context, req *model.SearchRequest) ([]model.SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", appErr.ErrInvalid)
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit < 1 || limit > MaxSearchLimit {
		return nil, fmt.Errorf("limit must be in [1,%d]: %w", MaxSearchLimit, appErr.ErrInvalid)
	}
	f := req.Filter
	if f.YearMin != nil && f.YearMax != nil && *f.YearMin > *f.YearMax {
		return nil, fmt.Errorf("year_min is greater than year_max: %w", appErr.ErrInvalid)
	}
	f.Topic = strings.TrimSpace(f.Topic)

	logger := logutil.GetLogger(ctx).With(zap.String("query", query), zap.Int("limit", limit))
	vec, err := ai.EmbedOne(ctx, s.embedder, query, ai.TaskQuery)
	if err != nil {
		logger.Error("failed to embed search query", zap.Error(err))
		return nil, err
	}
	hits, err := s.searcher.Search(ctx, vec, f, limit)
	if err != nil {
		logger.Error("vector search failed", zap.Error(err))
		return nil, err
	}
	results := make([]model.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, model.SearchResult{
			ChunkID:    h.ChunkID,
			MaterialID: h.MaterialID,
			Title:      h.Title,
			PageNumber: h.PageNumber,
			ChunkText:  truncateRunes(h.ChunkText, displayTextLen),
			Similarity: 1 - h.Distance,
		})
	}
	logger.Debug("semantic search done", zap.Int("hits", len(results)))
	return results, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
