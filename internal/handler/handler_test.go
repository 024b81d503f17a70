package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/livinglib/internal/model"
	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

type stubSearcher struct {
	got *model.SearchRequest
	err error
}

func (s *stubSearcher) Search(ctx context.Context, req *model.SearchRequest) ([]model.SearchResult, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return []model.SearchResult{{ChunkID: 1, MaterialID: 2, Title: "Soil", PageNumber: 3, ChunkText: "text", Similarity: 0.9}}, nil
}

type stubArtifacts struct {
	err error
}

func (s *stubArtifacts) RenderPage(ctx context.Context, materialID int64, page int) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte(fmt.Sprintf("png-%d-%d", materialID, page)), nil
}

func (s *stubArtifacts) Info(ctx context.Context, materialID int64) (*model.MaterialInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.MaterialInfo{MaterialID: materialID, Title: "Soil", Kind: model.AccessKindLocal}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(ctx context.Context) error { return p.err }

type stubReady bool

func (r stubReady) Refresh(ctx context.Context) bool { return bool(r) }

func setupRouter(search Searcher, artifacts Artifacts, db Pinger, ready ReadinessReporter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), RouterDeps{
		Search:    NewSearchHandler(search),
		Materials: NewMaterialHandler(artifacts),
		Health:    NewHealthHandler(db, ready),
	})
	return r
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSemanticSearchBindsRequest(t *testing.T) {
	search := &stubSearcher{}
	r := setupRouter(search, &stubArtifacts{}, stubPinger{}, stubReady(true))

	rec := doRequest(r, http.MethodPost, "/api/v1/search/semantic", `{"query":"soil","topic":"Gardening","year_min":1990,"limit":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "soil", search.got.Query)
	require.Equal(t, "Gardening", search.got.Filter.Topic)
	require.Equal(t, 1990, *search.got.Filter.YearMin)
	require.Nil(t, search.got.Filter.YearMax)
	require.Equal(t, 5, search.got.Limit)
	require.Contains(t, rec.Body.String(), `"chunk_text":"text"`)

	rec = doRequest(r, http.MethodPost, "/api/v1/search/semantic", `{"query":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("x: %w", appErr.ErrInvalid), want: http.StatusBadRequest},
		{err: fmt.Errorf("x: %w", appErr.ErrNotFound), want: http.StatusNotFound},
		{err: fmt.Errorf("x: %w", appErr.ErrForbidden), want: http.StatusForbidden},
		{err: fmt.Errorf("x: %w", appErr.ErrUnavailable), want: http.StatusServiceUnavailable},
		{err: fmt.Errorf("x: %w", appErr.ErrUpstream), want: http.StatusBadGateway},
		{err: errors.New("pq: relation does not exist"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			r := setupRouter(&stubSearcher{err: tt.err}, &stubArtifacts{err: tt.err}, stubPinger{}, stubReady(true))
			rec := doRequest(r, http.MethodPost, "/api/v1/search/semantic", `{"query":"soil"}`)
			require.Equal(t, tt.want, rec.Code)
			require.NotContains(t, rec.Body.String(), "pq:")

			rec = doRequest(r, http.MethodGet, "/api/v1/pdf/3/page/1", "")
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestPageAndInfo(t *testing.T) {
	r := setupRouter(&stubSearcher{}, &stubArtifacts{}, stubPinger{}, stubReady(true))

	rec := doRequest(r, http.MethodGet, "/api/v1/pdf/3/page/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, "png-3-7", rec.Body.String())

	for _, path := range []string{"/api/v1/pdf/abc/page/1", "/api/v1/pdf/0/page/1", "/api/v1/pdf/3/page/x"} {
		require.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, path, "").Code, path)
	}

	rec = doRequest(r, http.MethodGet, "/api/v1/material/3/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"type":"local"`)
}

func TestHealth(t *testing.T) {
	r := setupRouter(&stubSearcher{}, &stubArtifacts{}, stubPinger{}, stubReady(false))
	rec := doRequest(r, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, healthResponse{Status: "healthy", Database: "connected", Embedding: "unavailable"}, body)

	r = setupRouter(&stubSearcher{}, &stubArtifacts{}, stubPinger{err: errors.New("refused")}, stubReady(true))
	rec = doRequest(r, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
