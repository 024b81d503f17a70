package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/livinglib/internal/model"
	"github.com/xxxsen/livinglib/internal/pkg/errcode"
	"github.com/xxxsen/livinglib/internal/pkg/response"
)

type Searcher interface {
	Search(ctx context.Context, req *model.SearchRequest) ([]model.SearchResult, error)
}

type SearchHandler struct {
	search Searcher
}

func NewSearchHandler(search Searcher) *SearchHandler {
	return &SearchHandler{search: search}
}

type semanticSearchRequest struct {
	Query   string `json:"query"`
	Topic   string `json:"topic"`
	YearMin *int   `json:"year_min"`
	YearMax *int   `json:"year_max"`
	Limit   int    `json:"limit"`
}

type semanticSearchResponse struct {
	Query   string               `json:"query"`
	Results []model.SearchResult `json:"results"`
}

func (h *SearchHandler) Semantic(c *gin.Context) {
	var req semanticSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	results, err := h.search.Search(c.Request.Context(), &model.SearchRequest{
		Query: req.Query,
		Filter: model.SearchFilter{
			Topic:   req.Topic,
			YearMin: req.YearMin,
			YearMax: req.YearMax,
		},
		Limit: req.Limit,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, semanticSearchResponse{Query: req.Query, Results: results})
}
