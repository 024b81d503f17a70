package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/livinglib/internal/model"
	"github.com/xxxsen/livinglib/internal/pkg/errcode"
	"github.com/xxxsen/livinglib/internal/pkg/response"
)

type Artifacts interface {
	RenderPage(ctx context.Context, materialID int64, page int) ([]byte, error)
	Info(ctx context.Context, materialID int64) (*model.MaterialInfo, error)
}

type MaterialHandler struct {
	artifacts Artifacts
}

func NewMaterialHandler(artifacts Artifacts) *MaterialHandler {
	return &MaterialHandler{artifacts: artifacts}
}

// Page streams one rendered page as PNG.
func (h *MaterialHandler) Page(c *gin.Context) {
	materialID, ok := parseIDParam(c, "material_id")
	if !ok {
		return
	}
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid page")
		return
	}
	data, err := h.artifacts.RenderPage(c.Request.Context(), materialID, page)
	if err != nil {
		handleError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", data)
}

func (h *MaterialHandler) Info(c *gin.Context) {
	materialID, ok := parseIDParam(c, "material_id")
	if !ok {
		return
	}
	info, err := h.artifacts.Info(c.Request.Context(), materialID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, info)
}
