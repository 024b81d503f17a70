package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// ReadinessReporter reports whether search can be served, retrying a failed
// backend when due.
type ReadinessReporter interface {
	Refresh(ctx context.Context) bool
}

type HealthHandler struct {
	db       Pinger
	embedder ReadinessReporter
}

func NewHealthHandler(db Pinger, embedder ReadinessReporter) *HealthHandler {
	return &HealthHandler{db: db, embedder: embedder}
}

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Embedding string `json:"embedding"`
}

// Check reports database connectivity and embedding readiness. Only a
// database failure makes the service unhealthy; search alone depends on the
// embedder.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	resp := healthResponse{Status: "healthy", Database: "connected", Embedding: "ready"}
	status := http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		logutil.GetLogger(ctx).Error("health check: database ping failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Database = "disconnected"
		status = http.StatusServiceUnavailable
	}
	if h.embedder == nil || !h.embedder.Refresh(c.Request.Context()) {
		resp.Embedding = "unavailable"
	}
	c.JSON(status, resp)
}
