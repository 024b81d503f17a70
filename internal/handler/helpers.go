package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/livinglib/internal/middleware"
	"github.com/xxxsen/livinglib/internal/pkg/errcode"
	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
	"github.com/xxxsen/livinglib/internal/pkg/response"
)

// handleError maps a service error to a status and a generic message. The
// detailed error only goes to the log.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		logger.Info("request rejected")
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrNotFound):
		logger.Info("resource not found")
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrForbidden):
		logger.Info("resource not accessible")
		response.Error(c, http.StatusForbidden, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrUnavailable):
		logger.Warn("dependency unavailable")
		response.Error(c, http.StatusServiceUnavailable, errcode.ErrUnavailable, "service unavailable")
	case errors.Is(err, appErr.ErrUpstream):
		logger.Error("upstream failure")
		response.Error(c, http.StatusBadGateway, errcode.ErrUpstream, "upstream failure")
	default:
		logger.Error("request failed")
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid "+name)
		return 0, false
	}
	return id, true
}
