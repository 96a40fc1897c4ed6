package handler

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/dmarcviz/internal/auth"
	"github.com/jengzang/dmarcviz/internal/colorscale"
	"github.com/jengzang/dmarcviz/internal/export"
	"github.com/jengzang/dmarcviz/internal/repository"
	"github.com/jengzang/dmarcviz/internal/series"
	"github.com/jengzang/dmarcviz/internal/service"
	"github.com/jengzang/dmarcviz/pkg/response"
)

// writeError maps service errors to HTTP statuses
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrNoDateRange),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, colorscale.ErrInvalidColor),
		errors.Is(err, series.ErrInvalidRange):
		response.BadRequest(c, err.Error())
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		_ = c.Error(err)
		response.InternalError(c, "Internal server error")
	}
}

// viewID parses the :id path parameter of view routes
func viewID(c *gin.Context) (int64, bool) {
	return pathID(c, "Invalid view id")
}

// pathID parses a positive :id path parameter, answering 400 with message otherwise
func pathID(c *gin.Context, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		response.BadRequest(c, message)
		return 0, false
	}
	return id, true
}
