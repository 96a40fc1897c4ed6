package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/dmarcviz/internal/models"
	"github.com/jengzang/dmarcviz/internal/service"
	"github.com/jengzang/dmarcviz/pkg/response"
)

// ImportHandler handles HTTP requests for import task history
type ImportHandler struct {
	importService *service.ImportService
}

// NewImportHandler creates a new import handler
func NewImportHandler(importService *service.ImportService) *ImportHandler {
	return &ImportHandler{
		importService: importService,
	}
}

// ListTasks handles GET /api/v1/imports
func (h *ImportHandler) ListTasks(c *gin.Context) {
	var filter models.ImportTaskFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	if filter.Limit == 0 {
		filter.Limit = defaultPageSize
	}

	tasks, err := h.importService.ListTasks(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, tasks)
}

// GetTask handles GET /api/v1/imports/:id
func (h *ImportHandler) GetTask(c *gin.Context) {
	id, ok := pathID(c, "Invalid task id")
	if !ok {
		return
	}

	task, err := h.importService.GetTask(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, task)
}
