package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/dmarcviz/internal/models"
	"github.com/jengzang/dmarcviz/internal/service"
	"github.com/jengzang/dmarcviz/pkg/response"
)

// AnalysisHandler handles HTTP requests for chart, map and table data
type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
	}
}

// GetOverview handles GET /api/v1/overview?type=in|out
func (h *AnalysisHandler) GetOverview(c *gin.Context) {
	reportType := c.DefaultQuery("type", models.ReportTypeIncoming)

	overview, err := h.analysisService.GetOverview(c.Request.Context(), reportType)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, overview)
}

// GetLineData handles GET /api/v1/views/:id/line
func (h *AnalysisHandler) GetLineData(c *gin.Context) {
	id, ok := viewID(c)
	if !ok {
		return
	}

	data, err := h.analysisService.GetLineData(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, data)
}

// GetMapData handles GET /api/v1/views/:id/map
func (h *AnalysisHandler) GetMapData(c *gin.Context) {
	id, ok := viewID(c)
	if !ok {
		return
	}

	data, err := h.analysisService.GetMapData(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, data)
}

// GetTableData handles GET /api/v1/views/:id/table
func (h *AnalysisHandler) GetTableData(c *gin.Context) {
	id, ok := viewID(c)
	if !ok {
		return
	}

	var filter models.TableFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	if filter.Limit == 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}

	page, err := h.analysisService.GetTableData(c.Request.Context(), id, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, page)
}

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)
