package handler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/dmarcviz/internal/export"
	"github.com/jengzang/dmarcviz/internal/models"
	"github.com/jengzang/dmarcviz/internal/service"
	"github.com/jengzang/dmarcviz/pkg/response"
)

// ExportHandler handles file downloads of view data
type ExportHandler struct {
	analysisService *service.AnalysisService
}

// NewExportHandler creates a new export handler
func NewExportHandler(analysisService *service.AnalysisService) *ExportHandler {
	return &ExportHandler{
		analysisService: analysisService,
	}
}

// ExportTable handles GET /api/v1/views/:id/export?format=csv|xlsx
func (h *ExportHandler) ExportTable(c *gin.Context) {
	id, ok := viewID(c)
	if !ok {
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", export.FormatCSV))
	if format != export.FormatCSV && format != export.FormatXLSX {
		response.BadRequest(c, fmt.Sprintf("Unsupported format %q", format))
		return
	}

	var filter models.TableFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	// Exports are never paged
	filter.Offset, filter.Limit = 0, 0

	page, err := h.analysisService.GetTableData(c.Request.Context(), id, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteTable(&buf, format, page.Rows); err != nil {
		writeError(c, err)
		return
	}

	send(c, fmt.Sprintf("view-%d.%s", id, format), format, buf.Bytes())
}

// ExportLine handles GET /api/v1/views/:id/line/export?format=parquet
func (h *ExportHandler) ExportLine(c *gin.Context) {
	id, ok := viewID(c)
	if !ok {
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", export.FormatParquet))
	if format != export.FormatParquet {
		response.BadRequest(c, fmt.Sprintf("Unsupported format %q", format))
		return
	}

	data, err := h.analysisService.GetLineData(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteParquet(&buf, data.DataSets); err != nil {
		writeError(c, err)
		return
	}

	send(c, fmt.Sprintf("view-%d-line.%s", id, format), format, buf.Bytes())
}

// send writes a buffered file as an attachment
func send(c *gin.Context, filename, format string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(200, export.ContentTypes[format], body)
}
