package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/dmarcviz/internal/models"
	"github.com/jengzang/dmarcviz/internal/service"
	"github.com/jengzang/dmarcviz/pkg/response"
)

// ViewHandler handles HTTP requests for saved views
type ViewHandler struct {
	viewService *service.ViewService
}

// NewViewHandler creates a new view handler
func NewViewHandler(viewService *service.ViewService) *ViewHandler {
	return &ViewHandler{
		viewService: viewService,
	}
}

// ListViews handles GET /api/v1/views?enabled=true
func (h *ViewHandler) ListViews(c *gin.Context) {
	enabledOnly := false
	if v := c.Query("enabled"); v != "" {
		var err error
		if enabledOnly, err = strconv.ParseBool(v); err != nil {
			response.BadRequest(c, "Invalid enabled flag")
			return
		}
	}

	views, err := h.viewService.List(c.Request.Context(), enabledOnly)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, views)
}

// GetView handles GET /api/v1/views/:id
func (h *ViewHandler) GetView(c *gin.Context) {
	id, ok := viewID(c)
	if !ok {
		return
	}

	view, err := h.viewService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, view)
}

// CreateView handles POST /api/v1/views. Views are enabled unless the body says otherwise.
func (h *ViewHandler) CreateView(c *gin.Context) {
	view := models.View{Enabled: true}
	if err := c.ShouldBindJSON(&view); err != nil {
		response.BadRequest(c, "Invalid view: "+err.Error())
		return
	}

	created, err := h.viewService.Create(c.Request.Context(), &view)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, created)
}

// UpdateView handles PUT /api/v1/views/:id
func (h *ViewHandler) UpdateView(c *gin.Context) {
	id, ok := viewID(c)
	if !ok {
		return
	}

	view := models.View{Enabled: true}
	if err := c.ShouldBindJSON(&view); err != nil {
		response.BadRequest(c, "Invalid view: "+err.Error())
		return
	}

	updated, err := h.viewService.Update(c.Request.Context(), id, &view)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, updated)
}

// CloneView handles POST /api/v1/views/:id/clone
func (h *ViewHandler) CloneView(c *gin.Context) {
	id, ok := viewID(c)
	if !ok {
		return
	}

	clone, err := h.viewService.Clone(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, clone)
}

// OrderViews handles PUT /api/v1/views/order
func (h *ViewHandler) OrderViews(c *gin.Context) {
	var order models.ViewOrder
	if err := c.ShouldBindJSON(&order); err != nil {
		response.BadRequest(c, "Invalid order: "+err.Error())
		return
	}

	if err := h.viewService.Order(c.Request.Context(), order.IDs); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, order)
}

// Choices handles GET /api/v1/choices?type=in&kind=reporter&q=goo
func (h *ViewHandler) Choices(c *gin.Context) {
	var q models.ChoiceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	values, err := h.viewService.Choices(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, values)
}

// DeleteView handles DELETE /api/v1/views/:id
func (h *ViewHandler) DeleteView(c *gin.Context) {
	id, ok := viewID(c)
	if !ok {
		return
	}

	if err := h.viewService.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"id": id})
}
