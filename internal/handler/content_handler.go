package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fluentia/tutor-admin-api/internal/models"
	"github.com/fluentia/tutor-admin-api/internal/service"
	appErrors "github.com/fluentia/tutor-admin-api/pkg/errors"
	"github.com/fluentia/tutor-admin-api/pkg/response"
)

// ContentHandler exposes curriculum content endpoints.
type ContentHandler struct {
	contents *service.ContentService
}

// NewContentHandler constructs ContentHandler.
func NewContentHandler(contents *service.ContentService) *ContentHandler {
	return &ContentHandler{contents: contents}
}

// List godoc
// @Summary List contents
// @Tags Contents
// @Produce json
// @Param module query string false "Filter by module"
// @Param isActive query bool false "Filter by active state"
// @Param search query string false "Search by title or description"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /contents [get]
func (h *ContentHandler) List(c *gin.Context) {
	var filter models.ContentFilter
	if module := c.Query("module"); module != "" {
		filter.Module = models.ClassLevel(strings.ToUpper(module))
	}
	if active := c.Query("isActive"); active != "" {
		if active == "true" {
			v := true
			filter.IsActive = &v
		} else if active == "false" {
			v := false
			filter.IsActive = &v
		}
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil {
		filter.PageSize = size
	}

	contents, pagination, err := h.contents.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contents, pagination)
}

// Get godoc
// @Summary Get content detail with recent lessons
// @Tags Contents
// @Produce json
// @Param id path string true "Content ID"
// @Success 200 {object} response.Envelope
// @Router /contents/{id} [get]
func (h *ContentHandler) Get(c *gin.Context) {
	content, err := h.contents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, nil)
}

// Create godoc
// @Summary Create content
// @Tags Contents
// @Accept json
// @Produce json
// @Param payload body service.CreateContentRequest true "Content payload"
// @Success 201 {object} response.Envelope
// @Router /contents [post]
func (h *ContentHandler) Create(c *gin.Context) {
	var req service.CreateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	content, err := h.contents.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, content)
}

// Update godoc
// @Summary Update content
// @Tags Contents
// @Accept json
// @Produce json
// @Param id path string true "Content ID"
// @Param payload body service.UpdateContentRequest true "Content payload"
// @Success 200 {object} response.Envelope
// @Router /contents/{id} [put]
func (h *ContentHandler) Update(c *gin.Context) {
	var req service.UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	content, err := h.contents.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, nil)
}

// Delete godoc
// @Summary Delete content
// @Tags Contents
// @Param id path string true "Content ID"
// @Success 204
// @Router /contents/{id} [delete]
func (h *ContentHandler) Delete(c *gin.Context) {
	if err := h.contents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ByModule godoc
// @Summary List a module's active contents in order
// @Tags Contents
// @Produce json
// @Param module path string true "Module"
// @Success 200 {object} response.Envelope
// @Router /contents/module/{module} [get]
func (h *ContentHandler) ByModule(c *gin.Context) {
	module := models.ClassLevel(strings.ToUpper(c.Param("module")))
	contents, err := h.contents.ListByModule(c.Request.Context(), module)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contents, nil)
}
