package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/utils"
)

type CatalogHandler struct {
	BaseHandler
	service services.CatalogService
}

func NewCatalogHandler(service services.CatalogService, logger utils.Logger) *CatalogHandler {
	return &CatalogHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// GetLesson returns a lesson with the caller's quiz progress
// @Summary Get lesson
// @Tags catalog
// @Produce json
// @Param id path uint true "Lesson ID"
// @Success 200 {object} Response{result=services.LessonResponse}
// @Failure 409 {object} Response "Already advanced today"
// @Router /lessons/{id} [get]
func (h *CatalogHandler) GetLesson(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	lesson, err := h.service.GetLesson(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "lesson", lesson)
}

func (h *CatalogHandler) ListModuleLessons(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	lessons, err := h.service.ListModuleLessons(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "lessons", lessons)
}

// ModuleOverview lists modules with their open and passed flags for the calling student
func (h *CatalogHandler) ModuleOverview(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	overview, err := h.service.ModuleOverview(c.Request.Context(), user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "module tests", overview)
}
