package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/utils"
)

const maxImportBytes = 10 << 20

// ProgressionHandler serves the quiz routes of one unit type
type ProgressionHandler struct {
	BaseHandler
	unitType    models.UnitType
	progression services.ProgressionService
	questions   services.QuestionService
}

func NewProgressionHandler(
	unitType models.UnitType,
	progression services.ProgressionService,
	questions services.QuestionService,
	logger utils.Logger,
) *ProgressionHandler {
	return &ProgressionHandler{
		BaseHandler: NewBaseHandler(logger),
		unitType:    unitType,
		progression: progression,
		questions:   questions,
	}
}

// Sample draws a random quiz for the unit
// @Summary Sample quiz questions
// @Tags progression
// @Produce json
// @Param unit_id path uint true "Lesson or module ID"
// @Success 200 {object} Response{result=services.SampleResponse}
// @Failure 404 {object} Response
// @Failure 422 {object} Response "Not enough questions"
// @Router /lesson-tests/{unit_id}/sample [get]
func (h *ProgressionHandler) Sample(c *gin.Context) {
	unitID := h.parseIDParam(c, "unit_id")
	if unitID == 0 {
		return
	}

	h.LogRequest(c, "Sampling quiz", "unit_type", h.unitType, "unit_id", unitID)

	sample, err := h.progression.Sample(c.Request.Context(), h.unitType, unitID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "questions sampled", sample)
}

// Grade scores an answer list without recording progress
// @Summary Grade answers
// @Tags progression
// @Accept json
// @Produce json
// @Param unit_id path uint true "Lesson or module ID"
// @Success 200 {object} Response{result=services.GradeResult}
// @Failure 400 {object} Response
// @Router /lesson-tests/{unit_id}/grade [post]
func (h *ProgressionHandler) Grade(c *gin.Context) {
	unitID := h.parseIDParam(c, "unit_id")
	if unitID == 0 {
		return
	}

	var req services.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.progression.Grade(c.Request.Context(), h.unitType, unitID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "answers graded", result)
}

// Submit grades the caller's answers and records the result
func (h *ProgressionHandler) Submit(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}
	unitID := h.parseIDParam(c, "unit_id")
	if unitID == 0 {
		return
	}

	var req services.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	h.LogRequest(c, "Submitting quiz", "unit_type", h.unitType, "unit_id", unitID, "student_id", user.ID)

	result, err := h.progression.Submit(c.Request.Context(), h.unitType, unitID, user.ID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "quiz submitted", result)
}

// Finish records a client supplied score. Students may only finish for themselves.
// @Summary Finish unit
// @Tags progression
// @Accept json
// @Produce json
// @Param unit_id path uint true "Lesson or module ID"
// @Success 200 {object} Response{result=services.FinishResult}
// @Failure 403 {object} Response
// @Failure 409 {object} Response "Already advanced today"
// @Router /lesson-tests/{unit_id}/finish [post]
func (h *ProgressionHandler) Finish(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}
	unitID := h.parseIDParam(c, "unit_id")
	if unitID == 0 {
		return
	}

	var req services.FinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	if req.StudentID == 0 {
		req.StudentID = user.ID
	}
	if user.Role == models.RoleStudent && req.StudentID != user.ID {
		h.RespondWithError(c, http.StatusForbidden, "students can only finish their own units")
		return
	}

	result, err := h.progression.Finish(c.Request.Context(), h.unitType, unitID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "unit finished", result)
}

func (h *ProgressionHandler) CreateQuestion(c *gin.Context) {
	unitID := h.parseIDParam(c, "unit_id")
	if unitID == 0 {
		return
	}

	var req services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	question, err := h.questions.Create(c.Request.Context(), h.unitType, unitID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusCreated, "question created", question)
}

// ImportQuestions reads an .xlsx workbook from the "file" form field
func (h *ProgressionHandler) ImportQuestions(c *gin.Context) {
	unitID := h.parseIDParam(c, "unit_id")
	if unitID == 0 {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	header, err := c.FormFile("file")
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "file is required")
		return
	}

	file, err := header.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "failed to read file")
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing questions", "unit_type", h.unitType, "unit_id", unitID, "filename", header.Filename)

	result, err := h.questions.Import(c.Request.Context(), h.unitType, unitID, file)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "questions imported", result)
}
