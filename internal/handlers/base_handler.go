package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/utils"
)

// Response is the envelope of every JSON reply
type Response struct {
	Message    string      `json:"message"`
	Result     interface{} `json:"result"`
	StatusCode int         `json:"status_code"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, msg string, err error, args ...any) {
	utils.GetLogger(c, h.logger).Error(msg, append(args, "error", err)...)
}

func (h *BaseHandler) Respond(c *gin.Context, status int, message string, result interface{}) {
	c.JSON(status, Response{Message: message, Result: result, StatusCode: status})
}

func (h *BaseHandler) RespondWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Message: message, StatusCode: status})
}

// parseIDParam reads a positive id path parameter. It writes a 400 and returns 0 when invalid.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		h.RespondWithError(c, http.StatusBadRequest, "invalid "+name)
		return 0
	}
	return uint(id)
}

// currentUser returns the user set by the auth middleware. It writes a 401 when absent.
func (h *BaseHandler) currentUser(c *gin.Context) *models.User {
	if user, ok := CurrentUser(c); ok {
		return user
	}
	h.RespondWithError(c, http.StatusUnauthorized, "user not authenticated")
	return nil
}

// handleServiceError maps service errors to status codes
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.AbortWithStatusJSON(http.StatusBadRequest, Response{
			Message:    "validation failed",
			Result:     validationErrors,
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	status := http.StatusInternalServerError
	switch services.ErrorKind(err) {
	case services.CodeNotFound:
		status = http.StatusNotFound
	case services.CodePermissionDenied:
		status = http.StatusForbidden
	case services.CodeInvalidInput:
		status = http.StatusBadRequest
	case services.CodeConflict:
		status = http.StatusConflict
	case services.CodeAuthFailure:
		status = http.StatusUnauthorized
	case services.CodeInsufficientData:
		status = http.StatusUnprocessableEntity
	default:
		h.LogError(c, "Request failed", err, "path", c.FullPath())
	}

	h.RespondWithError(c, status, services.PublicMessage(err))
}
