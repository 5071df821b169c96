package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/utils"
)

// SupportHandler exposes the ticket views over HTTP. Role and ownership checks live in the service.
type SupportHandler struct {
	BaseHandler
	service services.SupportService
}

func NewSupportHandler(service services.SupportService, logger utils.Logger) *SupportHandler {
	return &SupportHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

func (h *SupportHandler) StudentTickets(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	tickets, err := h.service.StudentTickets(c.Request.Context(), user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "tickets", tickets)
}

func (h *SupportHandler) Inbox(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	tickets, err := h.service.SupportInbox(c.Request.Context(), user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "inbox", tickets)
}

func (h *SupportHandler) CreateTicket(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	var req services.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.service.CreateTicket(c.Request.Context(), user, &req, "")
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	h.Respond(c, status, "ticket", result)
}

func (h *SupportHandler) Messages(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	messages, err := h.service.ListMessages(c.Request.Context(), user, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "messages", messages)
}

// SendMessage posts a message like the websocket send_message event. The ticket comes from the path.
func (h *SupportHandler) SendMessage(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	req.TicketID = id

	result, err := h.service.SendMessage(c.Request.Context(), user, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusCreated, "message sent", result)
}

// Close closes a ticket and notifies its room like the websocket close_ticket event
func (h *SupportHandler) Close(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Closing ticket", "ticket_id", id, "user_id", user.ID)

	ticket, err := h.service.CloseTicket(c.Request.Context(), user, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "ticket closed", ticket)
}
