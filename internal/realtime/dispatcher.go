package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SAP-F-2025/learning-service/internal/metrics"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/services"
)

type handlerFunc func(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error)

// route is one inbound event. An empty roles list admits any authenticated user.
type route struct {
	roles  []models.UserRole
	handle handlerFunc
}

func (r route) allow(user *models.User, event string) error {
	if len(r.roles) == 0 {
		return nil
	}
	for _, role := range r.roles {
		if user.Role == role {
			return nil
		}
	}
	return services.NewPermissionError(user.ID, 0, "event", event, fmt.Sprintf("role %s not allowed", user.Role))
}

func recordEvent(event string, err error) {
	metrics.RecordWSEvent(event, err)
}

func (s *Server) buildRoutes() map[string]route {
	students := []models.UserRole{models.RoleStudent}
	staff := []models.UserRole{models.RoleSupport, models.RoleAdmin}
	support := []models.UserRole{models.RoleSupport}

	return map[string]route{
		EventJoinTicket:        {handle: s.joinTicket},
		EventLeaveTicket:       {handle: s.leaveTicket},
		EventJoinUserRoom:      {handle: s.joinUserRoom},
		EventSendMessage:       {handle: s.sendMessage},
		EventEditMessage:       {handle: s.editMessage},
		EventDeleteMessage:     {handle: s.deleteMessage},
		EventMarkAsRead:        {handle: s.markAsRead},
		EventTyping:            {handle: s.typing(false)},
		EventStopTyping:        {handle: s.typing(true)},
		EventGetMessages:       {handle: s.getMessages},
		EventCreateTicket:      {roles: students, handle: s.createTicket},
		EventGetStudentTickets: {roles: students, handle: s.getStudentTickets},
		EventGetSupportInbox:   {roles: staff, handle: s.getSupportInbox},
		EventCloseTicket:       {roles: support, handle: s.closeTicket},
	}
}

// join adds the connection to a ticket room and confirms to the caller only
func (s *Server) join(c *Connection, ticketID uint) string {
	room := services.TicketRoom(ticketID)
	s.hub.Join(room, c)
	c.Emit(EventJoinedTicket, map[string]interface{}{
		"ticket_id": ticketID,
		"room":      room,
		"user_id":   c.User().ID,
		"role":      c.User().Role,
	})
	return room
}

func (s *Server) joinTicket(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error) {
	ticketID, err := decodeTicketID(data)
	if err != nil {
		return nil, err
	}

	if _, err := s.support.AuthorizeTicket(ctx, c.User(), ticketID); err != nil {
		return nil, err
	}

	room := s.join(c, ticketID)
	return map[string]interface{}{"ticket_id": ticketID, "room": room}, nil
}

func (s *Server) leaveTicket(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error) {
	ticketID, err := decodeTicketID(data)
	if err != nil {
		return nil, err
	}

	left := s.hub.Leave(services.TicketRoom(ticketID), c)
	return map[string]interface{}{"ticket_id": ticketID, "left": left}, nil
}

func (s *Server) joinUserRoom(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error) {
	room := services.UserRoom(c.User().ID)
	s.hub.Join(room, c)
	c.Emit(EventJoinedUserRoom, map[string]interface{}{
		"room":    room,
		"user_id": c.User().ID,
	})
	return map[string]interface{}{"room": room}, nil
}

func (s *Server) sendMessage(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error) {
	var req services.SendMessageRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}

	result, err := s.support.SendMessage(ctx, c.User(), &req)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"message_id":     result.Message.ID,
		"message":        result.Message,
		"status_changed": result.StatusChanged,
	}, nil
}

func (s *Server) editMessage(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error) {
	var req services.EditMessageRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}

	view, err := s.support.EditMessage(ctx, c.User(), &req)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"message": view}, nil
}

func (s *Server) deleteMessage(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error) {
	messageID, err := decodeMessageID(data)
	if err != nil {
		return nil, err
	}

	view, err := s.support.DeleteMessage(ctx, c.User(), messageID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"message_id": view.ID, "ticket_id": view.TicketID}, nil
}

func (s *Server) markAsRead(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error) {
	ticketID, err := decodeTicketID(data)
	if err != nil {
		return nil, err
	}

	result, err := s.support.MarkAsRead(ctx, c.User(), ticketID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ticket_id": result.TicketID, "updated": result.Updated}, nil
}

func (s *Server) typing(stopped bool) handlerFunc {
	return func(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error) {
		ticketID, err := decodeTicketID(data)
		if err != nil {
			return nil, err
		}
		return nil, s.support.Typing(ctx, c.User(), ticketID, c.ID(), stopped)
	}
}

func (s *Server) getMessages(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error) {
	ticketID, err := decodeTicketID(data)
	if err != nil {
		return nil, err
	}

	messages, err := s.support.ListMessages(ctx, c.User(), ticketID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ticket_id": ticketID, "messages": messages}, nil
}

// createTicket joins the creator to the ticket room before the first message goes out
func (s *Server) createTicket(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error) {
	var req services.CreateTicketRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}

	result, err := s.support.CreateTicket(ctx, c.User(), &req, c.ID())
	if err != nil {
		return nil, err
	}

	s.join(c, result.Ticket.ID)
	return map[string]interface{}{
		"ticket":  result.Ticket,
		"message": result.Message,
		"reused":  result.Reused,
	}, nil
}

func (s *Server) getStudentTickets(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error) {
	tickets, err := s.support.StudentTickets(ctx, c.User())
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"tickets": tickets}, nil
}

func (s *Server) getSupportInbox(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error) {
	tickets, err := s.support.SupportInbox(ctx, c.User())
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"tickets": tickets}, nil
}

func (s *Server) closeTicket(ctx context.Context, c *Connection, data json.RawMessage) (map[string]interface{}, error) {
	ticketID, err := decodeTicketID(data)
	if err != nil {
		return nil, err
	}

	ticket, err := s.support.CloseTicket(ctx, c.User(), ticketID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ticket": ticket}, nil
}
