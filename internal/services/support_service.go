package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

type supportService struct {
	repo        repositories.Repository
	logger      *slog.Logger
	validator   *validator.Validator
	publisher   events.EventPublisher
	broadcaster Broadcaster
	loc         *time.Location
}

func NewSupportService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, broadcaster Broadcaster, loc *time.Location) SupportService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &supportService{
		repo:        repo,
		logger:      logger,
		validator:   validator,
		publisher:   publisher,
		broadcaster: broadcaster,
		loc:         loc,
	}
}

// ===== ACCESS =====

func canAccessTicket(user *models.User, ticket *models.SupportTicket) bool {
	if user.Role.IsStaff() {
		return true
	}
	return user.Role == models.RoleStudent && ticket.StudentID == user.ID
}

func (s *supportService) checkAccess(user *models.User, ticket *models.SupportTicket, action string) error {
	if !canAccessTicket(user, ticket) {
		return NewPermissionError(user.ID, ticket.ID, "ticket", action, "ticket belongs to another student")
	}
	return nil
}

func requireRole(user *models.User, action string, roles ...models.UserRole) error {
	for _, role := range roles {
		if user.Role == role {
			return nil
		}
	}
	return NewPermissionError(user.ID, 0, "ticket", action, fmt.Sprintf("role %s not allowed", user.Role))
}

func (s *supportService) AuthorizeTicket(ctx context.Context, user *models.User, ticketID uint) (*models.SupportTicket, error) {
	ticket, err := s.repo.Ticket().GetByID(ctx, nil, ticketID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	if err := s.checkAccess(user, ticket, "access"); err != nil {
		return nil, err
	}
	return ticket, nil
}

// lockTicket loads the ticket with a row lock and checks the user may write to it
func lockTicket(ctx context.Context, tx repositories.Repository, user *models.User, ticketID uint, action string) (*models.SupportTicket, error) {
	ticket, err := tx.Ticket().GetByIDForUpdate(ctx, nil, ticketID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	if !canAccessTicket(user, ticket) {
		return nil, NewPermissionError(user.ID, ticket.ID, "ticket", action, "ticket belongs to another student")
	}
	return ticket, nil
}

func (s *supportService) view(m *models.SupportMessage) *MessageView {
	if m == nil {
		return nil
	}
	return &MessageView{
		ID:         m.ID,
		TicketID:   m.TicketID,
		SenderID:   m.SenderID,
		SenderRole: m.SenderRole,
		Message:    m.Message,
		FilePath:   m.FilePath,
		IsRead:     m.IsRead,
		IsEdited:   m.IsEdited,
		CreatedAt:  m.CreatedAt.In(s.loc),
		UpdatedAt:  m.UpdatedAt.In(s.loc),
	}
}

func (s *supportService) localTicket(t *models.SupportTicket) *models.SupportTicket {
	t.CreatedAt = t.CreatedAt.In(s.loc)
	t.UpdatedAt = t.UpdatedAt.In(s.loc)
	return t
}

func normalizeBody(message string, filePath *string) (string, *string, error) {
	message = strings.TrimSpace(message)
	if filePath != nil {
		trimmed := strings.TrimSpace(*filePath)
		if trimmed == "" {
			filePath = nil
		} else {
			filePath = &trimmed
		}
	}
	if message == "" && filePath == nil {
		return "", nil, ErrEmptyMessage
	}
	return message, filePath, nil
}

// appendMessage persists a message on a locked ticket. A SUPPORT reply to an OPEN ticket
// moves it to IN_PROGRESS.
func appendMessage(ctx context.Context, tx repositories.Repository, user *models.User, ticket *models.SupportTicket, body string, filePath *string) (*models.SupportMessage, bool, error) {
	if ticket.Status.IsClosed() {
		return nil, false, ErrTicketClosed
	}

	changed := false
	if ticket.Status == models.TicketOpen && user.Role == models.RoleSupport {
		var err error
		changed, err = tx.Ticket().TransitionStatus(ctx, nil, ticket.ID, models.TicketOpen, models.TicketInProgress)
		if err != nil {
			return nil, false, err
		}
	}

	message := &models.SupportMessage{
		TicketID:   ticket.ID,
		SenderID:   user.ID,
		SenderRole: user.Role,
		Message:    body,
		FilePath:   filePath,
	}
	if err := tx.Message().Create(ctx, nil, message); err != nil {
		return nil, false, err
	}

	if err := tx.Ticket().Touch(ctx, nil, ticket.ID, message.CreatedAt); err != nil {
		return nil, false, err
	}

	return message, changed, nil
}

// ===== WRITES =====

func (s *supportService) SendMessage(ctx context.Context, user *models.User, req *SendMessageRequest) (*SendResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	body, filePath, err := normalizeBody(req.Message, req.FilePath)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Sending support message", "ticket_id", req.TicketID, "sender_id", user.ID, "role", user.Role)

	result := &SendResult{}
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		ticket, err := lockTicket(ctx, tx, user, req.TicketID, "send")
		if err != nil {
			return err
		}

		message, changed, err := appendMessage(ctx, tx, user, ticket, body, filePath)
		if err != nil {
			return err
		}

		if result.Ticket, err = tx.Ticket().GetByID(ctx, nil, ticket.ID); err != nil {
			return err
		}
		result.Message = s.view(message)
		result.StatusChanged = changed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.localTicket(result.Ticket)

	s.broadcaster.EmitToRoom(TicketRoom(result.Ticket.ID), EventNewMessage, result.Message, "")
	s.refreshInboxes(ctx, result.Ticket.StudentID)
	publishEvent(ctx, s.publisher, s.logger, events.MessageSent, events.MessageSentEvent{
		TicketID:   result.Ticket.ID,
		MessageID:  result.Message.ID,
		SenderID:   user.ID,
		SenderRole: string(user.Role),
	})

	s.logger.Info("Support message sent",
		"ticket_id", result.Ticket.ID,
		"message_id", result.Message.ID,
		"status_changed", result.StatusChanged)

	return result, nil
}

func (s *supportService) CreateTicket(ctx context.Context, user *models.User, req *CreateTicketRequest, originConnID string) (*CreateTicketResult, error) {
	if err := requireRole(user, "create", models.RoleStudent); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	body, filePath, err := normalizeBody(req.Message, req.FilePath)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Creating support ticket", "student_id", user.ID)

	result := &CreateTicketResult{}
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		// Serializes concurrent creates of one student so at most one open ticket exists
		if err := tx.User().Lock(ctx, nil, user.ID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrStudentNotFound
			}
			return err
		}

		existing, found, err := tx.Ticket().FindReusableByStudent(ctx, nil, user.ID)
		if err != nil {
			return err
		}

		var ticketID uint
		if found {
			ticketID = existing.ID
			result.Reused = true
		} else {
			ticket := &models.SupportTicket{StudentID: user.ID, Status: models.TicketOpen}
			if err := tx.Ticket().Create(ctx, nil, ticket); err != nil {
				return err
			}
			ticketID = ticket.ID
		}

		ticket, err := lockTicket(ctx, tx, user, ticketID, "create")
		if err != nil {
			return err
		}

		message, _, err := appendMessage(ctx, tx, user, ticket, body, filePath)
		if err != nil {
			return err
		}

		if result.Ticket, err = tx.Ticket().GetByID(ctx, nil, ticketID); err != nil {
			return err
		}
		result.Message = s.view(message)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.localTicket(result.Ticket)

	room := TicketRoom(result.Ticket.ID)
	if originConnID != "" {
		s.broadcaster.JoinConnection(room, originConnID)
	}
	s.broadcaster.EmitToRoom(room, EventNewMessage, result.Message, "")
	s.refreshInboxes(ctx, user.ID)
	if !result.Reused {
		publishEvent(ctx, s.publisher, s.logger, events.TicketCreated, events.TicketCreatedEvent{
			TicketID:  result.Ticket.ID,
			StudentID: user.ID,
		})
	}
	publishEvent(ctx, s.publisher, s.logger, events.MessageSent, events.MessageSentEvent{
		TicketID:   result.Ticket.ID,
		MessageID:  result.Message.ID,
		SenderID:   user.ID,
		SenderRole: string(user.Role),
	})

	s.logger.Info("Support ticket created", "ticket_id", result.Ticket.ID, "reused", result.Reused)
	return result, nil
}

// changeOwnMessage loads a message the user sent on a ticket that is still writable
func changeOwnMessage(ctx context.Context, tx repositories.Repository, user *models.User, messageID uint) (*models.SupportMessage, *models.SupportTicket, error) {
	message, err := tx.Message().GetByID(ctx, nil, messageID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrMessageNotFound
		}
		return nil, nil, err
	}

	if message.SenderID != user.ID {
		return nil, nil, ErrNotMessageSender
	}

	ticket, err := tx.Ticket().GetByIDForUpdate(ctx, nil, message.TicketID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrTicketNotFound
		}
		return nil, nil, err
	}
	if ticket.Status.IsClosed() {
		return nil, nil, ErrTicketClosed
	}

	return message, ticket, nil
}

func (s *supportService) EditMessage(ctx context.Context, user *models.User, req *EditMessageRequest) (*MessageView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var (
		edited    *models.SupportMessage
		studentID uint
	)
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		message, ticket, err := changeOwnMessage(ctx, tx, user, req.MessageID)
		if err != nil {
			return err
		}

		message.Message = strings.TrimSpace(req.Message)
		message.IsEdited = true
		if err := tx.Message().Update(ctx, nil, message); err != nil {
			return err
		}

		edited = message
		studentID = ticket.StudentID
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.view(edited)
	s.broadcaster.EmitToRoom(TicketRoom(view.TicketID), EventMessageEdited, view, "")
	s.refreshInboxes(ctx, studentID)

	s.logger.Info("Support message edited", "ticket_id", view.TicketID, "message_id", view.ID)
	return view, nil
}

func (s *supportService) DeleteMessage(ctx context.Context, user *models.User, messageID uint) (*MessageView, error) {
	var (
		deleted   *models.SupportMessage
		studentID uint
	)
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		message, ticket, err := changeOwnMessage(ctx, tx, user, messageID)
		if err != nil {
			return err
		}

		if err := tx.Message().Delete(ctx, nil, message.ID); err != nil {
			return err
		}

		deleted = message
		studentID = ticket.StudentID
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.view(deleted)
	s.broadcaster.EmitToRoom(TicketRoom(view.TicketID), EventMessageDeleted, map[string]uint{
		"message_id": view.ID,
		"ticket_id":  view.TicketID,
	}, "")
	s.refreshInboxes(ctx, studentID)

	s.logger.Info("Support message deleted", "ticket_id", view.TicketID, "message_id", view.ID)
	return view, nil
}

// MarkAsRead flags the counterpart's unread messages. The caller's own messages are never touched.
func (s *supportService) MarkAsRead(ctx context.Context, user *models.User, ticketID uint) (*MarkReadResult, error) {
	ticket, err := s.AuthorizeTicket(ctx, user, ticketID)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Message().MarkRead(ctx, nil, ticket.ID, user.Role)
	if err != nil {
		return nil, err
	}

	result := &MarkReadResult{TicketID: ticket.ID, ByRole: user.Role, Updated: updated}
	s.broadcaster.EmitToRoom(TicketRoom(ticket.ID), EventMessagesRead, result, "")

	if user.Role == models.RoleStudent {
		s.pushStudentTickets(ctx, ticket.StudentID)
	} else {
		s.pushSupportInbox(ctx)
	}

	return result, nil
}

// CloseTicket is unconditional: closing a closed ticket succeeds again
func (s *supportService) CloseTicket(ctx context.Context, user *models.User, ticketID uint) (*models.SupportTicket, error) {
	if err := requireRole(user, "close", models.RoleSupport); err != nil {
		return nil, err
	}

	s.logger.Info("Closing support ticket", "ticket_id", ticketID, "user_id", user.ID)

	var closed *models.SupportTicket
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		ticket, err := lockTicket(ctx, tx, user, ticketID, "close")
		if err != nil {
			return err
		}

		if err := tx.Ticket().SetStatus(ctx, nil, ticket.ID, models.TicketClosed); err != nil {
			return err
		}

		closed, err = tx.Ticket().GetByID(ctx, nil, ticket.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.localTicket(closed)

	s.broadcaster.EmitToRoom(TicketRoom(closed.ID), EventTicketClosed, map[string]interface{}{
		"ticket_id": closed.ID,
		"status":    closed.Status,
	}, "")
	s.refreshInboxes(ctx, closed.StudentID)
	publishEvent(ctx, s.publisher, s.logger, events.TicketClosed, events.TicketClosedEvent{
		TicketID: closed.ID,
		ClosedBy: user.ID,
	})

	s.logger.Info("Support ticket closed", "ticket_id", closed.ID)
	return closed, nil
}

func (s *supportService) Typing(ctx context.Context, user *models.User, ticketID uint, originConnID string, stopped bool) error {
	ticket, err := s.AuthorizeTicket(ctx, user, ticketID)
	if err != nil {
		return err
	}

	event := EventUserTyping
	if stopped {
		event = EventUserStopTyping
	}

	s.broadcaster.EmitToRoom(TicketRoom(ticket.ID), event, map[string]interface{}{
		"ticket_id": ticket.ID,
		"user_id":   user.ID,
		"role":      user.Role,
		"username":  user.Username,
	}, originConnID)
	return nil
}

// ===== READS =====

func (s *supportService) ListMessages(ctx context.Context, user *models.User, ticketID uint) ([]*MessageView, error) {
	ticket, err := s.AuthorizeTicket(ctx, user, ticketID)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.Message().ListByTicket(ctx, nil, ticket.ID)
	if err != nil {
		return nil, err
	}

	views := make([]*MessageView, len(messages))
	for i, m := range messages {
		views[i] = s.view(m)
	}
	return views, nil
}

func (s *supportService) SupportInbox(ctx context.Context, user *models.User) ([]*TicketSummary, error) {
	if !user.Role.IsStaff() {
		return nil, NewPermissionError(user.ID, 0, "ticket", "list", "support inbox is for support staff")
	}
	return s.supportInbox(ctx)
}

func (s *supportService) StudentTickets(ctx context.Context, user *models.User) ([]*TicketSummary, error) {
	if err := requireRole(user, "list", models.RoleStudent); err != nil {
		return nil, err
	}
	return s.studentTickets(ctx, user.ID)
}

func (s *supportService) supportInbox(ctx context.Context) ([]*TicketSummary, error) {
	tickets, err := s.repo.Ticket().List(ctx, nil, repositories.TicketFilters{})
	if err != nil {
		return nil, err
	}

	// Support counts what students wrote
	student := models.RoleStudent
	return s.summarize(ctx, tickets, repositories.UnreadFilter{SenderRole: &student}, true)
}

func (s *supportService) studentTickets(ctx context.Context, studentID uint) ([]*TicketSummary, error) {
	tickets, err := s.repo.Ticket().List(ctx, nil, repositories.TicketFilters{StudentID: &studentID})
	if err != nil {
		return nil, err
	}

	student := models.RoleStudent
	return s.summarize(ctx, tickets, repositories.UnreadFilter{ExcludeRole: &student}, false)
}

// summarize builds inbox entries ordered by their latest message, newest first.
// Tickets without messages follow, newest updated_at first.
func (s *supportService) summarize(ctx context.Context, tickets []*models.SupportTicket, unread repositories.UnreadFilter, withProfiles bool) ([]*TicketSummary, error) {
	ids := make([]uint, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}

	latest, err := s.repo.Message().LatestByTickets(ctx, nil, ids)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.Message().CountUnread(ctx, nil, ids, unread)
	if err != nil {
		return nil, err
	}

	profiles := map[uint]*models.PublicProfile{}
	if withProfiles {
		studentIDs := make([]uint, 0, len(tickets))
		for _, t := range tickets {
			studentIDs = append(studentIDs, t.StudentID)
		}
		users, err := s.repo.User().GetByIDs(ctx, nil, studentIDs)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			profiles[u.ID] = u.Profile()
		}
	}

	summaries := make([]*TicketSummary, len(tickets))
	for i, t := range tickets {
		summaries[i] = &TicketSummary{
			ID:          t.ID,
			StudentID:   t.StudentID,
			Status:      t.Status,
			CreatedAt:   t.CreatedAt.In(s.loc),
			UpdatedAt:   t.UpdatedAt.In(s.loc),
			UnreadCount: counts[t.ID],
			LastMessage: s.view(latest[t.ID]),
			Student:     profiles[t.StudentID],
		}
	}

	sortInbox(summaries)
	return summaries, nil
}

func sortInbox(summaries []*TicketSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		switch {
		case a.LastMessage != nil && b.LastMessage != nil:
			if !a.LastMessage.CreatedAt.Equal(b.LastMessage.CreatedAt) {
				return a.LastMessage.CreatedAt.After(b.LastMessage.CreatedAt)
			}
			return a.LastMessage.ID > b.LastMessage.ID
		case a.LastMessage != nil:
			return true
		case b.LastMessage != nil:
			return false
		default:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
			return a.ID > b.ID
		}
	})
}

// ===== INBOX PUSHES =====

// refreshInboxes pushes fresh views to the owning student and to every support agent.
// The change is already committed, so failures are only logged.
func (s *supportService) refreshInboxes(ctx context.Context, studentID uint) {
	s.pushStudentTickets(ctx, studentID)
	s.pushSupportInbox(ctx)
}

func (s *supportService) pushStudentTickets(ctx context.Context, studentID uint) {
	tickets, err := s.studentTickets(ctx, studentID)
	if err != nil {
		s.logger.Warn("Failed to refresh student tickets", "student_id", studentID, "error", err)
		return
	}
	s.broadcaster.EmitToRoom(UserRoom(studentID), EventTicketsUpdated, tickets, "")
}

func (s *supportService) pushSupportInbox(ctx context.Context) {
	agents, err := s.repo.User().ListIDsByRole(ctx, nil, models.RoleSupport)
	if err != nil {
		s.logger.Warn("Failed to list support agents", "error", err)
		return
	}
	if len(agents) == 0 {
		return
	}

	inbox, err := s.supportInbox(ctx)
	if err != nil {
		s.logger.Warn("Failed to refresh support inbox", "error", err)
		return
	}
	for _, id := range agents {
		s.broadcaster.EmitToRoom(UserRoom(id), EventInboxUpdated, inbox, "")
	}
}
