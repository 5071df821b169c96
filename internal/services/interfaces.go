package services

import (
	"context"
	"io"
	"time"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use validator request types
type CreateQuestionRequest = validator.QuestionCreateRequest
type GradeRequest = validator.GradeRequest
type FinishRequest = validator.FinishRequest

type SendMessageRequest = validator.SendMessageRequest
type CreateTicketRequest = validator.CreateTicketRequest
type EditMessageRequest = validator.EditMessageRequest

type SampleResponse struct {
	UnitType  models.UnitType       `json:"unit_type"`
	UnitID    uint                  `json:"unit_id"`
	Questions []models.QuestionView `json:"questions"`
}

type GradeResult struct {
	Total        int  `json:"total"`
	CorrectCount int  `json:"correct_count"`
	Passed       bool `json:"passed"`
}

type FinishResult struct {
	UnitType         models.UnitType  `json:"unit_type"`
	UnitID           uint             `json:"unit_id"`
	StudentID        uint             `json:"student_id"`
	Progress         *models.Progress `json:"progress"`
	AlreadyCompleted bool             `json:"already_completed"`
	Passed           bool             `json:"passed"`
	NextUnitID       *uint            `json:"next_unit_id,omitempty"`
	Unlocked         bool             `json:"unlocked"`
}

type SubmitResult struct {
	Grade  *GradeResult  `json:"grade"`
	Finish *FinishResult `json:"finish"`
}

type ImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

type LessonResponse struct {
	*models.Lesson
	Progress *models.Progress `json:"lesson_test_progress"`
}

type ModuleOverviewItem struct {
	Module   *models.CourseModule `json:"module"`
	IsOpen   bool                 `json:"is_open"`
	IsPassed bool                 `json:"is_passed"`
}

// ===== SUPPORT DTOs =====

// MessageView is a message with timestamps rendered in the service time zone
type MessageView struct {
	ID         uint            `json:"id"`
	TicketID   uint            `json:"ticket_id"`
	SenderID   uint            `json:"sender_id"`
	SenderRole models.UserRole `json:"sender_role"`
	Message    string          `json:"message"`
	FilePath   *string         `json:"file_path"`
	IsRead     bool            `json:"is_read"`
	IsEdited   bool            `json:"is_edited"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TicketSummary is one inbox entry
type TicketSummary struct {
	ID          uint                  `json:"id"`
	StudentID   uint                  `json:"student_id"`
	Status      models.TicketStatus   `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	UnreadCount int64                 `json:"unread_count"`
	LastMessage *MessageView          `json:"last_message"`
	Student     *models.PublicProfile `json:"student,omitempty"`
}

type SendResult struct {
	Ticket  *models.SupportTicket `json:"ticket"`
	Message *MessageView          `json:"message"`
	// StatusChanged is set when this message moved the ticket to IN_PROGRESS
	StatusChanged bool `json:"status_changed"`
}

type CreateTicketResult struct {
	Ticket  *models.SupportTicket `json:"ticket"`
	Message *MessageView          `json:"message"`
	Reused  bool                  `json:"reused"`
}

type MarkReadResult struct {
	TicketID uint            `json:"ticket_id"`
	ByRole   models.UserRole `json:"by_role"`
	Updated  int64           `json:"updated"`
}

// ===== SERVICE INTERFACES =====

// ProgressionService grades quizzes and advances students through lessons and modules
type ProgressionService interface {
	Sample(ctx context.Context, unitType models.UnitType, unitID uint) (*SampleResponse, error)
	Grade(ctx context.Context, unitType models.UnitType, unitID uint, req *GradeRequest) (*GradeResult, error)
	Finish(ctx context.Context, unitType models.UnitType, unitID uint, req *FinishRequest) (*FinishResult, error)
	// Submit grades the answers and finishes the unit with the computed score
	Submit(ctx context.Context, unitType models.UnitType, unitID, studentID uint, req *GradeRequest) (*SubmitResult, error)
	Policy(unitType models.UnitType) (UnitPolicy, error)
}

type QuestionService interface {
	Create(ctx context.Context, unitType models.UnitType, unitID uint, req *CreateQuestionRequest) (*models.Question, error)
	Import(ctx context.Context, unitType models.UnitType, unitID uint, r io.Reader) (*ImportResult, error)
}

// CatalogService serves lesson content behind the daily advancement gate
type CatalogService interface {
	GetLesson(ctx context.Context, lessonID uint, viewer *models.User) (*LessonResponse, error)
	ListModuleLessons(ctx context.Context, moduleID uint, viewer *models.User) ([]*LessonResponse, error)
	ModuleOverview(ctx context.Context, student *models.User) ([]*ModuleOverviewItem, error)
}

// SupportService persists support chat state and fans changes out through a Broadcaster
type SupportService interface {
	// AuthorizeTicket loads a ticket the user may read or write
	AuthorizeTicket(ctx context.Context, user *models.User, ticketID uint) (*models.SupportTicket, error)

	// CreateTicket joins originConnID, when set, to the ticket room before the first message is broadcast
	CreateTicket(ctx context.Context, user *models.User, req *CreateTicketRequest, originConnID string) (*CreateTicketResult, error)
	SendMessage(ctx context.Context, user *models.User, req *SendMessageRequest) (*SendResult, error)
	EditMessage(ctx context.Context, user *models.User, req *EditMessageRequest) (*MessageView, error)
	DeleteMessage(ctx context.Context, user *models.User, messageID uint) (*MessageView, error)
	MarkAsRead(ctx context.Context, user *models.User, ticketID uint) (*MarkReadResult, error)
	CloseTicket(ctx context.Context, user *models.User, ticketID uint) (*models.SupportTicket, error)

	ListMessages(ctx context.Context, user *models.User, ticketID uint) ([]*MessageView, error)
	SupportInbox(ctx context.Context, user *models.User) ([]*TicketSummary, error)
	StudentTickets(ctx context.Context, user *models.User) ([]*TicketSummary, error)

	// Typing relays an ephemeral indicator to the ticket room except the origin connection
	Typing(ctx context.Context, user *models.User, ticketID uint, originConnID string, stopped bool) error
}

type ServiceManager interface {
	Progression() ProgressionService
	Question() QuestionService
	Catalog() CatalogService
	Support() SupportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
