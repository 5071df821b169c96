package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"gorm.io/gorm"
)

// ===== SHARED FILTER STRUCTS =====

type TicketFilters struct {
	StudentID *uint                `json:"student_id"`
	Status    *models.TicketStatus `json:"status"`
}

// UnreadFilter selects which senders count as unread for a viewer.
// SenderRole keeps only that role, ExcludeRole drops that role.
type UnreadFilter struct {
	SenderRole  *models.UserRole
	ExcludeRole *models.UserRole
}

// ===== PROGRESSION =====

// UnitRepository covers one unit type (lessons or modules): the unit tree, its
// questions and per-student progress rows.
type UnitRepository interface {
	Type() models.UnitType

	GetUnit(ctx context.Context, tx *gorm.DB, id uint) (*models.Unit, error)
	// GetNextUnit returns the active sibling whose order is unit.Order+1 in the same parent.
	GetNextUnit(ctx context.Context, tx *gorm.DB, unit *models.Unit) (*models.Unit, error)

	// Questions
	CreateQuestions(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	ListQuestionIDs(ctx context.Context, tx *gorm.DB, unitID uint) ([]uint, error)
	GetQuestionsByIDs(ctx context.Context, tx *gorm.DB, unitID uint, ids []uint) ([]models.Question, error)

	// Progress
	GetProgress(ctx context.Context, tx *gorm.DB, studentID, unitID uint) (*models.Progress, error)
	GetProgressForUpdate(ctx context.Context, tx *gorm.DB, studentID, unitID uint) (*models.Progress, error)
	// EnsureProgress inserts an empty progress row unless one already exists.
	EnsureProgress(ctx context.Context, tx *gorm.DB, studentID, unitID uint) (bool, error)
	UpdateProgress(ctx context.Context, tx *gorm.DB, progress *models.Progress) error
	ListProgress(ctx context.Context, tx *gorm.DB, studentID uint, unitIDs []uint) (map[uint]*models.Progress, error)
}

// AdvancementRepository stores the per-day advancement markers of lesson progression.
type AdvancementRepository interface {
	Exists(ctx context.Context, tx *gorm.DB, studentID uint, day time.Time) (bool, error)
	Record(ctx context.Context, tx *gorm.DB, studentID uint, day time.Time) (bool, error)
	DeleteBefore(ctx context.Context, tx *gorm.DB, day time.Time) (int64, error)
}

// CatalogRepository reads lessons and modules for student-facing views.
type CatalogRepository interface {
	GetLesson(ctx context.Context, tx *gorm.DB, id uint) (*models.Lesson, error)
	GetModule(ctx context.Context, tx *gorm.DB, id uint) (*models.CourseModule, error)
	ListLessons(ctx context.Context, tx *gorm.DB, moduleID uint) ([]*models.Lesson, error)
	ListModulesForType(ctx context.Context, tx *gorm.DB, typeID *uint) ([]*models.CourseModule, error)
	LastLessonIDs(ctx context.Context, tx *gorm.DB, moduleIDs []uint) (map[uint]uint, error)
	ModulesWithQuestions(ctx context.Context, tx *gorm.DB, moduleIDs []uint) (map[uint]bool, error)
}

// ===== SUPPORT =====

type TicketRepository interface {
	Create(ctx context.Context, tx *gorm.DB, ticket *models.SupportTicket) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.SupportTicket, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.SupportTicket, error)
	// FindReusableByStudent returns the student's newest ticket that is not closed.
	FindReusableByStudent(ctx context.Context, tx *gorm.DB, studentID uint) (*models.SupportTicket, bool, error)
	// TransitionStatus moves the ticket from one status to another and reports whether it did.
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.TicketStatus) (bool, error)
	SetStatus(ctx context.Context, tx *gorm.DB, id uint, status models.TicketStatus) error
	Touch(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error
	List(ctx context.Context, tx *gorm.DB, filters TicketFilters) ([]*models.SupportTicket, error)
}

type MessageRepository interface {
	Create(ctx context.Context, tx *gorm.DB, message *models.SupportMessage) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.SupportMessage, error)
	Update(ctx context.Context, tx *gorm.DB, message *models.SupportMessage) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	ListByTicket(ctx context.Context, tx *gorm.DB, ticketID uint) ([]*models.SupportMessage, error)
	// MarkRead flags unread messages of the ticket not sent by readerRole.
	MarkRead(ctx context.Context, tx *gorm.DB, ticketID uint, readerRole models.UserRole) (int64, error)
	LatestByTickets(ctx context.Context, tx *gorm.DB, ticketIDs []uint) (map[uint]*models.SupportMessage, error)
	CountUnread(ctx context.Context, tx *gorm.DB, ticketIDs []uint, filter UnreadFilter) (map[uint]int64, error)
}
