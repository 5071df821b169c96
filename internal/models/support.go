package models

import "time"

type TicketStatus string

const (
	TicketOpen       TicketStatus = "OPEN"
	TicketInProgress TicketStatus = "IN_PROGRESS"
	TicketClosed     TicketStatus = "CLOSED"
)

func (s TicketStatus) IsClosed() bool {
	return s == TicketClosed
}

type SupportTicket struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	StudentID uint         `json:"student_id" gorm:"not null;index"`
	Status    TicketStatus `json:"status" gorm:"size:20;not null;default:OPEN;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SupportTicket) TableName() string {
	return "support_ticket"
}

// SupportMessage keeps the sender role captured at send time.
type SupportMessage struct {
	ID         uint     `json:"id" gorm:"primaryKey"`
	TicketID   uint     `json:"ticket_id" gorm:"not null;index"`
	SenderID   uint     `json:"sender_id" gorm:"not null;index"`
	SenderRole UserRole `json:"sender_role" gorm:"size:20;not null"`
	Message    string   `json:"message" gorm:"type:text"`
	FilePath   *string  `json:"file_path" gorm:"size:500"`
	IsRead     bool     `json:"is_read" gorm:"default:false;index"`
	IsEdited   bool     `json:"is_edited" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SupportMessage) TableName() string {
	return "support_message"
}

// AllModels lists every table owned by the service, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Course{},
		&CourseModule{},
		&Lesson{},
		&LessonTest{},
		&ModuleTest{},
		&LessonTestProgress{},
		&ModuleTestProgress{},
		&LessonStudent{},
		&SupportTicket{},
		&SupportMessage{},
	}
}
