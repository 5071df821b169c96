package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "learning-service"
	EventVersion = "1.0"
)

// Event types
const (
	UnitCompleted = "progress.unit_completed"
	TicketCreated = "support.ticket_created"
	MessageSent   = "support.message_sent"
	TicketClosed  = "support.ticket_closed"
)

type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent stamps a new event with id, source, version and time
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher sends domain events to the outside world
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// ===== EVENT PAYLOADS =====

type UnitCompletedEvent struct {
	UnitType   string `json:"unit_type"`
	UnitID     uint   `json:"unit_id"`
	StudentID  uint   `json:"student_id"`
	BestScore  int    `json:"best_score"`
	NextUnitID *uint  `json:"next_unit_id,omitempty"`
}

type TicketCreatedEvent struct {
	TicketID  uint `json:"ticket_id"`
	StudentID uint `json:"student_id"`
}

type MessageSentEvent struct {
	TicketID   uint   `json:"ticket_id"`
	MessageID  uint   `json:"message_id"`
	SenderID   uint   `json:"sender_id"`
	SenderRole string `json:"sender_role"`
}

type TicketClosedEvent struct {
	TicketID uint `json:"ticket_id"`
	ClosedBy uint `json:"closed_by"`
}
