package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type TicketPostgreSQL struct {
	db *gorm.DB
}

func NewTicketPostgreSQL(db *gorm.DB) repositories.TicketRepository {
	return &TicketPostgreSQL{db: db}
}

func (t *TicketPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return t.db
}

func (t *TicketPostgreSQL) Create(ctx context.Context, tx *gorm.DB, ticket *models.SupportTicket) error {
	if ticket.Status == "" {
		ticket.Status = models.TicketOpen
	}
	if err := t.getDB(tx).WithContext(ctx).Create(ticket).Error; err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

func (t *TicketPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	if err := t.getDB(tx).WithContext(ctx).First(&ticket, id).Error; err != nil {
		return nil, notFoundOr(err, "get ticket")
	}
	return &ticket, nil
}

func (t *TicketPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	if err := forUpdate(t.getDB(tx).WithContext(ctx)).First(&ticket, id).Error; err != nil {
		return nil, notFoundOr(err, "lock ticket")
	}
	return &ticket, nil
}

func (t *TicketPostgreSQL) FindReusableByStudent(ctx context.Context, tx *gorm.DB, studentID uint) (*models.SupportTicket, bool, error) {
	var ticket models.SupportTicket
	err := t.getDB(tx).WithContext(ctx).
		Where("student_id = ? AND status <> ?", studentID, models.TicketClosed).
		Order("updated_at DESC").
		Order("id DESC").
		First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find open ticket: %w", err)
	}
	return &ticket, true, nil
}

func (t *TicketPostgreSQL) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.TicketStatus) (bool, error) {
	result := t.getDB(tx).WithContext(ctx).
		Model(&models.SupportTicket{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, fmt.Errorf("failed to change ticket status: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (t *TicketPostgreSQL) SetStatus(ctx context.Context, tx *gorm.DB, id uint, status models.TicketStatus) error {
	if err := t.getDB(tx).WithContext(ctx).
		Model(&models.SupportTicket{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to set ticket status: %w", err)
	}
	return nil
}

// Touch stamps updated_at with the given time instead of the current time
func (t *TicketPostgreSQL) Touch(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error {
	if err := t.getDB(tx).WithContext(ctx).
		Model(&models.SupportTicket{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", at).Error; err != nil {
		return fmt.Errorf("failed to touch ticket: %w", err)
	}
	return nil
}

func (t *TicketPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.TicketFilters) ([]*models.SupportTicket, error) {
	query := t.getDB(tx).WithContext(ctx).Model(&models.SupportTicket{})
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	var tickets []*models.SupportTicket
	if err := query.Order("updated_at DESC").Order("id DESC").Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}
