package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type MessagePostgreSQL struct {
	db *gorm.DB
}

func NewMessagePostgreSQL(db *gorm.DB) repositories.MessageRepository {
	return &MessagePostgreSQL{db: db}
}

func (m *MessagePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return m.db
}

func (m *MessagePostgreSQL) Create(ctx context.Context, tx *gorm.DB, message *models.SupportMessage) error {
	if err := m.getDB(tx).WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (m *MessagePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.SupportMessage, error) {
	var message models.SupportMessage
	if err := m.getDB(tx).WithContext(ctx).First(&message, id).Error; err != nil {
		return nil, notFoundOr(err, "get message")
	}
	return &message, nil
}

func (m *MessagePostgreSQL) Update(ctx context.Context, tx *gorm.DB, message *models.SupportMessage) error {
	if err := m.getDB(tx).WithContext(ctx).Save(message).Error; err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

func (m *MessagePostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if err := m.getDB(tx).WithContext(ctx).Delete(&models.SupportMessage{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (m *MessagePostgreSQL) ListByTicket(ctx context.Context, tx *gorm.DB, ticketID uint) ([]*models.SupportMessage, error) {
	var messages []*models.SupportMessage
	if err := m.getDB(tx).WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (m *MessagePostgreSQL) MarkRead(ctx context.Context, tx *gorm.DB, ticketID uint, readerRole models.UserRole) (int64, error) {
	result := m.getDB(tx).WithContext(ctx).
		Model(&models.SupportMessage{}).
		Where("ticket_id = ? AND is_read = ? AND sender_role <> ?", ticketID, false, readerRole).
		UpdateColumn("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// LatestByTickets returns the newest message of every ticket that has one
func (m *MessagePostgreSQL) LatestByTickets(ctx context.Context, tx *gorm.DB, ticketIDs []uint) (map[uint]*models.SupportMessage, error) {
	result := make(map[uint]*models.SupportMessage, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return result, nil
	}

	db := m.getDB(tx).WithContext(ctx)
	latest := db.Model(&models.SupportMessage{}).
		Select("MAX(id)").
		Where("ticket_id IN ?", ticketIDs).
		Group("ticket_id")

	var messages []*models.SupportMessage
	if err := db.Where("id IN (?)", latest).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to get latest messages: %w", err)
	}

	for _, message := range messages {
		result[message.TicketID] = message
	}
	return result, nil
}

func (m *MessagePostgreSQL) CountUnread(ctx context.Context, tx *gorm.DB, ticketIDs []uint, filter repositories.UnreadFilter) (map[uint]int64, error) {
	result := make(map[uint]int64, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return result, nil
	}

	query := m.getDB(tx).WithContext(ctx).
		Model(&models.SupportMessage{}).
		Select("ticket_id, COUNT(*) AS unread").
		Where("ticket_id IN ? AND is_read = ?", ticketIDs, false)
	if filter.SenderRole != nil {
		query = query.Where("sender_role = ?", *filter.SenderRole)
	}
	if filter.ExcludeRole != nil {
		query = query.Where("sender_role <> ?", *filter.ExcludeRole)
	}

	var rows []struct {
		TicketID uint
		Unread   int64
	}
	if err := query.Group("ticket_id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}

	for _, row := range rows {
		result[row.TicketID] = row.Unread
	}
	return result, nil
}
