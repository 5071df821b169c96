package repositories

import (
	"context"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"gorm.io/gorm"
)

// UserRepository reads users owned by the platform's user directory.
type UserRepository interface {
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*models.User, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.User, error)

	// GetStudent returns an active user with the STUDENT role.
	GetStudent(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error)

	// ListIDsByRole returns ids of active users holding role.
	ListIDsByRole(ctx context.Context, tx *gorm.DB, role models.UserRole) ([]uint, error)

	// Lock takes a row lock on the user until tx ends. It bypasses the cache.
	Lock(ctx context.Context, tx *gorm.DB, id uint) error
}
