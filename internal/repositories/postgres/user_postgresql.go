package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/cache"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

// UserPostgreSQL reads users with a redis cache in front of the lookups made on every request.
type UserPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
	hooks        *commitHooks
}

func NewUserPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) *UserPostgreSQL {
	return &UserPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

func (u *UserPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return u.db
}

func (u *UserPostgreSQL) Create(ctx context.Context, tx *gorm.DB, user *models.User) error {
	if err := u.getDB(tx).WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	id, username := user.ID, user.Username
	u.hooks.afterCommit(ctx, func(ctx context.Context) {
		cache.InvalidateUser(ctx, u.cacheManager, id, username)
	})
	return nil
}

func (u *UserPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error) {
	db := u.getDB(tx)
	var user models.User

	err := u.cacheManager.User.CacheOrExecute(ctx, cache.UserIDKey(id), &user, cache.UserCacheConfig.TTL, func() (interface{}, error) {
		var dbUser models.User
		if err := db.WithContext(ctx).First(&dbUser, id).Error; err != nil {
			return nil, notFoundOr(err, "get user")
		}
		return &dbUser, nil
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (u *UserPostgreSQL) GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*models.User, error) {
	db := u.getDB(tx)
	var user models.User

	err := u.cacheManager.User.CacheOrExecute(ctx, cache.UserNameKey(username), &user, cache.UserCacheConfig.TTL, func() (interface{}, error) {
		var dbUser models.User
		if err := db.WithContext(ctx).Where("username = ?", username).First(&dbUser).Error; err != nil {
			return nil, notFoundOr(err, "get user by username")
		}
		return &dbUser, nil
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (u *UserPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	var users []*models.User
	if err := u.getDB(tx).WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

func (u *UserPostgreSQL) GetStudent(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error) {
	user, err := u.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleStudent || !user.IsActive {
		return nil, repositories.ErrNotFound
	}
	return user, nil
}

func (u *UserPostgreSQL) ListIDsByRole(ctx context.Context, tx *gorm.DB, role models.UserRole) ([]uint, error) {
	ids := make([]uint, 0)
	if err := u.getDB(tx).WithContext(ctx).
		Model(&models.User{}).
		Where("role = ? AND is_active = ?", role, true).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list users by role: %w", err)
	}
	return ids, nil
}

func (u *UserPostgreSQL) Lock(ctx context.Context, tx *gorm.DB, id uint) error {
	var user models.User
	if err := forUpdate(u.getDB(tx).WithContext(ctx)).Select("id").First(&user, id).Error; err != nil {
		return notFoundOr(err, "lock user")
	}
	return nil
}
