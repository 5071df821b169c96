package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type AdvancementPostgreSQL struct {
	db *gorm.DB
}

func NewAdvancementPostgreSQL(db *gorm.DB) repositories.AdvancementRepository {
	return &AdvancementPostgreSQL{db: db}
}

func (a *AdvancementPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// calendarDay truncates t to midnight in its own location
func calendarDay(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, t.Location()))
}

func (a *AdvancementPostgreSQL) Exists(ctx context.Context, tx *gorm.DB, studentID uint, day time.Time) (bool, error) {
	var count int64
	err := a.getDB(tx).WithContext(ctx).
		Model(&models.LessonStudent{}).
		Where("student_id = ? AND date = ?", studentID, calendarDay(day)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check advancement marker: %w", err)
	}
	return count > 0, nil
}

func (a *AdvancementPostgreSQL) Record(ctx context.Context, tx *gorm.DB, studentID uint, day time.Time) (bool, error) {
	marker := &models.LessonStudent{
		StudentID: studentID,
		Date:      calendarDay(day),
	}

	result := a.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(marker)
	if result.Error != nil {
		return false, fmt.Errorf("failed to record advancement marker: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (a *AdvancementPostgreSQL) DeleteBefore(ctx context.Context, tx *gorm.DB, day time.Time) (int64, error) {
	result := a.getDB(tx).WithContext(ctx).
		Where("date < ?", calendarDay(day)).
		Delete(&models.LessonStudent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete advancement markers: %w", result.Error)
	}
	return result.RowsAffected, nil
}
