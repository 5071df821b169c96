package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type CatalogPostgreSQL struct {
	db *gorm.DB
}

func NewCatalogPostgreSQL(db *gorm.DB) repositories.CatalogRepository {
	return &CatalogPostgreSQL{db: db}
}

func (c *CatalogPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}

func (c *CatalogPostgreSQL) GetLesson(ctx context.Context, tx *gorm.DB, id uint) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := c.getDB(tx).WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&lesson).Error; err != nil {
		return nil, notFoundOr(err, "get lesson")
	}
	return &lesson, nil
}

func (c *CatalogPostgreSQL) GetModule(ctx context.Context, tx *gorm.DB, id uint) (*models.CourseModule, error) {
	var module models.CourseModule
	if err := c.getDB(tx).WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&module).Error; err != nil {
		return nil, notFoundOr(err, "get module")
	}
	return &module, nil
}

func (c *CatalogPostgreSQL) ListLessons(ctx context.Context, tx *gorm.DB, moduleID uint) ([]*models.Lesson, error) {
	var lessons []*models.Lesson
	if err := c.getDB(tx).WithContext(ctx).
		Where("course_module_id = ? AND is_active = ?", moduleID, true).
		Order(orderAsc()).
		Find(&lessons).Error; err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	return lessons, nil
}

// ListModulesForType lists active modules of the courses visible to a user type.
// A nil typeID lists modules of every course.
func (c *CatalogPostgreSQL) ListModulesForType(ctx context.Context, tx *gorm.DB, typeID *uint) ([]*models.CourseModule, error) {
	courses := c.getDB(tx).WithContext(ctx).Model(&models.Course{}).Select("id")
	if typeID != nil {
		courses = courses.Where("type_id = ?", *typeID)
	}

	var modules []*models.CourseModule
	if err := c.getDB(tx).WithContext(ctx).
		Where("is_active = ? AND course_id IN (?)", true, courses).
		Order("course_id").
		Order(orderAsc()).
		Find(&modules).Error; err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	return modules, nil
}

// LastLessonIDs maps each module to its active lesson with the highest order
func (c *CatalogPostgreSQL) LastLessonIDs(ctx context.Context, tx *gorm.DB, moduleIDs []uint) (map[uint]uint, error) {
	result := make(map[uint]uint, len(moduleIDs))
	if len(moduleIDs) == 0 {
		return result, nil
	}

	var lessons []*models.Lesson
	if err := c.getDB(tx).WithContext(ctx).
		Where("course_module_id IN ? AND is_active = ?", moduleIDs, true).
		Order(orderAsc()).
		Order("id").
		Find(&lessons).Error; err != nil {
		return nil, fmt.Errorf("failed to list module lessons: %w", err)
	}

	for _, lesson := range lessons {
		result[lesson.CourseModuleID] = lesson.ID
	}
	return result, nil
}

func (c *CatalogPostgreSQL) ModulesWithQuestions(ctx context.Context, tx *gorm.DB, moduleIDs []uint) (map[uint]bool, error) {
	result := make(map[uint]bool, len(moduleIDs))
	if len(moduleIDs) == 0 {
		return result, nil
	}

	var ids []uint
	if err := c.getDB(tx).WithContext(ctx).
		Model(&models.ModuleTest{}).
		Where("module_id IN ?", moduleIDs).
		Distinct().
		Pluck("module_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list modules with questions: %w", err)
	}

	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}
