package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/learning-service/internal/cache"
	"github.com/SAP-F-2025/learning-service/internal/models"
)

// unitBase holds the question and progress operations shared by lessons and modules.
// The two unit types only differ in table and foreign key names.
type unitBase struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
	hooks        *commitHooks

	unitType      models.UnitType
	questionTable string
	progressTable string
	foreignKey    string
}

func (b *unitBase) Type() models.UnitType {
	return b.unitType
}

// invalidatePools drops the cached question pools of unitIDs once the write is committed
func (b *unitBase) invalidatePools(ctx context.Context, unitIDs map[uint]struct{}) {
	b.hooks.afterCommit(ctx, func(ctx context.Context) {
		for id := range unitIDs {
			cache.InvalidateQuestionPool(ctx, b.cacheManager, string(b.unitType), id)
		}
	})
}

func (b *unitBase) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return b.db
}

func (b *unitBase) ListQuestionIDs(ctx context.Context, tx *gorm.DB, unitID uint) ([]uint, error) {
	db := b.getDB(tx)
	var ids []uint

	key := cache.QuestionPoolKey(string(b.unitType), unitID)
	err := b.cacheManager.Question.CacheOrExecute(ctx, key, &ids, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		dbIDs := make([]uint, 0)
		if err := db.WithContext(ctx).
			Table(b.questionTable).
			Where(b.foreignKey+" = ?", unitID).
			Order("id").
			Pluck("id", &dbIDs).Error; err != nil {
			return nil, fmt.Errorf("failed to list question ids: %w", err)
		}
		return dbIDs, nil
	})

	return ids, err
}

func (b *unitBase) GetQuestionsByIDs(ctx context.Context, tx *gorm.DB, unitID uint, ids []uint) ([]models.Question, error) {
	questions := make([]models.Question, 0, len(ids))
	if len(ids) == 0 {
		return questions, nil
	}

	err := b.getDB(tx).WithContext(ctx).
		Table(b.questionTable).
		Select("id, "+b.foreignKey+" AS unit_id, question_text, option_a, option_b, option_c, option_d, correct_option").
		Where(b.foreignKey+" = ? AND id IN ?", unitID, ids).
		Order("id").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	return questions, nil
}

func (b *unitBase) progressQuery(db *gorm.DB) *gorm.DB {
	return db.Table(b.progressTable).
		Select("id, student_id, " + b.foreignKey + " AS unit_id, is_completed, best_score")
}

func (b *unitBase) GetProgress(ctx context.Context, tx *gorm.DB, studentID, unitID uint) (*models.Progress, error) {
	var progress models.Progress
	err := b.progressQuery(b.getDB(tx).WithContext(ctx)).
		Where("student_id = ? AND "+b.foreignKey+" = ?", studentID, unitID).
		Take(&progress).Error
	if err != nil {
		return nil, notFoundOr(err, "get progress")
	}

	progress.UnitType = b.unitType
	return &progress, nil
}

func (b *unitBase) GetProgressForUpdate(ctx context.Context, tx *gorm.DB, studentID, unitID uint) (*models.Progress, error) {
	var progress models.Progress
	err := b.progressQuery(forUpdate(b.getDB(tx).WithContext(ctx))).
		Where("student_id = ? AND "+b.foreignKey+" = ?", studentID, unitID).
		Take(&progress).Error
	if err != nil {
		return nil, notFoundOr(err, "lock progress")
	}

	progress.UnitType = b.unitType
	return &progress, nil
}

func (b *unitBase) EnsureProgress(ctx context.Context, tx *gorm.DB, studentID, unitID uint) (bool, error) {
	db := b.getDB(tx).WithContext(ctx)
	now := db.NowFunc()

	result := db.Table(b.progressTable).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(map[string]interface{}{
			"student_id":   studentID,
			b.foreignKey:   unitID,
			"is_completed": false,
			"best_score":   0,
			"created_at":   now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to create progress: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (b *unitBase) UpdateProgress(ctx context.Context, tx *gorm.DB, progress *models.Progress) error {
	db := b.getDB(tx).WithContext(ctx)

	err := db.Table(b.progressTable).
		Where("id = ?", progress.ID).
		Updates(map[string]interface{}{
			"is_completed": progress.IsCompleted,
			"best_score":   progress.BestScore,
			"updated_at":   db.NowFunc(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	return nil
}

func (b *unitBase) ListProgress(ctx context.Context, tx *gorm.DB, studentID uint, unitIDs []uint) (map[uint]*models.Progress, error) {
	result := make(map[uint]*models.Progress, len(unitIDs))
	if len(unitIDs) == 0 {
		return result, nil
	}

	var rows []*models.Progress
	err := b.progressQuery(b.getDB(tx).WithContext(ctx)).
		Where("student_id = ? AND "+b.foreignKey+" IN ?", studentID, unitIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}

	for _, row := range rows {
		row.UnitType = b.unitType
		result[row.UnitID] = row
	}

	return result, nil
}

// ===== LESSONS =====

type LessonUnitPostgreSQL struct {
	unitBase
}

func NewLessonUnitPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) *LessonUnitPostgreSQL {
	return &LessonUnitPostgreSQL{unitBase{
		db:            db,
		cacheManager:  cacheManager,
		unitType:      models.UnitLesson,
		questionTable: models.LessonTest{}.TableName(),
		progressTable: models.LessonTestProgress{}.TableName(),
		foreignKey:    "lesson_id",
	}}
}

func lessonUnit(lesson *models.Lesson) *models.Unit {
	return &models.Unit{
		Type:     models.UnitLesson,
		ID:       lesson.ID,
		ParentID: lesson.CourseModuleID,
		Order:    lesson.Order,
		Title:    lesson.Title,
	}
}

func (r *LessonUnitPostgreSQL) GetUnit(ctx context.Context, tx *gorm.DB, id uint) (*models.Unit, error) {
	var lesson models.Lesson
	if err := r.getDB(tx).WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&lesson).Error; err != nil {
		return nil, notFoundOr(err, "get lesson")
	}
	return lessonUnit(&lesson), nil
}

func (r *LessonUnitPostgreSQL) GetNextUnit(ctx context.Context, tx *gorm.DB, unit *models.Unit) (*models.Unit, error) {
	var lesson models.Lesson
	if err := r.getDB(tx).WithContext(ctx).
		Where("course_module_id = ? AND is_active = ?", unit.ParentID, true).
		Where(orderEq(unit.Order + 1)).
		Order("id").
		First(&lesson).Error; err != nil {
		return nil, notFoundOr(err, "get next lesson")
	}
	return lessonUnit(&lesson), nil
}

func (r *LessonUnitPostgreSQL) CreateQuestions(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	rows := make([]*models.LessonTest, len(questions))
	for i, q := range questions {
		rows[i] = &models.LessonTest{LessonID: q.UnitID, QuestionFields: q.QuestionFields}
	}

	if err := r.getDB(tx).WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to create lesson questions: %w", err)
	}

	touched := make(map[uint]struct{})
	for i, row := range rows {
		questions[i].ID = row.ID
		questions[i].QuestionFields = row.QuestionFields
		touched[row.LessonID] = struct{}{}
	}
	r.invalidatePools(ctx, touched)

	return nil
}

// ===== MODULES =====

type ModuleUnitPostgreSQL struct {
	unitBase
}

func NewModuleUnitPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) *ModuleUnitPostgreSQL {
	return &ModuleUnitPostgreSQL{unitBase{
		db:            db,
		cacheManager:  cacheManager,
		unitType:      models.UnitModule,
		questionTable: models.ModuleTest{}.TableName(),
		progressTable: models.ModuleTestProgress{}.TableName(),
		foreignKey:    "module_id",
	}}
}

func moduleUnit(module *models.CourseModule) *models.Unit {
	return &models.Unit{
		Type:     models.UnitModule,
		ID:       module.ID,
		ParentID: module.CourseID,
		Order:    module.Order,
		Title:    module.Title,
	}
}

func (r *ModuleUnitPostgreSQL) GetUnit(ctx context.Context, tx *gorm.DB, id uint) (*models.Unit, error) {
	var module models.CourseModule
	if err := r.getDB(tx).WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&module).Error; err != nil {
		return nil, notFoundOr(err, "get module")
	}
	return moduleUnit(&module), nil
}

func (r *ModuleUnitPostgreSQL) GetNextUnit(ctx context.Context, tx *gorm.DB, unit *models.Unit) (*models.Unit, error) {
	var module models.CourseModule
	if err := r.getDB(tx).WithContext(ctx).
		Where("course_id = ? AND is_active = ?", unit.ParentID, true).
		Where(orderEq(unit.Order + 1)).
		Order("id").
		First(&module).Error; err != nil {
		return nil, notFoundOr(err, "get next module")
	}
	return moduleUnit(&module), nil
}

func (r *ModuleUnitPostgreSQL) CreateQuestions(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	rows := make([]*models.ModuleTest, len(questions))
	for i, q := range questions {
		rows[i] = &models.ModuleTest{ModuleID: q.UnitID, QuestionFields: q.QuestionFields}
	}

	if err := r.getDB(tx).WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to create module questions: %w", err)
	}

	touched := make(map[uint]struct{})
	for i, row := range rows {
		questions[i].ID = row.ID
		questions[i].QuestionFields = row.QuestionFields
		touched[row.ModuleID] = struct{}{}
	}
	r.invalidatePools(ctx, touched)

	return nil
}
