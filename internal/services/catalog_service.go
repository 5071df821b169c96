package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type catalogService struct {
	repo   repositories.Repository
	logger *slog.Logger
	gate   AdvanceGate
	now    func() time.Time
}

func NewCatalogService(repo repositories.Repository, logger *slog.Logger, loc *time.Location) CatalogService {
	return &catalogService{
		repo:   repo,
		logger: logger,
		gate:   DefaultUnitPolicies()[models.UnitLesson].Gate,
		now:    clockIn(loc),
	}
}

// checkGate refuses lesson content to a student who already advanced today
func (s *catalogService) checkGate(ctx context.Context, viewer *models.User) error {
	if viewer == nil || viewer.Role != models.RoleStudent {
		return nil
	}

	blocked, err := s.gate.Blocked(ctx, s.repo, viewer.ID, s.now())
	if err != nil {
		return err
	}
	if blocked {
		return ErrAlreadyAdvanced
	}
	return nil
}

func (s *catalogService) GetLesson(ctx context.Context, lessonID uint, viewer *models.User) (*LessonResponse, error) {
	lesson, err := s.repo.Catalog().GetLesson(ctx, nil, lessonID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}

	if err := s.checkGate(ctx, viewer); err != nil {
		return nil, err
	}

	response := &LessonResponse{Lesson: lesson}
	if viewer != nil && viewer.Role == models.RoleStudent {
		progress, err := s.repo.Lesson().GetProgress(ctx, nil, viewer.ID, lesson.ID)
		switch {
		case err == nil:
			response.Progress = progress
		case !repositories.IsNotFoundError(err):
			return nil, err
		}
	}

	return response, nil
}

func (s *catalogService) ListModuleLessons(ctx context.Context, moduleID uint, viewer *models.User) ([]*LessonResponse, error) {
	if _, err := s.repo.Catalog().GetModule(ctx, nil, moduleID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrModuleNotFound
		}
		return nil, err
	}

	if err := s.checkGate(ctx, viewer); err != nil {
		return nil, err
	}

	lessons, err := s.repo.Catalog().ListLessons(ctx, nil, moduleID)
	if err != nil {
		return nil, err
	}

	progress := map[uint]*models.Progress{}
	if viewer != nil && viewer.Role == models.RoleStudent {
		ids := make([]uint, len(lessons))
		for i, lesson := range lessons {
			ids[i] = lesson.ID
		}
		if progress, err = s.repo.Lesson().ListProgress(ctx, nil, viewer.ID, ids); err != nil {
			return nil, err
		}
	}

	result := make([]*LessonResponse, len(lessons))
	for i, lesson := range lessons {
		result[i] = &LessonResponse{Lesson: lesson, Progress: progress[lesson.ID]}
	}
	return result, nil
}

// ModuleOverview lists the modules of the student's courses that have a quiz.
// A module opens once the last lesson of the module is completed.
func (s *catalogService) ModuleOverview(ctx context.Context, student *models.User) ([]*ModuleOverviewItem, error) {
	if student == nil || student.Role != models.RoleStudent {
		return nil, ErrStudentNotFound
	}

	catalog := s.repo.Catalog()
	modules, err := catalog.ListModulesForType(ctx, nil, student.TypeID)
	if err != nil {
		return nil, err
	}

	moduleIDs := make([]uint, len(modules))
	for i, m := range modules {
		moduleIDs[i] = m.ID
	}

	withQuestions, err := catalog.ModulesWithQuestions(ctx, nil, moduleIDs)
	if err != nil {
		return nil, err
	}

	lastLessons, err := catalog.LastLessonIDs(ctx, nil, moduleIDs)
	if err != nil {
		return nil, err
	}

	lessonIDs := make([]uint, 0, len(lastLessons))
	for _, id := range lastLessons {
		lessonIDs = append(lessonIDs, id)
	}

	lessonProgress, err := s.repo.Lesson().ListProgress(ctx, nil, student.ID, lessonIDs)
	if err != nil {
		return nil, err
	}
	moduleProgress, err := s.repo.Module().ListProgress(ctx, nil, student.ID, moduleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load module progress: %w", err)
	}

	items := make([]*ModuleOverviewItem, 0, len(modules))
	for _, m := range modules {
		if !withQuestions[m.ID] {
			continue
		}

		item := &ModuleOverviewItem{Module: m}
		if lessonID, ok := lastLessons[m.ID]; ok {
			if p := lessonProgress[lessonID]; p != nil && p.IsCompleted {
				item.IsOpen = true
			}
		}
		if item.IsOpen {
			if p := moduleProgress[m.ID]; p != nil && p.IsCompleted {
				item.IsPassed = true
			}
		}
		items = append(items, item)
	}

	return items, nil
}
