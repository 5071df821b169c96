package services

import (
	"context"
	"errors"
	"testing"

	"github.com/SAP-F-2025/learning-service/internal/models"
)

func TestCatalogService_LessonGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	module := f.module(f.course().ID, 1)
	l1 := f.lesson(module.ID, 1)
	l2 := f.lesson(module.ID, 2)
	student := f.user("gina", models.RoleStudent)
	teacher := f.user("tom", models.RoleTeacher)

	catalog := f.catalog(testNow)

	lesson, err := catalog.GetLesson(ctx, l1.ID, student)
	if err != nil {
		t.Fatalf("GetLesson failed: %v", err)
	}
	if lesson.ID != l1.ID || lesson.Progress != nil {
		t.Errorf("unexpected lesson: %+v", lesson)
	}

	if _, err := f.progression(testNow).Finish(ctx, models.UnitLesson, l1.ID, &FinishRequest{StudentID: student.ID, CorrectCount: 7}); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	t.Run("student is refused after advancing", func(t *testing.T) {
		if _, err := catalog.GetLesson(ctx, l2.ID, student); !errors.Is(err, ErrAlreadyAdvanced) {
			t.Errorf("GetLesson: expected already advanced, got %v", err)
		}
		if _, err := catalog.ListModuleLessons(ctx, module.ID, student); !errors.Is(err, ErrAlreadyAdvanced) {
			t.Errorf("ListModuleLessons: expected already advanced, got %v", err)
		}
	})

	t.Run("staff is never gated", func(t *testing.T) {
		if _, err := catalog.GetLesson(ctx, l2.ID, teacher); err != nil {
			t.Errorf("GetLesson for teacher: %v", err)
		}
	})

	t.Run("next day carries progress", func(t *testing.T) {
		lessons, err := f.catalog(testNow.AddDate(0, 0, 1)).ListModuleLessons(ctx, module.ID, student)
		if err != nil {
			t.Fatalf("ListModuleLessons failed: %v", err)
		}
		if len(lessons) != 2 || lessons[0].ID != l1.ID {
			t.Fatalf("unexpected lessons: %+v", lessons)
		}
		if lessons[0].Progress == nil || !lessons[0].Progress.IsCompleted {
			t.Errorf("expected completed progress on lesson 1: %+v", lessons[0].Progress)
		}
		if lessons[1].Progress == nil || lessons[1].Progress.IsCompleted {
			t.Errorf("expected unlocked progress on lesson 2: %+v", lessons[1].Progress)
		}
	})

	t.Run("unknown ids", func(t *testing.T) {
		if _, err := catalog.GetLesson(ctx, 999, teacher); !errors.Is(err, ErrLessonNotFound) {
			t.Errorf("expected lesson not found, got %v", err)
		}
		if _, err := catalog.ListModuleLessons(ctx, 999, teacher); !errors.Is(err, ErrModuleNotFound) {
			t.Errorf("expected module not found, got %v", err)
		}
	})
}

func TestCatalogService_ModuleOverview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	course := f.course()
	m1 := f.module(course.ID, 1)
	m2 := f.module(course.ID, 2)
	empty := f.module(course.ID, 3)
	f.lesson(m1.ID, 1)
	last := f.lesson(m1.ID, 2)
	f.lesson(m2.ID, 1)
	f.lesson(empty.ID, 1)
	f.moduleQuestions(m1.ID, 1, "A")
	f.moduleQuestions(m2.ID, 1, "A")
	student := f.user("hana", models.RoleStudent)

	// Completing the last lesson of m1 opens its quiz
	f.create(&models.LessonTestProgress{StudentID: student.ID, LessonID: last.ID, IsCompleted: true, BestScore: 9})
	f.create(&models.ModuleTestProgress{StudentID: student.ID, ModuleID: m1.ID, IsCompleted: true, BestScore: 30})

	items, err := f.catalog(testNow).ModuleOverview(ctx, student)
	if err != nil {
		t.Fatalf("ModuleOverview failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("modules without questions must be hidden, got %d items", len(items))
	}

	want := []struct {
		id             uint
		open, passedOK bool
	}{
		{m1.ID, true, true},
		{m2.ID, false, false},
	}
	for i, w := range want {
		if items[i].Module.ID != w.id || items[i].IsOpen != w.open || items[i].IsPassed != w.passedOK {
			t.Errorf("items[%d] = {module %d open %v passed %v}, want %+v",
				i, items[i].Module.ID, items[i].IsOpen, items[i].IsPassed, w)
		}
	}

	if _, err := f.catalog(testNow).ModuleOverview(ctx, f.user("sam", models.RoleSupport)); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("expected student not found, got %v", err)
	}
}
