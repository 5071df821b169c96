package services

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

// AdvanceGate throttles how often a student may advance through a unit type
type AdvanceGate interface {
	// Blocked reports whether the student already advanced on the calendar day of now
	Blocked(ctx context.Context, repo repositories.Repository, studentID uint, now time.Time) (bool, error)
	// Record marks an advancement on the calendar day of now
	Record(ctx context.Context, repo repositories.Repository, studentID uint, now time.Time) error
}

// DailyAdvanceGate allows one advancement per student per calendar day
type DailyAdvanceGate struct{}

func (DailyAdvanceGate) Blocked(ctx context.Context, repo repositories.Repository, studentID uint, now time.Time) (bool, error) {
	exists, err := repo.Advancement().Exists(ctx, nil, studentID, now)
	if err != nil {
		return false, fmt.Errorf("failed to check daily advancement: %w", err)
	}
	return exists, nil
}

func (DailyAdvanceGate) Record(ctx context.Context, repo repositories.Repository, studentID uint, now time.Time) error {
	if _, err := repo.Advancement().Record(ctx, nil, studentID, now); err != nil {
		return fmt.Errorf("failed to record daily advancement: %w", err)
	}
	return nil
}

// OpenGate never blocks
type OpenGate struct{}

func (OpenGate) Blocked(context.Context, repositories.Repository, uint, time.Time) (bool, error) {
	return false, nil
}

func (OpenGate) Record(context.Context, repositories.Repository, uint, time.Time) error {
	return nil
}

// UnitPolicy holds the quiz rules of one unit type
type UnitPolicy struct {
	SampleSize    int
	PassThreshold int
	Gate          AdvanceGate
}

func (p UnitPolicy) Passed(correctCount int) bool {
	return correctCount >= p.PassThreshold
}

// DefaultUnitPolicies: lessons sample 10 and pass at 7, modules sample 40 and pass at 28.
// Only lessons are gated per day.
func DefaultUnitPolicies() map[models.UnitType]UnitPolicy {
	return map[models.UnitType]UnitPolicy{
		models.UnitLesson: {SampleSize: 10, PassThreshold: 7, Gate: DailyAdvanceGate{}},
		models.UnitModule: {SampleSize: 40, PassThreshold: 28, Gate: OpenGate{}},
	}
}
