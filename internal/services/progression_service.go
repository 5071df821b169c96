package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/metrics"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

type progressionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	policies  map[models.UnitType]UnitPolicy
	now       func() time.Time
}

func NewProgressionService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, loc *time.Location) ProgressionService {
	return &progressionService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		policies:  DefaultUnitPolicies(),
		now:       clockIn(loc),
	}
}

func (s *progressionService) Policy(unitType models.UnitType) (UnitPolicy, error) {
	policy, ok := s.policies[unitType]
	if !ok {
		return UnitPolicy{}, ErrInvalidUnitType
	}
	return policy, nil
}

func (s *progressionService) getUnit(ctx context.Context, repo repositories.Repository, unitType models.UnitType, unitID uint) (*models.Unit, error) {
	unit, err := repo.Unit(unitType).GetUnit(ctx, nil, unitID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, unitNotFound(string(unitType))
		}
		return nil, fmt.Errorf("failed to get %s: %w", unitType, err)
	}
	return unit, nil
}

// ===== SAMPLE =====

func (s *progressionService) Sample(ctx context.Context, unitType models.UnitType, unitID uint) (*SampleResponse, error) {
	policy, err := s.Policy(unitType)
	if err != nil {
		return nil, err
	}

	if _, err := s.getUnit(ctx, s.repo, unitType, unitID); err != nil {
		return nil, err
	}

	units := s.repo.Unit(unitType)
	ids, err := units.ListQuestionIDs(ctx, nil, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	if len(ids) < policy.SampleSize {
		return nil, NewBusinessRuleError("quiz_sample_size",
			fmt.Sprintf("%s %d has %d questions, %d are required", unitType, unitID, len(ids), policy.SampleSize),
			map[string]interface{}{
				"unit_type":   unitType,
				"unit_id":     unitID,
				"available":   len(ids),
				"sample_size": policy.SampleSize,
			})
	}

	picked := make([]uint, policy.SampleSize)
	for i, idx := range rand.Perm(len(ids))[:policy.SampleSize] {
		picked[i] = ids[idx]
	}

	questions, err := units.GetQuestionsByIDs(ctx, nil, unitID, picked)
	if err != nil {
		return nil, fmt.Errorf("failed to load sampled questions: %w", err)
	}

	byID := make(map[uint]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	// Keep the random order
	views := make([]models.QuestionView, 0, len(picked))
	for _, id := range picked {
		if q, ok := byID[id]; ok {
			views = append(views, q.View())
		}
	}
	if len(views) < policy.SampleSize {
		return nil, NewBusinessRuleError("quiz_sample_size",
			fmt.Sprintf("%s %d questions changed while sampling", unitType, unitID), nil)
	}

	return &SampleResponse{UnitType: unitType, UnitID: unitID, Questions: views}, nil
}

// ===== GRADE =====

type answerEntry struct {
	QuestionID   *uint  `json:"question_id"`
	LessonTestID *uint  `json:"lesson_test_id"`
	ModuleTestID *uint  `json:"module_test_id"`
	Result       string `json:"result"`
	ChosenLetter string `json:"chosen_letter"`
}

func (a answerEntry) questionID() uint {
	for _, id := range []*uint{a.QuestionID, a.LessonTestID, a.ModuleTestID} {
		if id != nil && *id > 0 {
			return *id
		}
	}
	return 0
}

func (a answerEntry) letter() string {
	if a.ChosenLetter != "" {
		return models.NormalizeOption(a.ChosenLetter)
	}
	return models.NormalizeOption(a.Result)
}

// parseAnswers decodes the answer list. Entries that are not objects or lack an id or letter are skipped.
func parseAnswers(raw json.RawMessage) (int, []answerEntry, error) {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || len(items) == 0 {
		return 0, nil, ErrInvalidAnswers
	}

	answers := make([]answerEntry, 0, len(items))
	for _, item := range items {
		var entry answerEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		if entry.questionID() == 0 || entry.letter() == "" {
			continue
		}
		answers = append(answers, entry)
	}
	return len(items), answers, nil
}

func (s *progressionService) Grade(ctx context.Context, unitType models.UnitType, unitID uint, req *GradeRequest) (*GradeResult, error) {
	policy, err := s.Policy(unitType)
	if err != nil {
		return nil, err
	}

	if _, err := s.getUnit(ctx, s.repo, unitType, unitID); err != nil {
		return nil, err
	}

	total, answers, err := parseAnswers(req.AnswerList)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.questionID())
	}

	// Questions of other units are not returned and so never count
	questions, err := s.repo.Unit(unitType).GetQuestionsByIDs(ctx, nil, unitID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	correctByID := make(map[uint]string, len(questions))
	for _, q := range questions {
		correctByID[q.ID] = models.NormalizeOption(q.CorrectOption)
	}

	correct := 0
	seen := make(map[uint]bool, len(answers))
	for _, a := range answers {
		id := a.questionID()
		if seen[id] {
			continue
		}
		seen[id] = true

		if want, ok := correctByID[id]; ok && want == a.letter() {
			correct++
		}
	}

	result := &GradeResult{
		Total:        total,
		CorrectCount: correct,
		Passed:       policy.Passed(correct),
	}
	metrics.RecordQuizGraded(string(unitType), result.Passed)

	s.logger.Info("Quiz graded",
		"unit_type", unitType,
		"unit_id", unitID,
		"total", result.Total,
		"correct_count", result.CorrectCount,
		"passed", result.Passed)

	return result, nil
}

// ===== FINISH =====

func (s *progressionService) Finish(ctx context.Context, unitType models.UnitType, unitID uint, req *FinishRequest) (*FinishResult, error) {
	policy, err := s.Policy(unitType)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.StudentID == 0 {
		return nil, ErrStudentNotFound
	}

	s.logger.Info("Finishing unit",
		"unit_type", unitType,
		"unit_id", unitID,
		"student_id", req.StudentID,
		"correct_count", req.CorrectCount)

	now := s.now()
	var (
		result  *FinishResult
		blocked bool
	)
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var txErr error
		result, blocked, txErr = s.finishInTx(ctx, tx, policy, unitType, unitID, req.StudentID, req.CorrectCount, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	// The best score is committed even when the gate refuses the advancement
	if blocked {
		s.logger.Info("Unit finish blocked by daily gate",
			"unit_type", unitType,
			"unit_id", unitID,
			"student_id", req.StudentID,
			"best_score", result.Progress.BestScore)
		return nil, ErrAlreadyAdvanced
	}

	if result.Passed && !result.AlreadyCompleted {
		metrics.RecordUnitCompleted(string(unitType))
		publishEvent(ctx, s.publisher, s.logger, events.UnitCompleted, events.UnitCompletedEvent{
			UnitType:   string(unitType),
			UnitID:     unitID,
			StudentID:  req.StudentID,
			BestScore:  int(result.Progress.BestScore),
			NextUnitID: result.NextUnitID,
		})
	}

	s.logger.Info("Unit finished",
		"unit_type", unitType,
		"unit_id", unitID,
		"student_id", req.StudentID,
		"already_completed", result.AlreadyCompleted,
		"passed", result.Passed,
		"unlocked", result.Unlocked)

	return result, nil
}

func (s *progressionService) finishInTx(ctx context.Context, tx repositories.Repository, policy UnitPolicy, unitType models.UnitType, unitID, studentID uint, correctCount int, now time.Time) (result *FinishResult, blocked bool, err error) {
	if _, err := tx.User().GetStudent(ctx, nil, studentID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, false, ErrStudentNotFound
		}
		return nil, false, fmt.Errorf("failed to get student: %w", err)
	}

	unit, err := s.getUnit(ctx, tx, unitType, unitID)
	if err != nil {
		return nil, false, err
	}

	units := tx.Unit(unitType)
	if _, err := units.EnsureProgress(ctx, nil, studentID, unitID); err != nil {
		return nil, false, err
	}

	progress, err := units.GetProgressForUpdate(ctx, nil, studentID, unitID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock progress: %w", err)
	}

	result = &FinishResult{
		UnitType:  unitType,
		UnitID:    unitID,
		StudentID: studentID,
		Progress:  progress,
		Passed:    policy.Passed(correctCount),
	}

	if progress.IsCompleted {
		result.AlreadyCompleted = true
		return result, false, nil
	}

	progress.BestScore = max(progress.BestScore, float64(correctCount))

	if result.Passed {
		blocked, err = policy.Gate.Blocked(ctx, tx, studentID, now)
		if err != nil {
			return nil, false, err
		}
	}

	if result.Passed && !blocked {
		progress.IsCompleted = true

		next, err := units.GetNextUnit(ctx, nil, unit)
		switch {
		case err == nil:
			result.NextUnitID = &next.ID
			created, err := units.EnsureProgress(ctx, nil, studentID, next.ID)
			if err != nil {
				return nil, false, err
			}
			result.Unlocked = created
			if created {
				if err := policy.Gate.Record(ctx, tx, studentID, now); err != nil {
					return nil, false, err
				}
			}
		case errors.Is(err, repositories.ErrNotFound):
			// Last unit of its parent
		default:
			return nil, false, fmt.Errorf("failed to find next %s: %w", unitType, err)
		}
	}

	if err := units.UpdateProgress(ctx, nil, progress); err != nil {
		return nil, false, err
	}

	return result, blocked, nil
}

// ===== SUBMIT =====

func (s *progressionService) Submit(ctx context.Context, unitType models.UnitType, unitID, studentID uint, req *GradeRequest) (*SubmitResult, error) {
	grade, err := s.Grade(ctx, unitType, unitID, req)
	if err != nil {
		return nil, err
	}

	finish, err := s.Finish(ctx, unitType, unitID, &FinishRequest{
		StudentID:    studentID,
		CorrectCount: grade.CorrectCount,
	})
	if err != nil {
		return nil, err
	}

	return &SubmitResult{Grade: grade, Finish: finish}, nil
}
