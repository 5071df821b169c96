package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

// Column layout of an import sheet: question, A, B, C, D, correct
const importColumns = 6

type questionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) QuestionService {
	return &questionService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

func (s *questionService) unitExists(ctx context.Context, unitType models.UnitType, unitID uint) error {
	if !unitType.Valid() {
		return ErrInvalidUnitType
	}
	if _, err := s.repo.Unit(unitType).GetUnit(ctx, nil, unitID); err != nil {
		if repositories.IsNotFoundError(err) {
			return unitNotFound(string(unitType))
		}
		return fmt.Errorf("failed to get %s: %w", unitType, err)
	}
	return nil
}

func toQuestion(unitID uint, req *CreateQuestionRequest) *models.Question {
	return &models.Question{
		UnitID: unitID,
		QuestionFields: models.QuestionFields{
			QuestionText:  strings.TrimSpace(req.QuestionText),
			OptionA:       strings.TrimSpace(req.OptionA),
			OptionB:       strings.TrimSpace(req.OptionB),
			OptionC:       strings.TrimSpace(req.OptionC),
			OptionD:       strings.TrimSpace(req.OptionD),
			CorrectOption: models.NormalizeOption(req.CorrectOption),
		},
	}
}

func (s *questionService) Create(ctx context.Context, unitType models.UnitType, unitID uint, req *CreateQuestionRequest) (*models.Question, error) {
	s.logger.Info("Creating question", "unit_type", unitType, "unit_id", unitID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if err := s.unitExists(ctx, unitType, unitID); err != nil {
		return nil, err
	}

	question := toQuestion(unitID, req)
	if err := s.repo.Unit(unitType).CreateQuestions(ctx, nil, []*models.Question{question}); err != nil {
		return nil, err
	}

	s.logger.Info("Question created", "unit_type", unitType, "unit_id", unitID, "question_id", question.ID)
	return question, nil
}

// Import reads the first sheet of an xlsx workbook. A first row whose first cell is
// "question" is treated as a header. Rows that fail validation are skipped and reported.
func (s *questionService) Import(ctx context.Context, unitType models.UnitType, unitID uint, r io.Reader) (*ImportResult, error) {
	s.logger.Info("Importing questions", "unit_type", unitType, "unit_id", unitID)

	if err := s.unitExists(ctx, unitType, unitID); err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, ErrInvalidWorkbook
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrInvalidWorkbook
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, ErrInvalidWorkbook
	}

	result := &ImportResult{}
	questions := make([]*models.Question, 0, len(rows))

	for i, row := range rows {
		line := i + 1
		if i == 0 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "question") {
			continue
		}
		if isBlankRow(row) {
			continue
		}

		req, err := s.parseRow(row)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", line, err))
			continue
		}

		questions = append(questions, toQuestion(unitID, req))
	}

	if len(questions) > 0 {
		err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
			return tx.Unit(unitType).CreateQuestions(ctx, nil, questions)
		})
		if err != nil {
			return nil, err
		}
	}
	result.Created = len(questions)

	s.logger.Info("Questions imported",
		"unit_type", unitType,
		"unit_id", unitID,
		"created", result.Created,
		"skipped", result.Skipped)

	return result, nil
}

func (s *questionService) parseRow(row []string) (*CreateQuestionRequest, error) {
	cells := make([]string, importColumns)
	copy(cells, row)

	req := &CreateQuestionRequest{
		QuestionText:  cells[0],
		OptionA:       cells[1],
		OptionB:       cells[2],
		OptionC:       cells[3],
		OptionD:       cells[4],
		CorrectOption: cells[5],
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return req, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
