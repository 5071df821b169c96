package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/learning-service/internal/models"
)

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("bad cell: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("failed to write row %d: %v", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}
	return buf
}

func TestQuestionService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewQuestionService(f.repo, f.logger, f.validator)
	lesson := f.lesson(f.module(f.course().ID, 1).ID, 1)

	q, err := svc.Create(ctx, models.UnitLesson, lesson.ID, &CreateQuestionRequest{
		QuestionText:  " 2 + 2? ",
		OptionA:       "3",
		OptionB:       "4",
		OptionC:       "5",
		OptionD:       "22",
		CorrectOption: "b",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if q.ID == 0 || q.CorrectOption != "B" || q.QuestionText != "2 + 2?" {
		t.Errorf("unexpected question: %+v", q)
	}

	tests := []struct {
		name     string
		unitType models.UnitType
		unitID   uint
		req      *CreateQuestionRequest
		want     error
	}{
		{
			name:     "bad option letter",
			unitType: models.UnitLesson,
			unitID:   lesson.ID,
			req:      &CreateQuestionRequest{QuestionText: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: "E"},
			want:     ErrInvalidInput,
		},
		{
			name:     "unknown module",
			unitType: models.UnitModule,
			unitID:   42,
			req:      &CreateQuestionRequest{QuestionText: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: "A"},
			want:     ErrModuleNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.unitType, tt.unitID, tt.req)
			if ErrorKind(err) != ErrorKind(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestQuestionService_Import(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewQuestionService(f.repo, f.logger, f.validator)
	module := f.module(f.course().ID, 1)

	buf := workbook(t, [][]interface{}{
		{"question", "A", "B", "C", "D", "correct"},
		{"Capital of France?", "Paris", "Rome", "Madrid", "Oslo", "a"},
		{"Largest planet?", "Mars", "Jupiter", "Venus", "Earth", "B"},
		{"Missing options", "x", "y"},
		{},
		{"Bad letter", "1", "2", "3", "4", "F"},
		{"2 * 3?", 5, 6, 7, 8, "b"},
	})

	res, err := svc.Import(ctx, models.UnitModule, module.ID, buf)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Created != 3 || res.Skipped != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.Errors) != 2 || !strings.HasPrefix(res.Errors[0], "row 4:") || !strings.HasPrefix(res.Errors[1], "row 6:") {
		t.Errorf("unexpected errors: %v", res.Errors)
	}

	if n := f.countRows(&models.ModuleTest{}, "module_id = ?", module.ID); n != 3 {
		t.Errorf("expected 3 stored questions, got %d", n)
	}
	if n := f.countRows(&models.ModuleTest{}, "module_id = ? AND correct_option = ?", module.ID, "A"); n != 1 {
		t.Errorf("correct option must be stored upper-case")
	}

	t.Run("not a workbook", func(t *testing.T) {
		_, err := svc.Import(ctx, models.UnitModule, module.ID, strings.NewReader("question,A,B"))
		if !errors.Is(err, ErrInvalidWorkbook) {
			t.Fatalf("expected invalid workbook, got %v", err)
		}
	})
}
