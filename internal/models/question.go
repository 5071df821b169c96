package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Option letters accepted as a correct answer.
var OptionLetters = []string{"A", "B", "C", "D"}

// QuestionFields is shared by lesson and module questions.
type QuestionFields struct {
	QuestionText  string `json:"question_text" gorm:"type:text;not null"`
	OptionA       string `json:"option_a" gorm:"type:text;not null"`
	OptionB       string `json:"option_b" gorm:"type:text;not null"`
	OptionC       string `json:"option_c" gorm:"type:text;not null"`
	OptionD       string `json:"option_d" gorm:"type:text;not null"`
	CorrectOption string `json:"correct_option" gorm:"size:10;not null"`
}

// NormalizeOption upper-cases and trims an option letter.
func NormalizeOption(letter string) string {
	return strings.ToUpper(strings.TrimSpace(letter))
}

type LessonTest struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	LessonID uint `json:"lesson_id" gorm:"not null;index"`
	QuestionFields

	CreatedAt time.Time `json:"created_at"`
}

func (LessonTest) TableName() string {
	return "lesson_test"
}

func (q *LessonTest) BeforeSave(tx *gorm.DB) error {
	q.CorrectOption = NormalizeOption(q.CorrectOption)
	return nil
}

type ModuleTest struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	ModuleID uint `json:"module_id" gorm:"not null;index"`
	QuestionFields

	CreatedAt time.Time `json:"created_at"`
}

func (ModuleTest) TableName() string {
	return "module_test"
}

func (q *ModuleTest) BeforeSave(tx *gorm.DB) error {
	q.CorrectOption = NormalizeOption(q.CorrectOption)
	return nil
}

// Question is the unit-agnostic view of a lesson or module question.
type Question struct {
	ID     uint `json:"id"`
	UnitID uint `json:"unit_id"`
	QuestionFields
}

// QuestionView hides the correct option from students taking a quiz.
type QuestionView struct {
	ID           uint   `json:"id"`
	UnitID       uint   `json:"unit_id"`
	QuestionText string `json:"question_text"`
	OptionA      string `json:"option_a"`
	OptionB      string `json:"option_b"`
	OptionC      string `json:"option_c"`
	OptionD      string `json:"option_d"`
}

func (q Question) View() QuestionView {
	return QuestionView{
		ID:           q.ID,
		UnitID:       q.UnitID,
		QuestionText: q.QuestionText,
		OptionA:      q.OptionA,
		OptionB:      q.OptionB,
		OptionC:      q.OptionC,
		OptionD:      q.OptionD,
	}
}
