package models

import (
	"time"

	"gorm.io/datatypes"
)

type UnitType string

const (
	UnitLesson UnitType = "lesson"
	UnitModule UnitType = "module"
)

func (t UnitType) Valid() bool {
	return t == UnitLesson || t == UnitModule
}

// Unit is the unit-agnostic view of a lesson or a course module.
// ParentID is the course module of a lesson or the course of a module.
type Unit struct {
	Type     UnitType `json:"type"`
	ID       uint     `json:"id"`
	ParentID uint     `json:"parent_id"`
	Order    int      `json:"order"`
	Title    string   `json:"title"`
}

type LessonTestProgress struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	StudentID   uint    `json:"student_id" gorm:"not null;uniqueIndex:uq_lesson_progress,priority:1"`
	LessonID    uint    `json:"lesson_id" gorm:"not null;uniqueIndex:uq_lesson_progress,priority:2"`
	IsCompleted bool    `json:"is_completed" gorm:"default:false"`
	BestScore   float64 `json:"best_score" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LessonTestProgress) TableName() string {
	return "lesson_test_progress"
}

type ModuleTestProgress struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	StudentID   uint    `json:"student_id" gorm:"not null;uniqueIndex:uq_module_progress,priority:1"`
	ModuleID    uint    `json:"module_id" gorm:"not null;uniqueIndex:uq_module_progress,priority:2"`
	IsCompleted bool    `json:"is_completed" gorm:"default:false"`
	BestScore   float64 `json:"best_score" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ModuleTestProgress) TableName() string {
	return "module_test_progress"
}

// Progress is the unit-agnostic view of a progress row.
type Progress struct {
	ID          uint     `json:"id"`
	UnitType    UnitType `json:"unit_type"`
	StudentID   uint     `json:"student_id"`
	UnitID      uint     `json:"unit_id"`
	IsCompleted bool     `json:"is_completed"`
	BestScore   float64  `json:"best_score"`
}

// LessonStudent marks that a student advanced to a new lesson on Date.
type LessonStudent struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	StudentID uint           `json:"student_id" gorm:"not null;uniqueIndex:uq_lesson_student_day,priority:1"`
	Date      datatypes.Date `json:"date" gorm:"not null;uniqueIndex:uq_lesson_student_day,priority:2"`

	CreatedAt time.Time `json:"created_at"`
}

func (LessonStudent) TableName() string {
	return "lesson_student"
}
