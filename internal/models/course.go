package models

import "time"

type Course struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	TypeID   *uint  `json:"type_id" gorm:"index"`
	Title    string `json:"title" gorm:"not null;size:200"`
	IsActive bool   `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
}

func (Course) TableName() string {
	return "course"
}

// CourseModule is ordered within its course by Order.
type CourseModule struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	CourseID    uint   `json:"course_id" gorm:"not null;index:idx_course_module_order,priority:1"`
	Title       string `json:"title" gorm:"not null;size:200"`
	Description string `json:"description" gorm:"type:text"`
	Order       int    `json:"order" gorm:"column:order;not null;index:idx_course_module_order,priority:2"`
	IsActive    bool   `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
}

func (CourseModule) TableName() string {
	return "course_module"
}

// Lesson is ordered within its course module by Order.
type Lesson struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	CourseModuleID uint   `json:"course_module_id" gorm:"not null;index:idx_lesson_order,priority:1"`
	Title          string `json:"title" gorm:"not null;size:200"`
	Description    string `json:"description" gorm:"type:text"`
	VideoURL       string `json:"video_url" gorm:"size:500"`
	Content        string `json:"content" gorm:"type:text"`
	Duration       int    `json:"duration"`
	Order          int    `json:"order" gorm:"column:order;not null;index:idx_lesson_order,priority:2"`
	CoverURL       string `json:"cover_url" gorm:"size:500"`
	IsActive       bool   `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
}

func (Lesson) TableName() string {
	return "lesson"
}
