package models

import (
	"time"
)

type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
	RoleSupport UserRole = "SUPPORT"
)

// IsStaff reports whether the role may work on any support ticket.
func (r UserRole) IsStaff() bool {
	return r == RoleSupport || r == RoleAdmin
}

type User struct {
	ID          uint     `json:"id" gorm:"primaryKey"`
	FullName    string   `json:"full_name" gorm:"not null;size:200"`
	PhoneNumber string   `json:"phone_number" gorm:"size:50"`
	Username    string   `json:"username" gorm:"uniqueIndex;not null;size:150"`
	Role        UserRole `json:"role" gorm:"not null;size:20;index"`
	ActiveTerm  int      `json:"active_term" gorm:"default:0"`
	TypeID      *uint    `json:"type_id"`
	IsActive    bool     `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// PublicProfile is the part of a user that other participants of a ticket may see.
type PublicProfile struct {
	ID          uint     `json:"id"`
	FullName    string   `json:"full_name"`
	Username    string   `json:"username"`
	PhoneNumber string   `json:"phone_number"`
	Role        UserRole `json:"role"`
}

func (u *User) Profile() *PublicProfile {
	if u == nil {
		return nil
	}
	return &PublicProfile{
		ID:          u.ID,
		FullName:    u.FullName,
		Username:    u.Username,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
	}
}
