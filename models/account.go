package models

import (
	"strings"
	"time"
)

// Account is a platform identity. Participants/applicants may exist without
// one (competition-local access credentials instead).
type Account struct {
	ID                  string    `gorm:"primaryKey;type:uuid" json:"id"`
	Email               string    `gorm:"uniqueIndex;not null" json:"email"`
	Username            string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash        string    `gorm:"not null" json:"-"`
	IsStaff             bool      `gorm:"default:false" json:"is_staff"`
	IsActive            bool      `gorm:"default:true" json:"is_active"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	LastPasswordChanged time.Time `json:"last_password_changed"`
}

// NormalizeEmail lowercases the domain part, matching how emails are
// compared at signup and login. The local part is kept as-is.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}
