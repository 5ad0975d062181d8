package model

import (
	"fmt"
	"strings"
	"time"
)

// Role decides which records a user may see and which actions are offered.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User stores Telegram user metadata and the back-office role.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string `gorm:"index"`
	Role       Role   `gorm:"default:user"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName prefers the username, then the full name.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.Username); name != "" {
		return name
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	return fmt.Sprintf("user#%d", u.ID)
}
