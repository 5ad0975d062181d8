package model

import "time"

// DateLayout is the storage format of expense dates.
const DateLayout = "2006-01-02"

// Expense is a recorded business expenditure.
type Expense struct {
	ID          uint `gorm:"primaryKey"`
	UserID      uint `gorm:"index"`
	UserName    string
	Date        string `gorm:"index"`
	Category    string `gorm:"index"`
	Description string
	Amount      float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExpenseCategory is an admin-managed label. Names are not unique.
type ExpenseCategory struct {
	ID        uint `gorm:"primaryKey"`
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
