package model

import "time"

// Sale is an order a task can be linked to.
type Sale struct {
	ID        string `gorm:"primaryKey"`
	Customer  string
	Total     float64
	CreatedAt time.Time
}

// ShortID is the truncated identifier shown next to linked tasks.
func (s Sale) ShortID() string {
	if len(s.ID) <= 8 {
		return s.ID
	}
	return s.ID[:8]
}
