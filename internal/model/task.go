package model

import "time"

// TaskStatus is the production status of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "Pending"
	StatusInProgress TaskStatus = "In Progress"
	StatusCompleted  TaskStatus = "Completed"
)

// Next returns the forward transition, if any.
func (s TaskStatus) Next() (TaskStatus, bool) {
	switch s {
	case StatusPending:
		return StatusInProgress, true
	case StatusInProgress:
		return StatusCompleted, true
	default:
		return s, false
	}
}

// CanPause reports whether the task can be sent back to Pending.
func (s TaskStatus) CanPause() bool {
	return s == StatusInProgress
}

func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted
}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a deadline-bound production work item.
type Task struct {
	ID             uint `gorm:"primaryKey"`
	Title          string
	Description    string
	AssignedTo     uint `gorm:"index"`
	AssignedToName string
	AssignedBy     uint
	Deadline       time.Time  `gorm:"index"`
	Status         TaskStatus `gorm:"index;default:Pending"`
	OrderID        *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
