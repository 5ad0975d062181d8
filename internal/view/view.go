// Package view composes scoping, editing, countdowns and exports into the
// task and expense screens. Views hold only ephemeral state; records come
// in as snapshots through Refresh.
package view

import (
	"context"
	"errors"

	"backoffice/internal/editor"
	"backoffice/internal/model"
)

var (
	ErrForbidden = errors.New("not allowed for this user")
	ErrNotFound  = errors.New("record not visible")
	ErrNotReady  = errors.New("required fields missing")
)

// TaskStore persists task changes.
type TaskStore interface {
	CreateTask(ctx context.Context, task *model.Task) error
	UpdateTaskStatus(ctx context.Context, id uint, status model.TaskStatus) error
	DeleteTask(ctx context.Context, id uint) error
}

// ExpenseStore persists expense changes.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, expense *model.Expense) error
	UpdateExpense(ctx context.Context, id uint, update editor.ExpenseUpdate) error
	DeleteExpense(ctx context.Context, id uint) error
}

// CategoryStore persists category changes.
type CategoryStore interface {
	CreateCategory(ctx context.Context, name string) error
	RenameCategory(ctx context.Context, id uint, name string) error
	DeleteCategory(ctx context.Context, id uint) error
}
