// Package access decides which tasks and expenses a user may see.
package access

import (
	"strings"
	"time"

	"backoffice/internal/model"
)

// UnknownUser is shown when an expense author no longer resolves.
const UnknownUser = "Unknown User"

// ExpenseFilter narrows the admin expense list. Zero fields are inactive.
// From and To are inclusive YYYY-MM-DD bounds.
type ExpenseFilter struct {
	UserID   uint
	Category string
	From     string
	To       string
}

func (f ExpenseFilter) IsZero() bool {
	return f == ExpenseFilter{}
}

// VisibleTasks returns all tasks for admins and only assigned tasks otherwise.
func VisibleTasks(tasks []model.Task, viewer model.User) []model.Task {
	if viewer.IsAdmin() {
		out := make([]model.Task, len(tasks))
		copy(out, tasks)
		return out
	}
	var out []model.Task
	for _, task := range tasks {
		if task.AssignedTo == viewer.ID {
			out = append(out, task)
		}
	}
	return out
}

// VisibleExpenses applies the role policy. Admins see every expense with the
// author name re-resolved, narrowed by filter. Everyone else sees only their
// own expenses dated today; filter is ignored for them.
func VisibleExpenses(expenses []model.Expense, users []model.User, viewer model.User, filter ExpenseFilter, today time.Time) []model.Expense {
	if !viewer.IsAdmin() {
		day := today.Format(model.DateLayout)
		var out []model.Expense
		for _, e := range expenses {
			if e.UserID == viewer.ID && DayOf(e.Date) == day {
				out = append(out, e)
			}
		}
		return out
	}

	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName()
	}

	var out []model.Expense
	for _, e := range expenses {
		if name, ok := names[e.UserID]; ok {
			e.UserName = name
		} else {
			e.UserName = UnknownUser
		}
		if !filter.match(e) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (f ExpenseFilter) match(e model.Expense) bool {
	if f.UserID != 0 && e.UserID != f.UserID {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	day := DayOf(e.Date)
	if f.From != "" && day < DayOf(f.From) {
		return false
	}
	if f.To != "" && day > DayOf(f.To) {
		return false
	}
	return true
}

// DayOf reduces a date or timestamp string to YYYY-MM-DD.
func DayOf(value string) string {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Format(model.DateLayout)
	}
	if len(value) >= len(model.DateLayout) {
		return value[:len(model.DateLayout)]
	}
	return value
}
