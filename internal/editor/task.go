package editor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"backoffice/internal/access"
	"backoffice/internal/model"
)

var ErrNoTransition = errors.New("no status transition available")

// TaskDraft is the editable form state of a new task.
type TaskDraft struct {
	Title       string
	Description string
	AssigneeID  uint
	Deadline    string
	OrderID     string
}

// Ready reports whether title, assignee and deadline are filled in.
func (d TaskDraft) Ready() bool {
	return strings.TrimSpace(d.Title) != "" && d.AssigneeID != 0 && strings.TrimSpace(d.Deadline) != ""
}

// Build turns the draft into a task. The assignee name is resolved once here
// and stored on the task.
func (d TaskDraft) Build(creator model.User, users []model.User, now time.Time, loc *time.Location) (model.Task, error) {
	if !d.Ready() {
		return model.Task{}, fmt.Errorf("task draft incomplete")
	}
	deadline, err := ParseDeadline(d.Deadline, loc)
	if err != nil {
		return model.Task{}, err
	}

	name := access.UnknownUser
	for _, u := range users {
		if u.ID == d.AssigneeID {
			name = u.DisplayName()
			break
		}
	}

	task := model.Task{
		Title:          strings.TrimSpace(d.Title),
		Description:    strings.TrimSpace(d.Description),
		AssignedTo:     d.AssigneeID,
		AssignedToName: name,
		AssignedBy:     creator.ID,
		Deadline:       deadline.UTC(),
		Status:         model.StatusPending,
		CreatedAt:      now.UTC(),
	}
	if order := strings.TrimSpace(d.OrderID); order != "" {
		task.OrderID = &order
	}
	return task, nil
}

var deadlineLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDeadline accepts RFC3339 or a local date/time as typed into a form.
func ParseDeadline(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid deadline %q, expected YYYY-MM-DD HH:MM", raw)
}

// Advance moves Pending to In Progress and In Progress to Completed.
func Advance(status model.TaskStatus) (model.TaskStatus, error) {
	next, ok := status.Next()
	if !ok {
		return status, ErrNoTransition
	}
	return next, nil
}

// Pause sends an In Progress task back to Pending.
func Pause(status model.TaskStatus) (model.TaskStatus, error) {
	if !status.CanPause() {
		return status, ErrNoTransition
	}
	return model.StatusPending, nil
}
