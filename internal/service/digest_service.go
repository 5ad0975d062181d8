package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"backoffice/internal/access"
	"backoffice/internal/deadline"
	"backoffice/internal/export"
	"backoffice/internal/model"
	"backoffice/internal/repository"
)

// DigestService builds the daily summary each user receives.
type DigestService struct {
	taskRepo    *repository.TaskRepository
	expenseRepo *repository.ExpenseRepository
	userRepo    *repository.UserRepository
	formatter   export.Formatter
}

func NewDigestService(taskRepo *repository.TaskRepository, expenseRepo *repository.ExpenseRepository, userRepo *repository.UserRepository, formatter export.Formatter) *DigestService {
	return &DigestService{taskRepo: taskRepo, expenseRepo: expenseRepo, userRepo: userRepo, formatter: formatter}
}

// Summary renders an HTML-formatted Telegram message for user.
func (s *DigestService) Summary(ctx context.Context, user model.User, now time.Time) (string, error) {
	tasks, err := s.taskRepo.ListAll(ctx)
	if err != nil {
		return "", err
	}
	expenses, err := s.expenseRepo.ListAll(ctx)
	if err != nil {
		return "", err
	}
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return "", err
	}

	var open []model.Task
	for _, task := range access.VisibleTasks(tasks, user) {
		if !task.Status.Terminal() {
			open = append(open, task)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].Deadline.Before(open[j].Deadline)
	})

	// Non-admins are limited to today regardless of the filter.
	day := now.Format(model.DateLayout)
	today := access.VisibleExpenses(expenses, users, user, access.ExpenseFilter{From: day, To: day}, now)

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("Mon, 2 Jan 2006")))

	builder.WriteString("🔥 <b>Open tasks</b>\n")
	if len(open) == 0 {
		builder.WriteString("none\n")
	} else {
		for _, task := range open {
			builder.WriteString(formatTask(task, now))
		}
	}

	builder.WriteString("\n💸 <b>Expenses today</b>\n")
	builder.WriteString(fmt.Sprintf("%d recorded, total %s\n", len(today), html.EscapeString(s.formatter.Amount(export.Total(today)))))

	return builder.String(), nil
}

func formatTask(task model.Task, now time.Time) string {
	icon := "⏳"
	countdown := deadline.Evaluate(task.Deadline, now)
	switch {
	case countdown.IsOverdue():
		icon = "⚠️"
	case task.Status == model.StatusInProgress:
		icon = "🔧"
	}
	line := fmt.Sprintf("%s <b>%s</b> (%s)", icon, html.EscapeString(task.Title), html.EscapeString(countdown.String()))
	if task.AssignedToName != "" {
		line += " · " + html.EscapeString(task.AssignedToName)
	}
	return line + "\n"
}
