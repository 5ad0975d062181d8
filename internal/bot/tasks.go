package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"backoffice/internal/deadline"
	"backoffice/internal/editor"
	"backoffice/internal/model"
	"backoffice/internal/view"
)

const deadlineHint = "<code>2026-03-01 17:00</code>"

func (b *Bot) sendTaskList(s *session) error {
	rows := s.tasks.Rows(b.now())
	if len(rows) == 0 {
		return b.sendText(s.chatID, "📋 No tasks yet.")
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Production tasks</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		builder.WriteString(formatTaskRow(row))
		builder.WriteString("\n")
		if buttonRow := taskButtons(row); len(buttonRow) > 0 {
			buttons = append(buttons, buttonRow)
		}
	}

	msg := tgbotapi.NewMessage(s.chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err := b.out.Send(msg)
	return err
}

func formatTaskRow(row view.TaskRow) string {
	icon := "⏳"
	switch {
	case row.Task.Status == model.StatusCompleted:
		icon = "✅"
	case row.Countdown.IsOverdue():
		icon = "⚠️"
	case row.Task.Status == model.StatusInProgress:
		icon = "🔧"
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "%s #%d <b>%s</b> · %s\n", icon, row.Task.ID, escape(row.Task.Title), escape(string(row.Task.Status)))
	parts := []string{escape(formatCountdown(row))}
	if row.Task.AssignedToName != "" {
		parts = append(parts, "👤 "+escape(row.Task.AssignedToName))
	}
	if row.Order != "" {
		parts = append(parts, "🧾 "+escape(row.Order))
	}
	builder.WriteString(strings.Join(parts, " · "))
	builder.WriteString("\n")
	if row.Task.Description != "" {
		builder.WriteString("<i>" + escape(row.Task.Description) + "</i>\n")
	}
	return builder.String()
}

func formatCountdown(row view.TaskRow) string {
	if row.Task.Status == model.StatusCompleted {
		return "done"
	}
	return row.Countdown.String()
}

func taskButtons(row view.TaskRow) []tgbotapi.InlineKeyboardButton {
	var buttons []tgbotapi.InlineKeyboardButton
	id := row.Task.ID
	if row.Actions.Advance {
		label := fmt.Sprintf("▶️ #%d → %s", id, row.NextStatus)
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", cbAdvancePrefix, id)))
	}
	if row.Actions.Pause {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("⏸ #%d", id), fmt.Sprintf("%s%d", cbPausePrefix, id)))
	}
	if row.Actions.Delete {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 #%d", id), fmt.Sprintf("%s%d", cbDeleteTaskPrefix, id)))
	}
	return buttons
}

func (b *Bot) changeStatus(ctx context.Context, s *session, id uint, change func(context.Context, uint) (model.TaskStatus, error)) error {
	if _, err := change(ctx, id); err != nil {
		return b.replyError(s, err)
	}
	if err := b.load(ctx, s); err != nil {
		return err
	}
	return b.sendTaskList(s)
}

func (b *Bot) askDeleteTask(s *session, id uint) error {
	task, err := s.tasks.RequestDelete(id)
	if err != nil {
		return b.replyError(s, err)
	}
	text := fmt.Sprintf("Delete task #%d <b>%s</b>?", task.ID, escape(task.Title))
	return b.askConfirmation(s.chatID, text, targetTask, task.ID)
}

func (b *Bot) startNewTask(s *session) error {
	if err := s.tasks.OpenCreate(); err != nil {
		return b.replyError(s, err)
	}
	s.expenses.CloseDialog()
	s.setStage(stageTaskTitle)
	return b.sendWithReplyMarkup(s.chatID, "🆕 New task.\n<b>Step 1:</b> what is the title?", cancelKeyboard())
}

func (b *Bot) continueTask(ctx context.Context, s *session, text string) error {
	skip := text == btnSkip
	switch s.currentStage() {
	case stageTaskTitle:
		if text == "" {
			return b.sendWithReplyMarkup(s.chatID, "The title cannot be empty.", cancelKeyboard())
		}
		s.tasks.EditDraft(func(d *editor.TaskDraft) { d.Title = text })
		s.setStage(stageTaskDescription)
		return b.sendWithReplyMarkup(s.chatID, "✏️ Add a short description (or skip).", skipKeyboard())
	case stageTaskDescription:
		if !skip {
			s.tasks.EditDraft(func(d *editor.TaskDraft) { d.Description = text })
		}
		s.setStage(stageTaskAssignee)
		return b.sendWithReplyMarkup(s.chatID, "👤 Who should do it?", choiceKeyboard(userChoices(s.tasks.Users()), false))
	case stageTaskAssignee:
		id, ok := resolveUser(text, s.tasks.Users())
		if !ok {
			return b.sendWithReplyMarkup(s.chatID, "I do not know that user. Pick one from the list.", choiceKeyboard(userChoices(s.tasks.Users()), false))
		}
		s.tasks.EditDraft(func(d *editor.TaskDraft) { d.AssigneeID = id })
		s.setStage(stageTaskDeadline)
		return b.sendWithReplyMarkup(s.chatID, "⏰ Deadline, for example "+deadlineHint+".", cancelKeyboard())
	case stageTaskDeadline:
		if _, err := editor.ParseDeadline(text, b.location()); err != nil {
			return b.sendWithReplyMarkup(s.chatID, "I cannot read that date. Use "+deadlineHint+".", cancelKeyboard())
		}
		s.tasks.EditDraft(func(d *editor.TaskDraft) { d.Deadline = text })
		b.refresh(ctx, s)
		s.setStage(stageTaskOrder)
		return b.sendWithReplyMarkup(s.chatID, "🧾 Link it to an order (or skip).", choiceKeyboard(saleChoices(s.tasks.Sales()), true))
	case stageTaskOrder:
		if !skip {
			orderID, ok := resolveSale(text, s.tasks.Sales())
			if !ok {
				return b.sendWithReplyMarkup(s.chatID, "Unknown order. Pick one from the list or skip.", choiceKeyboard(saleChoices(s.tasks.Sales()), true))
			}
			s.tasks.EditDraft(func(d *editor.TaskDraft) { d.OrderID = orderID })
		}
		s.setStage(stageTaskConfirm)
		return b.sendWithReplyMarkup(s.chatID, taskDraftSummary(s.tasks.Draft(), s.tasks.Users()), saveKeyboard())
	case stageTaskConfirm:
		if text != btnSave {
			return b.sendWithReplyMarkup(s.chatID, "Press «Save» or cancel.", saveKeyboard())
		}
		if !s.tasks.CanSubmit() {
			return b.sendWithReplyMarkup(s.chatID, "Title, assignee and deadline are required.", saveKeyboard())
		}
		task, err := s.tasks.SubmitCreate(ctx)
		s.setStage(stageNone)
		if err != nil {
			return b.replyError(s, err)
		}
		if err := b.load(ctx, s); err != nil {
			return err
		}
		return b.sendText(s.chatID, fmt.Sprintf("✅ Task <b>%s</b> created for %s.", escape(task.Title), escape(task.AssignedToName)))
	}
	return nil
}

func taskDraftSummary(d editor.TaskDraft, users []model.User) string {
	assignee := "?"
	for _, u := range users {
		if u.ID == d.AssigneeID {
			assignee = u.DisplayName()
		}
	}
	var builder strings.Builder
	builder.WriteString("Check the task:\n")
	fmt.Fprintf(&builder, "• <b>%s</b>\n", escape(d.Title))
	if d.Description != "" {
		fmt.Fprintf(&builder, "• %s\n", escape(d.Description))
	}
	fmt.Fprintf(&builder, "• 👤 %s\n• ⏰ %s\n", escape(assignee), escape(d.Deadline))
	if d.OrderID != "" {
		fmt.Fprintf(&builder, "• 🧾 #%s\n", escape(model.Sale{ID: d.OrderID}.ShortID()))
	}
	return builder.String()
}

func userChoices(users []model.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.DisplayName())
	}
	return out
}

// resolveUser matches a display name, @username or numeric id.
func resolveUser(input string, users []model.User) (uint, bool) {
	input = strings.TrimSpace(input)
	if id, err := parseID(input); err == nil {
		for _, u := range users {
			if u.ID == id {
				return u.ID, true
			}
		}
	}
	name := strings.TrimPrefix(input, "@")
	for _, u := range users {
		if strings.EqualFold(u.DisplayName(), input) || (u.Username != "" && strings.EqualFold(u.Username, name)) {
			return u.ID, true
		}
	}
	return 0, false
}

func saleChoices(sales []model.Sale) []string {
	out := make([]string, 0, len(sales))
	for _, sale := range sales {
		out = append(out, "#"+sale.ShortID()+" "+sale.Customer)
	}
	return out
}

// resolveSale accepts a sale id prefix, with or without the leading #.
func resolveSale(input string, sales []model.Sale) (string, bool) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return "", false
	}
	token := strings.TrimPrefix(fields[0], "#")
	if token == "" {
		return "", false
	}
	for _, sale := range sales {
		if strings.HasPrefix(sale.ID, token) {
			return sale.ID, true
		}
	}
	return "", false
}

func (b *Bot) handleWatch(s *session, args string) error {
	id, err := parseID(args)
	if err != nil {
		return b.sendText(s.chatID, "Usage: /watch &lt;task id&gt;")
	}
	task, err := s.tasks.Task(id)
	if err != nil {
		return b.replyError(s, err)
	}

	s.mu.Lock()
	previous := s.watching
	s.mu.Unlock()
	if previous != 0 {
		s.tasks.Unwatch(previous)
	}

	msg := tgbotapi.NewMessage(s.chatID, watchText(task, deadline.Evaluate(task.Deadline, b.now())))
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := b.out.Send(msg)
	if err != nil {
		return err
	}

	err = s.tasks.Watch(id, func(current model.Task, c deadline.Countdown) {
		edit := tgbotapi.NewEditMessageText(s.chatID, sent.MessageID, watchText(current, c))
		edit.ParseMode = tgbotapi.ModeHTML
		if _, err := b.out.Send(edit); err != nil {
			// Telegram rejects edits that do not change the text.
			b.logger.Debug().Err(err).Uint("task", id).Msg("edit countdown")
		}
	})
	if err != nil {
		return b.replyError(s, err)
	}
	s.mu.Lock()
	s.watching = id
	s.mu.Unlock()
	return nil
}

func (b *Bot) handleUnwatch(s *session) error {
	s.mu.Lock()
	id := s.watching
	s.watching = 0
	s.mu.Unlock()
	if id == 0 {
		return b.sendText(s.chatID, "No countdown is running.")
	}
	s.tasks.Unwatch(id)
	return b.sendText(s.chatID, fmt.Sprintf("⏹ Stopped the countdown for task #%d.", id))
}

func watchText(task model.Task, c deadline.Countdown) string {
	return fmt.Sprintf("⏱ #%d <b>%s</b>\n%s · %s", task.ID, escape(task.Title), escape(string(task.Status)), escape(c.String()))
}
