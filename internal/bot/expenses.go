package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"backoffice/internal/access"
	"backoffice/internal/editor"
	"backoffice/internal/export"
	"backoffice/internal/model"
)

func (b *Bot) sendExpenseList(s *session) error {
	viewer := s.expenses.Viewer()
	rows := s.expenses.Visible()
	formatter := export.Formatter{Currency: b.deps.Config.Currency}

	var builder strings.Builder
	if viewer.IsAdmin() {
		builder.WriteString("💸 <b>Expenses</b>\n")
		if summary := export.FilterSummary(s.expenses.Filter(), s.expenses.Users()); summary != "" {
			builder.WriteString("<i>" + escape(summary) + "</i>\n")
		}
	} else {
		builder.WriteString("💸 <b>Your expenses today</b>\n")
	}
	builder.WriteString("\n")
	if len(rows) == 0 {
		builder.WriteString("Nothing recorded.\n")
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, e := range rows {
		builder.WriteString(formatExpense(e, formatter, viewer.IsAdmin()))
		if viewer.IsAdmin() {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✏️ #%d · %s", e.ID, shortTitle(e.Description, 18)), fmt.Sprintf("%s%d", cbEditExpensePrefix, e.ID)),
				tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeleteExpPrefix, e.ID)),
			))
		}
	}
	fmt.Fprintf(&builder, "\n<b>Total: %s</b>", escape(formatter.Amount(export.Total(rows))))

	msg := tgbotapi.NewMessage(s.chatID, builder.String())
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err := b.out.Send(msg)
	return err
}

func formatExpense(e model.Expense, formatter export.Formatter, withUser bool) string {
	line := fmt.Sprintf("#%d %s · %s · %s · <b>%s</b>",
		e.ID,
		escape(export.LocaleDate(e.Date)),
		escape(e.Category),
		escape(e.Description),
		escape(formatter.Amount(e.Amount)),
	)
	if withUser {
		line += " · 👤 " + escape(e.UserName)
	}
	return line + "\n"
}

func (b *Bot) startNewExpense(s *session) error {
	s.tasks.CloseCreate()
	s.expenses.OpenCreate()
	s.setStage(stageExpenseDate)
	text := fmt.Sprintf("🆕 New expense.\n<b>Date</b> (YYYY-MM-DD), skip for %s.", escape(s.expenses.Draft().Date))
	return b.sendWithReplyMarkup(s.chatID, text, skipKeyboard())
}

func (b *Bot) startEditExpense(s *session, id uint) error {
	if err := s.expenses.OpenEdit(id); err != nil {
		return b.replyError(s, err)
	}
	s.tasks.CloseCreate()
	s.setStage(stageExpenseDate)
	text := fmt.Sprintf("✏️ Editing expense #%d. Skip any step to keep the current value.\n<b>Date</b>: %s", id, escape(s.expenses.Draft().Date))
	return b.sendWithReplyMarkup(s.chatID, text, skipKeyboard())
}

func (b *Bot) continueExpense(ctx context.Context, s *session, text string) error {
	skip := text == btnSkip
	draft := s.expenses.Draft()
	switch s.currentStage() {
	case stageExpenseDate:
		if !skip {
			if _, err := editor.ParseDate(text); err != nil {
				return b.sendWithReplyMarkup(s.chatID, "I cannot read that date. Use <code>2026-03-01</code>.", skipKeyboard())
			}
			s.expenses.EditDraft(func(d *editor.ExpenseDraft) { d.Date = text })
		}
		s.setStage(stageExpenseCategory)
		return b.sendWithReplyMarkup(s.chatID, promptWithCurrent("🏷 Category", draft.Category), choiceKeyboard(categoryChoices(s.expenses.Categories()), draft.Category != ""))
	case stageExpenseCategory:
		if !skip {
			s.expenses.EditDraft(func(d *editor.ExpenseDraft) { d.Category = text })
		}
		s.setStage(stageExpenseDescription)
		return b.sendWithReplyMarkup(s.chatID, promptWithCurrent("✏️ Description", draft.Description), keyboardFor(draft.Description))
	case stageExpenseDescription:
		if !skip {
			s.expenses.EditDraft(func(d *editor.ExpenseDraft) { d.Description = text })
		}
		s.setStage(stageExpenseAmount)
		return b.sendWithReplyMarkup(s.chatID, promptWithCurrent("💰 Amount", draft.Amount), skipKeyboard())
	case stageExpenseAmount:
		if !skip {
			s.expenses.EditDraft(func(d *editor.ExpenseDraft) { d.Amount = text })
		}
		s.setStage(stageExpenseConfirm)
		return b.sendWithReplyMarkup(s.chatID, expenseDraftSummary(s.expenses.Draft(), export.Formatter{Currency: b.deps.Config.Currency}), saveKeyboard())
	case stageExpenseConfirm:
		if text != btnSave {
			return b.sendWithReplyMarkup(s.chatID, "Press «Save» or cancel.", saveKeyboard())
		}
		if !s.expenses.CanSubmit() {
			return b.sendWithReplyMarkup(s.chatID, "Date, category and description are required.", saveKeyboard())
		}
		err := s.expenses.Submit(ctx)
		s.setStage(stageNone)
		if err != nil {
			return b.replyError(s, err)
		}
		if err := b.load(ctx, s); err != nil {
			return err
		}
		return b.sendText(s.chatID, "✅ Expense saved.")
	}
	return nil
}

func promptWithCurrent(label, current string) string {
	if current == "" {
		return "<b>" + label + "</b>?"
	}
	return fmt.Sprintf("<b>%s</b>? Current: %s", label, escape(current))
}

func keyboardFor(current string) tgbotapi.ReplyKeyboardMarkup {
	if current == "" {
		return cancelKeyboard()
	}
	return skipKeyboard()
}

func categoryChoices(categories []model.ExpenseCategory) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, c.Name)
	}
	return out
}

func expenseDraftSummary(d editor.ExpenseDraft, formatter export.Formatter) string {
	return fmt.Sprintf("Check the expense:\n• 🗓 %s\n• 🏷 %s\n• ✏️ %s\n• 💰 %s",
		escape(d.Date),
		escape(d.Category),
		escape(d.Description),
		escape(formatter.Amount(editor.ParseAmount(d.Amount))),
	)
}

func (b *Bot) askDeleteExpense(s *session, id uint) error {
	e, err := s.expenses.RequestDelete(id)
	if err != nil {
		return b.replyError(s, err)
	}
	text := fmt.Sprintf("Delete expense #%d <b>%s</b> (%s)?", e.ID, escape(e.Description), escape(export.FormatAmount(e.Amount)))
	return b.askConfirmation(s.chatID, text, targetExpense, e.ID)
}

func (b *Bot) handleFilter(s *session, args string) error {
	if args == "" {
		summary := export.FilterSummary(s.expenses.Filter(), s.expenses.Users())
		if summary == "" {
			summary = "None"
		}
		return b.sendText(s.chatID, "🔎 Filters: "+escape(summary))
	}
	filter, err := parseFilter(s.expenses.Filter(), args, s.expenses.Users())
	if err != nil {
		return b.sendText(s.chatID, escape(err.Error()))
	}
	if err := s.expenses.SetFilter(filter); err != nil {
		return b.replyError(s, err)
	}
	return b.sendExpenseList(s)
}

// parseFilter applies one "/filter <field> <value>" step to current.
func parseFilter(current access.ExpenseFilter, args string, users []model.User) (access.ExpenseFilter, error) {
	field, value, _ := strings.Cut(strings.TrimSpace(args), " ")
	value = strings.TrimSpace(value)
	switch strings.ToLower(field) {
	case "clear":
		return access.ExpenseFilter{}, nil
	case "user":
		if value == "" || value == "all" {
			current.UserID = 0
			return current, nil
		}
		id, ok := resolveUser(value, users)
		if !ok {
			return current, fmt.Errorf("unknown user %q", value)
		}
		current.UserID = id
	case "category":
		if value == "all" {
			value = ""
		}
		current.Category = value
	case "from", "to":
		date := ""
		if value != "" {
			parsed, err := editor.ParseDate(value)
			if err != nil {
				return current, fmt.Errorf("invalid date %q", value)
			}
			date = parsed
		}
		if strings.EqualFold(field, "from") {
			current.From = date
		} else {
			current.To = date
		}
	default:
		return current, errors.New("usage: /filter user|category|from|to <value>, or /filter clear")
	}
	return current, nil
}

// handleExport sends the expenses the viewer can currently see. Regular
// users get their own entries for today.
func (b *Bot) handleExport(ctx context.Context, s *session) error {
	artifact := s.expenses.ExportCSV(ctx)
	caption := fmt.Sprintf("%d rows", len(s.expenses.Visible()))
	if b.deps.Web != nil && b.deps.Web.Accepting() {
		token := b.deps.Web.Store(export.CSVDocument(artifact.Filename, artifact.Content))
		caption += "\n" + b.deps.Web.DownloadURL(token)
	}
	doc := tgbotapi.NewDocument(s.chatID, tgbotapi.FileBytes{Name: artifact.Filename, Bytes: artifact.Content})
	doc.Caption = caption
	_, err := b.out.Send(doc)
	return err
}

func (b *Bot) handlePrint(ctx context.Context, s *session) error {
	err := s.expenses.Print(ctx, b.printOpener(s.chatID))
	if err != nil && !errors.Is(err, export.ErrSurfaceBlocked) {
		return b.replyError(s, err)
	}
	return nil
}

func (b *Bot) sendCategoryList(s *session) error {
	categories := s.expenses.Categories()
	if len(categories) == 0 {
		return b.sendText(s.chatID, "🏷 No categories yet.")
	}
	var builder strings.Builder
	builder.WriteString("🏷 <b>Categories</b>\n")
	for _, c := range categories {
		fmt.Fprintf(&builder, "#%d %s\n", c.ID, escape(c.Name))
	}
	return b.sendText(s.chatID, builder.String())
}

func (b *Bot) handleAddCategory(ctx context.Context, s *session, args string) error {
	draft := editor.CategoryDraft{Name: args}
	if !draft.Ready() {
		return b.sendText(s.chatID, "Usage: /addcategory &lt;name&gt;")
	}
	if err := s.expenses.SubmitCategory(ctx, 0, draft); err != nil {
		return b.replyError(s, err)
	}
	if err := b.load(ctx, s); err != nil {
		return err
	}
	return b.sendCategoryList(s)
}

func (b *Bot) handleRenameCategory(ctx context.Context, s *session, args string) error {
	rawID, name, _ := strings.Cut(args, " ")
	id, err := parseID(rawID)
	draft := editor.CategoryDraft{Name: name}
	if err != nil || !draft.Ready() {
		return b.sendText(s.chatID, "Usage: /renamecategory &lt;id&gt; &lt;name&gt;")
	}
	if err := s.expenses.SubmitCategory(ctx, id, draft); err != nil {
		return b.replyError(s, err)
	}
	if err := b.load(ctx, s); err != nil {
		return err
	}
	return b.sendCategoryList(s)
}

func (b *Bot) handleDeleteCategory(s *session, args string) error {
	id, err := parseID(args)
	if err != nil {
		return b.sendText(s.chatID, "Usage: /delcategory &lt;id&gt;")
	}
	category, err := s.expenses.RequestDeleteCategory(id)
	if err != nil {
		return b.replyError(s, err)
	}
	text := fmt.Sprintf("Delete category #%d <b>%s</b>? Existing expenses keep the label.", category.ID, escape(category.Name))
	return b.askConfirmation(s.chatID, text, targetCategory, category.ID)
}
