package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"backoffice/internal/config"
	"backoffice/internal/deadline"
	"backoffice/internal/editor"
	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/internal/service"
	"backoffice/internal/view"
	"backoffice/internal/web"
)

const (
	cbAdvancePrefix     = "adv:"
	cbPausePrefix       = "pause:"
	cbDeleteTaskPrefix  = "deltask:"
	cbEditExpensePrefix = "editexp:"
	cbDeleteExpPrefix   = "delexp:"
	cbConfirmPrefix     = "confirm:"
	cbCancelPrefix      = "cancel:"
)

// refreshedCommands reload the session first so lists and pickers include
// changes made outside this process, such as by the CLI.
var refreshedCommands = map[string]bool{
	"tasks":      true,
	"newtask":    true,
	"watch":      true,
	"expenses":   true,
	"newexpense": true,
	"filter":     true,
	"export":     true,
	"print":      true,
	"categories": true,
	"digest":     true,
}

const (
	targetTask     = "task"
	targetExpense  = "expense"
	targetCategory = "category"
)

const (
	btnSkip           = "⏭️ Keep / skip"
	btnSave           = "✅ Save"
	btnCancelDialog   = "⏪ Cancel input"
	menuLabelTasks    = "📋 Tasks"
	menuLabelExpenses = "💸 Expenses"
	menuLabelNewExp   = "➕ New expense"
	menuLabelHelp     = "ℹ️ Help"
)

// sender is the subset of the Bot API used to talk to chats.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Deps wires the bot to storage and services.
type Deps struct {
	Users      *repository.UserRepository
	Tasks      *service.TaskService
	Expenses   *service.ExpenseService
	Categories *service.CategoryService
	Digest     *service.DigestService
	Hub        *service.Hub
	Watcher    *deadline.Watcher
	Web        *web.Server
	Config     config.Config
	Logger     zerolog.Logger
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api    *tgbotapi.BotAPI
	out    sender
	deps   Deps
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[int64]*session
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	deps.Logger.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	b := newBot(api, deps)
	b.api = api
	return b, nil
}

func newBot(out sender, deps Deps) *Bot {
	return &Bot{
		out:      out,
		deps:     deps,
		logger:   deps.Logger.With().Str("component", "bot").Logger(),
		now:      time.Now,
		sessions: make(map[int64]*session),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	changes, unsubscribe := b.deps.Hub.Subscribe()
	defer unsubscribe()
	go b.followChanges(ctx, changes)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.logger.Error().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.logger.Error().Err(err).Msg("handle message")
			}
		}
	}

	b.Close()
	return nil
}

// Close stops every live countdown and drops all sessions.
func (b *Bot) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for chatID, s := range b.sessions {
		s.close()
		delete(b.sessions, chatID)
	}
}

func (b *Bot) followChanges(ctx context.Context, changes <-chan service.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			// Collapse a burst into one reload.
		drain:
			for {
				select {
				case <-changes:
				default:
					break drain
				}
			}
			if err := b.reload(ctx); err != nil {
				b.logger.Error().Err(err).Str("entity", string(change.Entity)).Msg("reload sessions")
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	s, err := b.session(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}

	if !msg.IsCommand() && strings.TrimSpace(msg.Text) == btnCancelDialog {
		s.cancelInput()
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if msg.IsCommand() {
		b.logger.Info().Int64("from", msg.From.ID).Str("command", msg.Command()).Str("args", msg.CommandArguments()).Msg("command")
		return b.handleCommand(ctx, s, msg)
	}

	if s.inConversation() {
		return b.handleConversation(ctx, s, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, s, msg); handled {
		return err
	}

	return b.sendText(msg.Chat.ID, "I did not understand that. Try /help for the list of commands.")
}

func (b *Bot) handleCommand(ctx context.Context, s *session, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if refreshedCommands[msg.Command()] {
		b.refresh(ctx, s)
	}
	switch msg.Command() {
	case "start":
		return b.handleStart(s, msg)
	case "help":
		return b.sendText(s.chatID, helpText(s.tasks.Viewer()))
	case "tasks":
		return b.sendTaskList(s)
	case "newtask":
		return b.startNewTask(s)
	case "watch":
		return b.handleWatch(s, args)
	case "unwatch":
		return b.handleUnwatch(s)
	case "expenses":
		return b.sendExpenseList(s)
	case "newexpense":
		return b.startNewExpense(s)
	case "editexpense":
		id, err := parseID(args)
		if err != nil {
			return b.sendText(s.chatID, "Usage: /editexpense &lt;id&gt;")
		}
		return b.startEditExpense(s, id)
	case "filter":
		return b.handleFilter(s, args)
	case "export":
		return b.handleExport(ctx, s)
	case "print":
		return b.handlePrint(ctx, s)
	case "categories":
		return b.sendCategoryList(s)
	case "addcategory":
		return b.handleAddCategory(ctx, s, args)
	case "renamecategory":
		return b.handleRenameCategory(ctx, s, args)
	case "delcategory":
		return b.handleDeleteCategory(s, args)
	case "digest":
		return b.handleDigest(ctx, s)
	case "cancel":
		s.cancelInput()
		return b.sendText(s.chatID, "⏪ Input cancelled.")
	default:
		return b.sendText(s.chatID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(s *session, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep track of production tasks and expenses.</b>\n\n%s", escape(name), helpText(s.tasks.Viewer()))
	return b.sendText(s.chatID, text)
}

func helpText(viewer model.User) string {
	var builder strings.Builder
	builder.WriteString("ℹ️ <b>Commands</b>\n")
	builder.WriteString("• /tasks — production tasks with countdowns\n")
	builder.WriteString("• /watch &lt;id&gt; — live countdown for a task, /unwatch to stop\n")
	builder.WriteString("• /expenses — expenses you can see\n")
	builder.WriteString("• /newexpense — record an expense\n")
	builder.WriteString("• /categories — expense categories\n")
	builder.WriteString("• /export — CSV of the expenses you see\n")
	builder.WriteString("• /print — printable expense report\n")
	builder.WriteString("• /digest — today's summary\n")
	builder.WriteString("• /cancel — cancel the current input\n")
	if viewer.IsAdmin() {
		builder.WriteString("\n🛠 <b>Admin</b>\n")
		builder.WriteString("• /newtask — create a task\n")
		builder.WriteString("• /editexpense &lt;id&gt; — edit an expense\n")
		builder.WriteString("• /filter user|category|from|to &lt;value&gt;, /filter clear\n")
		builder.WriteString("• /addcategory &lt;name&gt;, /renamecategory &lt;id&gt; &lt;name&gt;, /delcategory &lt;id&gt;\n")
	}
	return builder.String()
}

func (b *Bot) handleMenuAlias(ctx context.Context, s *session, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelTasks:
		b.refresh(ctx, s)
		return true, b.sendTaskList(s)
	case menuLabelExpenses:
		b.refresh(ctx, s)
		return true, b.sendExpenseList(s)
	case menuLabelNewExp:
		b.refresh(ctx, s)
		return true, b.startNewExpense(s)
	case menuLabelHelp:
		return true, b.sendText(s.chatID, helpText(s.tasks.Viewer()))
	default:
		return false, nil
	}
}

func (b *Bot) handleConversation(ctx context.Context, s *session, msg *tgbotapi.Message) error {
	text := strings.TrimSpace(msg.Text)
	if s.stage.isTask() {
		return b.continueTask(ctx, s, text)
	}
	return b.continueExpense(ctx, s, text)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn().Err(err).Msg("callback ack")
	}
	s, err := b.session(ctx, cb.From, cb.Message.Chat.ID)
	if err != nil {
		return err
	}

	data := cb.Data
	b.logger.Info().Int64("from", cb.From.ID).Str("data", data).Msg("callback")

	switch {
	case strings.HasPrefix(data, cbAdvancePrefix):
		return b.withID(data, cbAdvancePrefix, func(id uint) error { return b.changeStatus(ctx, s, id, s.tasks.Advance) })
	case strings.HasPrefix(data, cbPausePrefix):
		return b.withID(data, cbPausePrefix, func(id uint) error { return b.changeStatus(ctx, s, id, s.tasks.Pause) })
	case strings.HasPrefix(data, cbDeleteTaskPrefix):
		return b.withID(data, cbDeleteTaskPrefix, func(id uint) error { return b.askDeleteTask(s, id) })
	case strings.HasPrefix(data, cbEditExpensePrefix):
		return b.withID(data, cbEditExpensePrefix, func(id uint) error { return b.startEditExpense(s, id) })
	case strings.HasPrefix(data, cbDeleteExpPrefix):
		return b.withID(data, cbDeleteExpPrefix, func(id uint) error { return b.askDeleteExpense(s, id) })
	case strings.HasPrefix(data, cbConfirmPrefix):
		return b.confirm(ctx, s, strings.TrimPrefix(data, cbConfirmPrefix))
	case strings.HasPrefix(data, cbCancelPrefix):
		return b.cancelConfirm(s, strings.TrimPrefix(data, cbCancelPrefix))
	default:
		return nil
	}
}

func (b *Bot) withID(data, prefix string, fn func(uint) error) error {
	id, err := parseID(strings.TrimPrefix(data, prefix))
	if err != nil {
		return nil
	}
	return fn(id)
}

// splitTarget parses "<target>:<id>" from confirm and cancel buttons.
func splitTarget(data string) (string, uint, bool) {
	target, raw, ok := strings.Cut(data, ":")
	if !ok {
		return "", 0, false
	}
	id, err := parseID(raw)
	if err != nil {
		return "", 0, false
	}
	return target, id, true
}

func (b *Bot) confirm(ctx context.Context, s *session, data string) error {
	target, id, ok := splitTarget(data)
	if !ok {
		return nil
	}
	var (
		err   error
		label string
	)
	switch target {
	case targetTask:
		label = "Task"
		err = s.tasks.ConfirmDelete(ctx, id)
	case targetExpense:
		label = "Expense"
		err = s.expenses.ConfirmDelete(ctx, id)
	case targetCategory:
		label = "Category"
		err = s.expenses.ConfirmDeleteCategory(ctx, id)
	default:
		return nil
	}
	if err != nil {
		return b.replyError(s, err)
	}
	return b.sendText(s.chatID, fmt.Sprintf("🗑 %s #%d deleted.", label, id))
}

func (b *Bot) cancelConfirm(s *session, data string) error {
	target, id, ok := splitTarget(data)
	if !ok {
		return nil
	}
	switch target {
	case targetTask:
		s.tasks.CancelDelete(id)
	case targetExpense:
		s.expenses.CancelDelete(id)
	case targetCategory:
		s.expenses.CancelDeleteCategory(id)
	default:
		return nil
	}
	return b.sendText(s.chatID, "↩️ Nothing was deleted.")
}

// askConfirmation binds both buttons to the prompted record so an older
// prompt cannot act on a newer request.
func (b *Bot) askConfirmation(chatID int64, text, target string, id uint) error {
	data := fmt.Sprintf("%s:%d", target, id)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", cbConfirmPrefix+data),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Cancel", cbCancelPrefix+data),
		),
	)
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) handleDigest(ctx context.Context, s *session) error {
	text, err := b.deps.Digest.Summary(ctx, s.tasks.Viewer(), b.now().In(b.location()))
	if err != nil {
		return b.sendText(s.chatID, fmt.Sprintf("Could not build the digest: %s", escape(err.Error())))
	}
	return b.sendText(s.chatID, text)
}

// SendDailyDigests sends every known user their summary.
func (b *Bot) SendDailyDigests(ctx context.Context) error {
	users, err := b.deps.Users.ListAll(ctx)
	if err != nil {
		return err
	}
	now := b.now().In(b.location())
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.deps.Digest.Summary(ctx, user, now)
		if err != nil {
			b.logger.Error().Err(err).Int64("telegram_id", user.TelegramID).Msg("build digest")
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			b.logger.Error().Err(err).Int64("telegram_id", user.TelegramID).Msg("send digest")
		}
	}
	return nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	role := model.RoleUser
	admin := b.deps.Config.IsAdminUsername(from.UserName)
	if admin {
		role = model.RoleAdmin
	}
	user, err := b.deps.Users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName, role)
	if err != nil {
		return nil, err
	}
	if admin && !user.IsAdmin() {
		if err := b.deps.Users.SetRole(ctx, user.ID, model.RoleAdmin); err != nil {
			return nil, err
		}
		user.Role = model.RoleAdmin
		b.deps.Hub.Publish(service.Change{Entity: service.EntityUser, ID: user.ID})
	}
	return user, nil
}

// replyError maps view errors to short chat replies.
func (b *Bot) replyError(s *session, err error) error {
	switch {
	case errors.Is(err, view.ErrForbidden):
		return b.sendText(s.chatID, "⛔ Only admins can do that.")
	case errors.Is(err, view.ErrNotFound):
		return b.sendText(s.chatID, "Nothing with that id is visible to you.")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return b.sendText(s.chatID, "That record no longer exists.")
	case errors.Is(err, view.ErrNotReady):
		return b.sendText(s.chatID, "Some required fields are still empty.")
	case errors.Is(err, editor.ErrNothingPending):
		return b.sendText(s.chatID, "That confirmation has expired.")
	case errors.Is(err, editor.ErrStale):
		return b.sendText(s.chatID, "That prompt was replaced by a newer one. Nothing was deleted.")
	case errors.Is(err, editor.ErrNoTransition):
		return b.sendText(s.chatID, "That status change is not available.")
	default:
		b.logger.Error().Err(err).Int64("chat", s.chatID).Msg("operation failed")
		return b.sendText(s.chatID, fmt.Sprintf("⚠️ %s", escape(err.Error())))
	}
}

func (b *Bot) location() *time.Location {
	if b.deps.Config.Location != nil {
		return b.deps.Config.Location
	}
	return time.Local
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

func shortTitle(title string, maxLen int) string {
	runes := []rune(title)
	if len(runes) <= maxLen {
		return title
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelExpenses),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewExp),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func saveKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSave),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// choiceKeyboard lays options out two per row followed by skip and cancel.
func choiceKeyboard(options []string, withSkip bool) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, option := range options {
		row = append(row, tgbotapi.NewKeyboardButton(option))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if withSkip {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSkip)))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}
