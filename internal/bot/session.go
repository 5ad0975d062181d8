package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"backoffice/internal/export"
	"backoffice/internal/view"
)

type stage int

const (
	stageNone stage = iota
	stageTaskTitle
	stageTaskDescription
	stageTaskAssignee
	stageTaskDeadline
	stageTaskOrder
	stageTaskConfirm
	stageExpenseDate
	stageExpenseCategory
	stageExpenseDescription
	stageExpenseAmount
	stageExpenseConfirm
)

func (s stage) isTask() bool {
	return s >= stageTaskTitle && s <= stageTaskConfirm
}

// session is one private chat with its open screens.
type session struct {
	chatID   int64
	tasks    *view.TaskView
	expenses *view.ExpenseView

	mu       sync.Mutex
	stage    stage
	watching uint
}

func (s *session) inConversation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage != stageNone
}

func (s *session) setStage(st stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = st
}

func (s *session) currentStage() stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// cancelInput abandons any open draft.
func (s *session) cancelInput() {
	s.setStage(stageNone)
	s.tasks.CloseCreate()
	s.expenses.CloseDialog()
}

func (s *session) close() {
	s.tasks.Close()
	s.expenses.Close()
}

// session returns the chat's session, creating it and registering the
// user on first contact.
func (b *Bot) session(ctx context.Context, from *tgbotapi.User, chatID int64) (*session, error) {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	b.mu.Lock()
	s, ok := b.sessions[chatID]
	b.mu.Unlock()
	if ok {
		// Roles can change from another process without a hub event.
		if viewer := s.tasks.Viewer(); viewer.ID != user.ID || viewer.Role != user.Role {
			if err := b.load(ctx, s); err != nil {
				return nil, err
			}
		}
		return s, nil
	}

	notifier := chatNotifier{bot: b, chatID: chatID}
	s = &session{
		chatID: chatID,
		tasks: view.NewTaskView(view.TaskViewConfig{
			Viewer:   *user,
			Store:    b.deps.Tasks,
			Notifier: notifier,
			Watcher:  b.deps.Watcher,
			Location: b.location(),
			Now:      b.now,
		}),
		expenses: view.NewExpenseView(view.ExpenseViewConfig{
			Viewer:     *user,
			Expenses:   b.deps.Expenses,
			Categories: b.deps.Categories,
			Notifier:   notifier,
			Formatter:  export.Formatter{Currency: b.deps.Config.Currency},
			Location:   b.location(),
			Now:        b.now,
		}),
	}
	if err := b.load(ctx, s); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.sessions[chatID]; ok {
		s.close()
		return existing, nil
	}
	b.sessions[chatID] = s
	return s, nil
}

func (b *Bot) load(ctx context.Context, sessions ...*session) error {
	taskSnap, err := b.deps.Tasks.Snapshot(ctx)
	if err != nil {
		return err
	}
	expenseSnap, err := b.deps.Expenses.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		s.tasks.Refresh(taskSnap)
		s.expenses.Refresh(expenseSnap)
	}
	return nil
}

// refresh reloads one session. A failed reload keeps the cached snapshot.
func (b *Bot) refresh(ctx context.Context, s *session) {
	if err := b.load(ctx, s); err != nil {
		b.logger.Warn().Err(err).Int64("chat", s.chatID).Msg("refresh session")
	}
}

// reload pushes fresh snapshots into every open session.
func (b *Bot) reload(ctx context.Context) error {
	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()
	if len(sessions) == 0 {
		return nil
	}
	return b.load(ctx, sessions...)
}
