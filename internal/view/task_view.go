package view

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"backoffice/internal/access"
	"backoffice/internal/deadline"
	"backoffice/internal/editor"
	"backoffice/internal/model"
	"backoffice/internal/notify"
)

// TaskSnapshot is the data the task screen renders.
type TaskSnapshot struct {
	Tasks []model.Task
	Users []model.User
	Sales []model.Sale
}

// TaskActions lists what the viewer may do with a row.
type TaskActions struct {
	Advance bool
	Pause   bool
	Delete  bool
}

// TaskRow is one rendered task.
type TaskRow struct {
	Task       model.Task
	Countdown  deadline.Countdown
	Order      string
	NextStatus model.TaskStatus
	Actions    TaskActions
}

type TaskViewConfig struct {
	Viewer   model.User
	Store    TaskStore
	Notifier notify.Notifier
	Watcher  *deadline.Watcher
	Location *time.Location
	Now      func() time.Time
}

// TaskView is the production task screen of one viewer.
type TaskView struct {
	viewer   model.User
	store    TaskStore
	notifier notify.Notifier
	watcher  *deadline.Watcher
	loc      *time.Location
	now      func() time.Time

	dialog   editor.Dialog
	deleting editor.Confirmation[uint]

	mu      sync.Mutex
	snap    TaskSnapshot
	draft   editor.TaskDraft
	watches map[uint]*deadline.Handle
}

func NewTaskView(cfg TaskViewConfig) *TaskView {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Func(func(context.Context, notify.Toast) {})
	}
	return &TaskView{
		viewer:   cfg.Viewer,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		watcher:  cfg.Watcher,
		loc:      cfg.Location,
		now:      cfg.Now,
		watches:  make(map[uint]*deadline.Handle),
	}
}

func (v *TaskView) Viewer() model.User {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewer
}

// Dialog exposes the create dialog so callers can set an OnError hook.
func (v *TaskView) Dialog() *editor.Dialog { return &v.dialog }

// Refresh swaps in a new snapshot. Watched countdowns follow deadline
// changes and stop for tasks that disappeared or completed.
func (v *TaskView) Refresh(snap TaskSnapshot) {
	v.mu.Lock()
	v.snap = snap
	v.viewer = refreshViewer(v.viewer, snap.Users)

	visible := make(map[uint]model.Task)
	for _, task := range access.VisibleTasks(snap.Tasks, v.viewer) {
		visible[task.ID] = task
	}
	resets := make(map[*deadline.Handle]time.Time)
	var stops []*deadline.Handle
	for id, h := range v.watches {
		task, ok := visible[id]
		if !ok || task.Status.Terminal() {
			stops = append(stops, h)
			delete(v.watches, id)
			continue
		}
		resets[h] = task.Deadline
	}
	v.mu.Unlock()

	// Handles tick synchronously on reset, and ticks read the view.
	for _, h := range stops {
		h.Stop()
	}
	for h, d := range resets {
		_ = h.Reset(d)
	}
}

// Rows lists visible tasks by deadline with their countdown at now.
func (v *TaskView) Rows(now time.Time) []TaskRow {
	v.mu.Lock()
	defer v.mu.Unlock()

	tasks := access.VisibleTasks(v.snap.Tasks, v.viewer)
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].Deadline.Equal(tasks[j].Deadline) {
			return tasks[i].Deadline.Before(tasks[j].Deadline)
		}
		return tasks[i].ID < tasks[j].ID
	})

	rows := make([]TaskRow, 0, len(tasks))
	for _, task := range tasks {
		next, _ := task.Status.Next()
		rows = append(rows, TaskRow{
			Task:       task,
			Countdown:  deadline.Evaluate(task.Deadline, now),
			Order:      v.orderLabel(task.OrderID),
			NextStatus: next,
			Actions:    v.actions(task),
		})
	}
	return rows
}

// Task returns a visible task by id.
func (v *TaskView) Task(id uint) (model.Task, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.find(id)
}

// Users lists the users known to the snapshot, for picking an assignee.
func (v *TaskView) Users() []model.User {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.User(nil), v.snap.Users...)
}

// Sales lists orders a task can be linked to.
func (v *TaskView) Sales() []model.Sale {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.Sale(nil), v.snap.Sales...)
}

// OpenCreate starts a fresh draft. Only admins create tasks.
func (v *TaskView) OpenCreate() error {
	if !v.Viewer().IsAdmin() {
		return ErrForbidden
	}
	v.mu.Lock()
	v.draft = editor.TaskDraft{}
	v.mu.Unlock()
	v.dialog.Open(editor.ModeCreate, 0)
	return nil
}

// EditDraft mutates the open draft.
func (v *TaskView) EditDraft(fn func(*editor.TaskDraft)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(&v.draft)
}

func (v *TaskView) Draft() editor.TaskDraft {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draft
}

// CanSubmit mirrors the disabled state of the submit button.
func (v *TaskView) CanSubmit() bool {
	return v.dialog.IsOpen() && v.Draft().Ready()
}

// CloseCreate abandons the draft.
func (v *TaskView) CloseCreate() {
	v.dialog.Close()
	v.mu.Lock()
	v.draft = editor.TaskDraft{}
	v.mu.Unlock()
}

// SubmitCreate builds the task and hands it to the store. The dialog closes
// when the store returns, even on failure.
func (v *TaskView) SubmitCreate(ctx context.Context) (model.Task, error) {
	viewer := v.Viewer()
	if !viewer.IsAdmin() {
		return model.Task{}, ErrForbidden
	}
	if !v.dialog.IsOpen() {
		return model.Task{}, editor.ErrDialogClosed
	}
	v.mu.Lock()
	draft := v.draft
	users := v.snap.Users
	v.mu.Unlock()

	if !draft.Ready() {
		return model.Task{}, ErrNotReady
	}
	task, err := draft.Build(viewer, users, v.now(), v.loc)
	if err != nil {
		return model.Task{}, err
	}

	err = v.dialog.Submit(ctx, func(ctx context.Context) error {
		return v.store.CreateTask(ctx, &task)
	})
	if !v.dialog.IsOpen() {
		v.mu.Lock()
		v.draft = editor.TaskDraft{}
		v.mu.Unlock()
	}
	return task, err
}

// Advance moves a task one status forward.
func (v *TaskView) Advance(ctx context.Context, id uint) (model.TaskStatus, error) {
	return v.changeStatus(ctx, id, editor.Advance)
}

// Pause sends an in-progress task back to pending.
func (v *TaskView) Pause(ctx context.Context, id uint) (model.TaskStatus, error) {
	return v.changeStatus(ctx, id, editor.Pause)
}

func (v *TaskView) changeStatus(ctx context.Context, id uint, transition func(model.TaskStatus) (model.TaskStatus, error)) (model.TaskStatus, error) {
	v.mu.Lock()
	task, err := v.find(id)
	allowed := err == nil && v.mayChangeStatus(task)
	v.mu.Unlock()
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", ErrForbidden
	}
	next, err := transition(task.Status)
	if err != nil {
		return task.Status, err
	}
	if err := v.store.UpdateTaskStatus(ctx, id, next); err != nil {
		return task.Status, err
	}
	v.notifier.Notify(ctx, notify.Toast{
		Severity: notify.Success,
		Message:  fmt.Sprintf("Task status updated to %s", next),
	})
	if next.Terminal() {
		v.Unwatch(id)
	}
	return next, nil
}

// RequestDelete asks for confirmation before deleting. Admin only.
func (v *TaskView) RequestDelete(id uint) (model.Task, error) {
	if !v.Viewer().IsAdmin() {
		return model.Task{}, ErrForbidden
	}
	v.mu.Lock()
	task, err := v.find(id)
	v.mu.Unlock()
	if err != nil {
		return model.Task{}, err
	}
	v.deleting.Request(id)
	return task, nil
}

// PendingDelete returns the task awaiting delete confirmation.
func (v *TaskView) PendingDelete() (uint, bool) {
	return v.deleting.Pending()
}

// CancelDelete drops the pending request for id; nothing is deleted.
func (v *TaskView) CancelDelete(id uint) bool {
	return v.deleting.CancelTarget(id)
}

// ConfirmDelete deletes task id if it is the one awaiting confirmation.
func (v *TaskView) ConfirmDelete(ctx context.Context, id uint) error {
	return v.deleting.ConfirmTarget(ctx, id, func(ctx context.Context, id uint) error {
		v.Unwatch(id)
		return v.store.DeleteTask(ctx, id)
	})
}

// Watch keeps onTick informed of a task's countdown until Unwatch or Close.
// Watching the same task again replaces the previous timer.
func (v *TaskView) Watch(id uint, onTick func(model.Task, deadline.Countdown)) error {
	if v.watcher == nil {
		return fmt.Errorf("countdown watcher not configured")
	}
	v.mu.Lock()
	task, err := v.find(id)
	if err == nil {
		if old, ok := v.watches[id]; ok {
			old.Stop()
			delete(v.watches, id)
		}
	}
	v.mu.Unlock()
	if err != nil {
		return err
	}

	h, err := v.watcher.Watch(task.Deadline, func(c deadline.Countdown) {
		current, err := v.Task(id)
		if err != nil {
			current = task
		}
		onTick(current, c)
	})
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.watches[id] = h
	v.mu.Unlock()
	return nil
}

// Unwatch stops the countdown of one task.
func (v *TaskView) Unwatch(id uint) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if h, ok := v.watches[id]; ok {
		h.Stop()
		delete(v.watches, id)
	}
}

// Watching lists the ids with live countdowns.
func (v *TaskView) Watching() []uint {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]uint, 0, len(v.watches))
	for id := range v.watches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close tears the view down and stops every countdown.
func (v *TaskView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, h := range v.watches {
		h.Stop()
		delete(v.watches, id)
	}
	v.dialog.Close()
	v.deleting.Cancel()
}

func (v *TaskView) find(id uint) (model.Task, error) {
	for _, task := range access.VisibleTasks(v.snap.Tasks, v.viewer) {
		if task.ID == id {
			return task, nil
		}
	}
	return model.Task{}, ErrNotFound
}

func (v *TaskView) mayChangeStatus(task model.Task) bool {
	return v.viewer.IsAdmin() || task.AssignedTo == v.viewer.ID
}

func (v *TaskView) actions(task model.Task) TaskActions {
	change := v.mayChangeStatus(task)
	return TaskActions{
		Advance: change && !task.Status.Terminal(),
		Pause:   change && task.Status.CanPause(),
		Delete:  v.viewer.IsAdmin(),
	}
}

func (v *TaskView) orderLabel(orderID *string) string {
	if orderID == nil || *orderID == "" {
		return ""
	}
	for _, sale := range v.snap.Sales {
		if sale.ID == *orderID {
			return "#" + sale.ShortID()
		}
	}
	return "#" + model.Sale{ID: *orderID}.ShortID()
}

// refreshViewer picks up role changes from the latest user list.
func refreshViewer(viewer model.User, users []model.User) model.User {
	for _, u := range users {
		if u.ID == viewer.ID {
			return u
		}
	}
	return viewer
}
