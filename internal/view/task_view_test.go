package view

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"backoffice/internal/deadline"
	"backoffice/internal/editor"
	"backoffice/internal/model"
	"backoffice/internal/notify"
)

var (
	admin = model.User{ID: 1, Username: "boss", Role: model.RoleAdmin}
	alice = model.User{ID: 2, Username: "alice", Role: model.RoleUser}
	bob   = model.User{ID: 3, Username: "bob", Role: model.RoleUser}
	t0    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func taskSnapshot() TaskSnapshot {
	order := "0f8fad5b-d9cb-469f-a165-70867728950e"
	return TaskSnapshot{
		Users: []model.User{admin, alice, bob},
		Sales: []model.Sale{{ID: order}},
		Tasks: []model.Task{
			{ID: 1, Title: "Cut", AssignedTo: alice.ID, Deadline: t0.Add(48 * time.Hour), Status: model.StatusPending, OrderID: &order},
			{ID: 2, Title: "Sew", AssignedTo: bob.ID, Deadline: t0.Add(time.Hour), Status: model.StatusInProgress},
			{ID: 3, Title: "Pack", AssignedTo: alice.ID, Deadline: t0.Add(-time.Hour), Status: model.StatusCompleted},
		},
	}
}

func newTaskView(viewer model.User, store *fakeStore, rec *notify.Recorder, sched *fakeScheduler) *TaskView {
	now := func() time.Time { return t0 }
	v := NewTaskView(TaskViewConfig{
		Viewer:   viewer,
		Store:    store,
		Notifier: rec,
		Watcher:  deadline.NewWatcher(sched, time.Minute, now),
		Location: time.UTC,
		Now:      now,
	})
	v.Refresh(taskSnapshot())
	return v
}

func TestTaskRowsScopeAndOrder(t *testing.T) {
	v := newTaskView(admin, newFakeStore(), &notify.Recorder{}, &fakeScheduler{})
	rows := v.Rows(t0)
	var ids []uint
	for _, r := range rows {
		ids = append(ids, r.Task.ID)
	}
	if diff := cmp.Diff([]uint{3, 2, 1}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if !rows[0].Countdown.IsOverdue() {
		t.Errorf("past deadline not overdue: %+v", rows[0].Countdown)
	}
	if rows[2].Order != "#0f8fad5b" {
		t.Errorf("order label = %q", rows[2].Order)
	}
	if rows[0].Actions.Advance || rows[0].Actions.Pause || !rows[0].Actions.Delete {
		t.Errorf("completed row actions = %+v", rows[0].Actions)
	}
	if !rows[1].Actions.Pause || !rows[1].Actions.Advance || rows[1].NextStatus != model.StatusCompleted {
		t.Errorf("in-progress row = %+v", rows[1])
	}

	uv := newTaskView(alice, newFakeStore(), &notify.Recorder{}, &fakeScheduler{})
	rows = uv.Rows(t0)
	if len(rows) != 2 {
		t.Fatalf("alice sees %d rows", len(rows))
	}
	for _, r := range rows {
		if r.Task.AssignedTo != alice.ID {
			t.Errorf("alice sees task %d", r.Task.ID)
		}
		if r.Actions.Delete {
			t.Errorf("non-admin offered delete")
		}
	}
}

func TestTaskAdvanceAndPause(t *testing.T) {
	store := newFakeStore()
	rec := &notify.Recorder{}
	v := newTaskView(bob, store, rec, &fakeScheduler{})

	next, err := v.Pause(context.Background(), 2)
	if err != nil || next != model.StatusPending {
		t.Fatalf("Pause = %q, %v", next, err)
	}
	last, _ := rec.Last()
	if last.Message != "Task status updated to Pending" || last.Severity != notify.Success {
		t.Errorf("toast = %+v", last)
	}

	if _, err := v.Advance(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("bob advancing alice's task err = %v", err)
	}

	av := newTaskView(admin, store, rec, &fakeScheduler{})
	if _, err := av.Advance(context.Background(), 3); !errors.Is(err, editor.ErrNoTransition) {
		t.Errorf("advance completed err = %v", err)
	}
	if _, err := av.Pause(context.Background(), 1); !errors.Is(err, editor.ErrNoTransition) {
		t.Errorf("pause pending err = %v", err)
	}
	if s, err := av.Advance(context.Background(), 1); err != nil || s != model.StatusInProgress {
		t.Errorf("admin advance = %q, %v", s, err)
	}
	if store.statusUpdates[1] != model.StatusInProgress {
		t.Errorf("store not called: %+v", store.statusUpdates)
	}
}

func TestTaskCreate(t *testing.T) {
	store := newFakeStore()
	v := newTaskView(admin, store, &notify.Recorder{}, &fakeScheduler{})

	if _, err := v.SubmitCreate(context.Background()); !errors.Is(err, editor.ErrDialogClosed) {
		t.Errorf("submit without dialog err = %v", err)
	}
	if err := v.OpenCreate(); err != nil {
		t.Fatal(err)
	}
	v.EditDraft(func(d *editor.TaskDraft) { d.Title = "Hem" })
	if v.CanSubmit() {
		t.Error("submit enabled with missing assignee and deadline")
	}
	if _, err := v.SubmitCreate(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("err = %v", err)
	}
	v.EditDraft(func(d *editor.TaskDraft) {
		d.AssigneeID = alice.ID
		d.Deadline = "2024-01-03T09:00"
	})
	if !v.CanSubmit() {
		t.Fatal("submit disabled with full draft")
	}

	store.err = errors.New("offline")
	task, err := v.SubmitCreate(context.Background())
	if err == nil {
		t.Fatal("store error swallowed")
	}
	if v.Dialog().IsOpen() {
		t.Error("dialog should close even when the store fails")
	}
	if task.AssignedToName != "alice" || task.Status != model.StatusPending || !task.CreatedAt.Equal(t0) {
		t.Errorf("built task = %+v", task)
	}
	if (v.Draft() != editor.TaskDraft{}) {
		t.Error("draft not reset after close")
	}

	uv := newTaskView(alice, store, &notify.Recorder{}, &fakeScheduler{})
	if err := uv.OpenCreate(); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-admin OpenCreate err = %v", err)
	}
}

func TestTaskDeleteNeedsConfirmation(t *testing.T) {
	store := newFakeStore()
	v := newTaskView(admin, store, &notify.Recorder{}, &fakeScheduler{})
	ctx := context.Background()

	if _, err := v.RequestDelete(2); err != nil {
		t.Fatal(err)
	}
	if id, ok := v.PendingDelete(); !ok || id != 2 {
		t.Fatalf("pending = %d, %v", id, ok)
	}
	v.CancelDelete(2)
	if _, ok := v.PendingDelete(); ok {
		t.Error("pending target kept after cancel")
	}
	if len(store.deletedTasks) != 0 {
		t.Error("cancel deleted a task")
	}
	if len(v.Rows(t0)) != 3 {
		t.Error("task list changed after cancel")
	}

	if _, err := v.RequestDelete(2); err != nil {
		t.Fatal(err)
	}
	if err := v.ConfirmDelete(ctx, 1); !errors.Is(err, editor.ErrStale) {
		t.Fatalf("ConfirmDelete(1) err = %v", err)
	}
	if err := v.ConfirmDelete(ctx, 2); err != nil {
		t.Fatalf("ConfirmDelete = %v", err)
	}
	if diff := cmp.Diff([]uint{2}, store.deletedTasks); diff != "" {
		t.Errorf("deleted mismatch (-want +got):\n%s", diff)
	}

	uv := newTaskView(alice, store, &notify.Recorder{}, &fakeScheduler{})
	if _, err := uv.RequestDelete(1); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-admin delete err = %v", err)
	}
}

func TestTaskWatchLifecycle(t *testing.T) {
	sched := &fakeScheduler{}
	v := newTaskView(admin, newFakeStore(), &notify.Recorder{}, sched)

	var ticks []string
	if err := v.Watch(2, func(task model.Task, c deadline.Countdown) {
		ticks = append(ticks, task.Title+" "+c.String())
	}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Sew 1h 0m left"}, ticks); diff != "" {
		t.Errorf("first tick mismatch (-want +got):\n%s", diff)
	}

	if err := v.Watch(2, func(model.Task, deadline.Countdown) {}); err != nil {
		t.Fatal(err)
	}
	if sched.active() != 1 {
		t.Errorf("re-watch left %d timers", sched.active())
	}

	snap := taskSnapshot()
	snap.Tasks[1].Deadline = t0.Add(3 * time.Hour)
	v.Refresh(snap)
	if sched.active() != 1 {
		t.Errorf("deadline change left %d timers", sched.active())
	}

	snap.Tasks = snap.Tasks[:1]
	v.Refresh(snap)
	if sched.active() != 0 {
		t.Errorf("removed task still has %d timers", sched.active())
	}

	if err := v.Watch(1, func(model.Task, deadline.Countdown) {}); err != nil {
		t.Fatal(err)
	}
	v.Close()
	if sched.active() != 0 || len(v.Watching()) != 0 {
		t.Errorf("Close left %d timers", sched.active())
	}
}
