package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"

	"backoffice/internal/editor"
	"backoffice/internal/export"
	"backoffice/internal/model"
	"backoffice/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repository.NewDB(dsn, nil)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestHubPublishesToSubscribers(t *testing.T) {
	hub := NewHub()
	first, cancelFirst := hub.Subscribe()
	second, cancelSecond := hub.Subscribe()
	defer cancelSecond()

	hub.Publish(Change{Entity: EntityTask, ID: 7})

	for i, ch := range []<-chan Change{first, second} {
		select {
		case got := <-ch:
			if got != (Change{Entity: EntityTask, ID: 7}) {
				t.Errorf("subscriber %d got %+v", i, got)
			}
		default:
			t.Errorf("subscriber %d got nothing", i)
		}
	}

	cancelFirst()
	cancelFirst()
	if _, ok := <-first; ok {
		t.Error("cancelled channel still open")
	}
	hub.Publish(Change{Entity: EntityExpense})
	if got := <-second; got.Entity != EntityExpense {
		t.Errorf("second got %+v", got)
	}
}

func TestHubPublishDoesNotBlock(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe()
	defer cancel()
	for i := 0; i < 100; i++ {
		hub.Publish(Change{Entity: EntitySale})
	}
	var nilHub *Hub
	nilHub.Publish(Change{})
}

func TestTaskServicePublishesChanges(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	hub := NewHub()
	changes, cancel := hub.Subscribe()
	defer cancel()
	svc := NewTaskService(repository.NewTaskRepository(db), repository.NewUserRepository(db), repository.NewSaleRepository(db), hub)

	task := &model.Task{Title: "Cut fabric", Deadline: time.Now().Add(time.Hour), Status: model.StatusPending}
	if err := svc.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if got := <-changes; got != (Change{Entity: EntityTask, ID: task.ID}) {
		t.Errorf("change = %+v", got)
	}

	if err := svc.UpdateTaskStatus(ctx, task.ID, model.TaskStatus("Bogus")); err == nil {
		t.Error("invalid status accepted")
	}
	if err := svc.UpdateTaskStatus(ctx, task.ID, model.StatusInProgress); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	<-changes

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].Status != model.StatusInProgress {
		t.Errorf("snapshot tasks = %+v", snap.Tasks)
	}

	if err := svc.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if err := svc.CreateTask(ctx, &model.Task{}); err == nil {
		t.Error("empty title accepted")
	}
}

func TestExpenseServiceUpdate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewExpenseService(repository.NewExpenseRepository(db), repository.NewCategoryRepository(db), repository.NewUserRepository(db), NewHub())

	expense := &model.Expense{UserID: 1, UserName: "ann", Date: "2026-03-01", Category: "Fuel", Description: "Van", Amount: 100}
	if err := svc.CreateExpense(ctx, expense); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	update := editor.ExpenseUpdate{Date: "2026-03-02", Category: "Rent", Description: "Shop", Amount: 250}
	if err := svc.UpdateExpense(ctx, expense.ID, update); err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Expenses) != 1 {
		t.Fatalf("expenses = %d", len(snap.Expenses))
	}
	got := snap.Expenses[0]
	if diff := cmp.Diff(update, editor.ExpenseUpdate{Date: got.Date, Category: got.Category, Description: got.Description, Amount: got.Amount}); diff != "" {
		t.Errorf("updated expense mismatch (-want +got):\n%s", diff)
	}
	if got.UserName != "ann" {
		t.Errorf("author changed to %q", got.UserName)
	}
}

func TestCategorySeedFromFile(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewCategoryService(repository.NewCategoryRepository(db), NewHub())

	if err := svc.CreateCategory(ctx, "Fuel"); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	path := filepath.Join(t.TempDir(), "categories.yaml")
	content := "categories:\n  - Fuel\n  - Rent\n  - \"  \"\n  - Utilities\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	created, err := svc.SeedFromFile(ctx, path)
	if err != nil {
		t.Fatalf("SeedFromFile: %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, c := range list {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"Fuel", "Rent", "Utilities"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.SeedFromFile(ctx, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestSchedulerEveryCancels(t *testing.T) {
	s := NewSchedulerService(time.UTC)
	cancel, err := s.Every(time.Minute, func() {})
	if err != nil {
		t.Fatalf("Every: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("entries = %d, want 1", s.Len())
	}
	cancel()
	if s.Len() != 0 {
		t.Errorf("entries after cancel = %d", s.Len())
	}
	if _, err := s.Every(0, func() {}); err == nil {
		t.Error("zero interval accepted")
	}
}

func TestSchedulerScheduleDaily(t *testing.T) {
	s := NewSchedulerService(time.UTC)
	if _, err := s.ScheduleDaily("09:30", func() {}); err != nil {
		t.Fatalf("ScheduleDaily: %v", err)
	}
	if _, err := s.ScheduleDaily("25:00", func() {}); err == nil {
		t.Error("invalid time accepted")
	}
	s.Start()
	s.Stop()
}

func TestDigestSummary(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	tasks := repository.NewTaskRepository(db)
	expenses := repository.NewExpenseRepository(db)

	worker, err := users.UpsertFromTelegram(ctx, 1, "Bo", "", "bo", model.RoleUser)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for _, task := range []*model.Task{
		{Title: "Sew <hem>", AssignedTo: worker.ID, AssignedToName: "bo", Deadline: now.Add(2 * time.Hour), Status: model.StatusPending},
		{Title: "Late", AssignedTo: worker.ID, Deadline: now.Add(-time.Hour), Status: model.StatusInProgress},
		{Title: "Done", AssignedTo: worker.ID, Deadline: now.Add(time.Hour), Status: model.StatusCompleted},
		{Title: "Other", AssignedTo: worker.ID + 1, Deadline: now.Add(time.Hour), Status: model.StatusPending},
	} {
		if err := tasks.Create(ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range []*model.Expense{
		{UserID: worker.ID, Date: "2026-03-10", Category: "Fuel", Amount: 1500},
		{UserID: worker.ID, Date: "2026-03-09", Category: "Fuel", Amount: 900},
	} {
		if err := expenses.Create(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	svc := NewDigestService(tasks, expenses, users, export.Formatter{Currency: "UGX"})
	got, err := svc.Summary(ctx, *worker, now)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	for _, want := range []string{"Sew &lt;hem&gt;", "2h 0m left", "⚠️ <b>Late</b> (Overdue)", "1 recorded, total 1,500 UGX"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	for _, unwanted := range []string{"Done", "Other"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("summary contains %q:\n%s", unwanted, got)
		}
	}
	if strings.Index(got, "Late") > strings.Index(got, "Sew") {
		t.Error("tasks not ordered by deadline")
	}
}
