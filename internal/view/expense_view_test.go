package view

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"backoffice/internal/access"
	"backoffice/internal/editor"
	"backoffice/internal/export"
	"backoffice/internal/model"
	"backoffice/internal/notify"
)

var today = time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)

func expenseSnapshot() ExpenseSnapshot {
	return ExpenseSnapshot{
		Users: []model.User{admin, alice, bob},
		Categories: []model.ExpenseCategory{
			{ID: 1, Name: "Rent"},
			{ID: 2, Name: "Fuel"},
		},
		Expenses: []model.Expense{
			{ID: 1, UserID: alice.ID, Date: "2024-03-01", Category: "Rent", Description: "Shop", Amount: 1000},
			{ID: 2, UserID: alice.ID, Date: "2024-03-12", Category: "Fuel", Description: "Van", Amount: 40},
			{ID: 3, UserID: bob.ID, Date: "2024-03-12", Category: "Rent", Description: "Store", Amount: 2500.25},
			{ID: 4, UserID: bob.ID, Date: "2024-03-11", Category: "Food", Description: "Lunch", Amount: 15},
			{ID: 5, UserID: admin.ID, Date: "2024-03-12", Category: "Fuel", Description: "Car", Amount: 60},
		},
	}
}

func newExpenseView(viewer model.User, store *fakeStore, rec *notify.Recorder) *ExpenseView {
	v := NewExpenseView(ExpenseViewConfig{
		Viewer:     viewer,
		Expenses:   store,
		Categories: store,
		Notifier:   rec,
		Location:   time.UTC,
		Now:        func() time.Time { return today },
	})
	v.Refresh(expenseSnapshot())
	return v
}

func expenseIDs(es []model.Expense) []uint {
	var out []uint
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func TestExpenseAdminCategoryFilterAndReport(t *testing.T) {
	v := newExpenseView(admin, newFakeStore(), &notify.Recorder{})
	if err := v.SetFilter(access.ExpenseFilter{Category: "Rent"}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint{1, 3}, expenseIDs(v.Visible())); diff != "" {
		t.Errorf("visible mismatch (-want +got):\n%s", diff)
	}
	if v.Total() != 3500.25 {
		t.Errorf("Total = %v", v.Total())
	}

	doc, err := v.Report()
	if err != nil {
		t.Fatal(err)
	}
	html := string(doc.Body)
	if !strings.Contains(html, `<td colspan="4">Total</td><td class="amount">3,500 UGX</td>`) {
		t.Errorf("total row missing in report:\n%s", html)
	}
	if !strings.Contains(html, "Filters: Category: Rent") {
		t.Error("filter summary missing")
	}
	if doc.Filename != "expense_report_2024-03-12.html" {
		t.Errorf("filename = %q", doc.Filename)
	}
}

func TestExpenseUserSeesOwnToday(t *testing.T) {
	v := newExpenseView(bob, newFakeStore(), &notify.Recorder{})
	if err := v.SetFilter(access.ExpenseFilter{Category: "Food"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-admin SetFilter err = %v", err)
	}
	if diff := cmp.Diff([]uint{3}, expenseIDs(v.Visible())); diff != "" {
		t.Errorf("visible mismatch (-want +got):\n%s", diff)
	}
	if err := v.OpenEdit(3); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-admin OpenEdit err = %v", err)
	}
	if _, err := v.RequestDelete(3); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-admin RequestDelete err = %v", err)
	}
}

func TestExpenseCreateForSelf(t *testing.T) {
	store := newFakeStore()
	v := newExpenseView(bob, store, &notify.Recorder{})

	v.OpenCreate()
	if got := v.Draft().Date; got != "2024-03-12" {
		t.Errorf("default date = %q", got)
	}
	v.EditDraft(func(d *editor.ExpenseDraft) {
		d.Category = "Fuel"
		d.Amount = "abc"
	})
	if v.CanSubmit() {
		t.Error("submit enabled without description")
	}
	v.EditDraft(func(d *editor.ExpenseDraft) { d.Description = "Boda" })
	if err := v.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.expenses) != 1 {
		t.Fatalf("created %d", len(store.expenses))
	}
	got := store.expenses[0]
	if got.UserID != bob.ID || got.UserName != "bob" || got.Amount != 0 {
		t.Errorf("created %+v", got)
	}
	if v.Dialog().IsOpen() {
		t.Error("dialog open after submit")
	}
}

func TestExpenseEditStripsIdentity(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("write failed")
	v := newExpenseView(admin, store, &notify.Recorder{})

	if err := v.OpenEdit(3); err != nil {
		t.Fatal(err)
	}
	v.EditDraft(func(d *editor.ExpenseDraft) { d.Amount = "2600" })
	if err := v.Submit(context.Background()); err == nil {
		t.Fatal("expected store error")
	}
	if v.Dialog().IsOpen() {
		t.Error("dialog should close after failed update")
	}
	want := editor.ExpenseUpdate{Date: "2024-03-12", Category: "Rent", Description: "Store", Amount: 2600}
	if diff := cmp.Diff(want, store.updates[3]); diff != "" {
		t.Errorf("update mismatch (-want +got):\n%s", diff)
	}
}

func TestExpenseDeleteConfirmation(t *testing.T) {
	store := newFakeStore()
	v := newExpenseView(admin, store, &notify.Recorder{})
	ctx := context.Background()

	if _, err := v.RequestDelete(4); err != nil {
		t.Fatal(err)
	}
	if v.CancelDelete(3) {
		t.Error("cancel for another expense dropped the request")
	}
	if !v.CancelDelete(4) {
		t.Error("cancel did not drop the request")
	}
	if err := v.ConfirmDelete(ctx, 4); !errors.Is(err, editor.ErrNothingPending) {
		t.Errorf("confirm after cancel err = %v", err)
	}

	// An older prompt must not delete the record of a newer one.
	if _, err := v.RequestDelete(3); err != nil {
		t.Fatal(err)
	}
	if _, err := v.RequestDelete(4); err != nil {
		t.Fatal(err)
	}
	if err := v.ConfirmDelete(ctx, 3); !errors.Is(err, editor.ErrStale) {
		t.Errorf("confirm of replaced prompt err = %v", err)
	}
	if len(store.deletedExp) != 0 {
		t.Fatalf("deleted %v from a replaced prompt", store.deletedExp)
	}
	if err := v.ConfirmDelete(ctx, 4); err != nil {
		t.Errorf("ConfirmDelete = %v", err)
	}
	if diff := cmp.Diff([]uint{4}, store.deletedExp); diff != "" {
		t.Errorf("deleted mismatch (-want +got):\n%s", diff)
	}
}

func TestExpenseExportCSV(t *testing.T) {
	rec := &notify.Recorder{}
	v := newExpenseView(admin, newFakeStore(), rec)
	_ = v.SetFilter(access.ExpenseFilter{UserID: bob.ID})

	a := v.ExportCSV(context.Background())
	b := v.ExportCSV(context.Background())
	if a.Filename != "expenses_report_2024-03-12.csv" {
		t.Errorf("filename = %q", a.Filename)
	}
	if string(a.Content) != string(b.Content) {
		t.Error("repeated export differs")
	}
	want := "Date,User,Category,Description,Amount\n3/12/2024,bob,Rent,\"Store\",2500.25\n3/11/2024,bob,Food,\"Lunch\",15\n"
	if string(a.Content) != want {
		t.Errorf("csv =\n%s", a.Content)
	}
	last, _ := rec.Last()
	if last.Severity != notify.Info || last.Message != "Exporting 2 expenses" {
		t.Errorf("toast = %+v", last)
	}
}

func TestExpensePrint(t *testing.T) {
	rec := &notify.Recorder{}
	v := newExpenseView(admin, newFakeStore(), rec)
	ctx := context.Background()

	s := &fakeSurface{}
	if err := v.Print(ctx, fakeOpener{surface: s}); err != nil {
		t.Fatal(err)
	}
	if !s.printed || !strings.Contains(string(s.doc.Body), "Filters: None") {
		t.Errorf("surface = %+v", s)
	}

	err := v.Print(ctx, fakeOpener{err: export.ErrSurfaceBlocked})
	if !errors.Is(err, export.ErrSurfaceBlocked) {
		t.Fatalf("err = %v", err)
	}
	last, _ := rec.Last()
	if last.Severity != notify.Error || last.Message != PopupBlockedMessage {
		t.Errorf("toast = %+v", last)
	}
}

func TestCategoryManagement(t *testing.T) {
	store := newFakeStore()
	v := newExpenseView(admin, store, &notify.Recorder{})
	ctx := context.Background()

	if err := v.SubmitCategory(ctx, 0, editor.CategoryDraft{Name: " Rent "}); err != nil {
		t.Fatal(err)
	}
	if err := v.SubmitCategory(ctx, 2, editor.CategoryDraft{Name: "Transport"}); err != nil {
		t.Fatal(err)
	}
	if err := v.SubmitCategory(ctx, 9, editor.CategoryDraft{Name: "X"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("rename missing err = %v", err)
	}
	if err := v.SubmitCategory(ctx, 0, editor.CategoryDraft{}); !errors.Is(err, ErrNotReady) {
		t.Errorf("empty name err = %v", err)
	}
	if diff := cmp.Diff([]string{"Rent"}, store.categories); diff != "" {
		t.Errorf("created mismatch (-want +got):\n%s", diff)
	}
	if store.renamed[2] != "Transport" {
		t.Errorf("renamed = %v", store.renamed)
	}

	if _, err := v.RequestDeleteCategory(1); err != nil {
		t.Fatal(err)
	}
	v.CancelDeleteCategory(1)
	if len(store.deletedCats) != 0 {
		t.Error("cancel deleted a category")
	}
	if _, err := v.RequestDeleteCategory(1); err != nil {
		t.Fatal(err)
	}
	if err := v.ConfirmDeleteCategory(ctx, 2); !errors.Is(err, editor.ErrStale) {
		t.Errorf("ConfirmDeleteCategory(2) err = %v", err)
	}
	if err := v.ConfirmDeleteCategory(ctx, 1); err != nil {
		t.Errorf("ConfirmDeleteCategory = %v", err)
	}
	if diff := cmp.Diff([]uint{1}, store.deletedCats); diff != "" {
		t.Errorf("deleted categories mismatch (-want +got):\n%s", diff)
	}

	uv := newExpenseView(bob, store, &notify.Recorder{})
	if err := uv.SubmitCategory(ctx, 0, editor.CategoryDraft{Name: "X"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-admin category err = %v", err)
	}
	if v.CategoryName(2) != "Fuel" || v.CategoryName(42) != "Unknown" {
		t.Error("CategoryName lookup")
	}
}
