package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"backoffice/internal/access"
	"backoffice/internal/editor"
	"backoffice/internal/export"
	"backoffice/internal/model"
	"backoffice/internal/notify"
)

// PopupBlockedMessage is shown when no print surface can be opened.
const PopupBlockedMessage = "Could not open print window. Please allow pop-ups."

// ExpenseSnapshot is the data the expense screen renders.
type ExpenseSnapshot struct {
	Expenses   []model.Expense
	Users      []model.User
	Categories []model.ExpenseCategory
}

// Artifact is a file offered for download.
type Artifact struct {
	Filename string
	Content  []byte
}

type ExpenseViewConfig struct {
	Viewer     model.User
	Expenses   ExpenseStore
	Categories CategoryStore
	Notifier   notify.Notifier
	Formatter  export.Formatter
	Location   *time.Location
	Now        func() time.Time
}

// ExpenseView is the expense ledger screen of one viewer.
type ExpenseView struct {
	expenses   ExpenseStore
	categories CategoryStore
	notifier   notify.Notifier
	formatter  export.Formatter
	loc        *time.Location
	now        func() time.Time

	dialog           editor.Dialog
	categoryDialog   editor.Dialog
	deleting         editor.Confirmation[uint]
	deletingCategory editor.Confirmation[uint]

	mu     sync.Mutex
	viewer model.User
	snap   ExpenseSnapshot
	filter access.ExpenseFilter
	draft  editor.ExpenseDraft
}

func NewExpenseView(cfg ExpenseViewConfig) *ExpenseView {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Func(func(context.Context, notify.Toast) {})
	}
	return &ExpenseView{
		viewer:     cfg.Viewer,
		expenses:   cfg.Expenses,
		categories: cfg.Categories,
		notifier:   cfg.Notifier,
		formatter:  cfg.Formatter,
		loc:        cfg.Location,
		now:        cfg.Now,
	}
}

func (v *ExpenseView) Viewer() model.User {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewer
}

// Dialog exposes the expense dialog so callers can set an OnError hook.
func (v *ExpenseView) Dialog() *editor.Dialog { return &v.dialog }

func (v *ExpenseView) Refresh(snap ExpenseSnapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap = snap
	v.viewer = refreshViewer(v.viewer, snap.Users)
}

// SetFilter replaces the admin filter.
func (v *ExpenseView) SetFilter(f access.ExpenseFilter) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.viewer.IsAdmin() {
		return ErrForbidden
	}
	v.filter = f
	return nil
}

func (v *ExpenseView) Filter() access.ExpenseFilter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// Visible returns the expenses the viewer may see under the current filter.
func (v *ExpenseView) Visible() []model.Expense {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible()
}

// Total sums the visible amounts.
func (v *ExpenseView) Total() float64 {
	return export.Total(v.Visible())
}

func (v *ExpenseView) Users() []model.User {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.User(nil), v.snap.Users...)
}

func (v *ExpenseView) Categories() []model.ExpenseCategory {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.ExpenseCategory(nil), v.snap.Categories...)
}

// CategoryName resolves a category id, or "Unknown".
func (v *ExpenseView) CategoryName(id uint) string {
	for _, c := range v.Categories() {
		if c.ID == id {
			return c.Name
		}
	}
	return "Unknown"
}

// OpenCreate starts a new expense for the viewer dated today.
func (v *ExpenseView) OpenCreate() {
	v.mu.Lock()
	v.draft = editor.ExpenseDraft{Date: v.now().In(v.loc).Format(model.DateLayout)}
	v.mu.Unlock()
	v.dialog.Open(editor.ModeCreate, 0)
}

// OpenEdit loads an expense into the draft. Admin only.
func (v *ExpenseView) OpenEdit(id uint) error {
	v.mu.Lock()
	if !v.viewer.IsAdmin() {
		v.mu.Unlock()
		return ErrForbidden
	}
	e, err := v.find(id)
	if err == nil {
		v.draft = editor.DraftFromExpense(e)
	}
	v.mu.Unlock()
	if err != nil {
		return err
	}
	v.dialog.Open(editor.ModeEdit, id)
	return nil
}

func (v *ExpenseView) EditDraft(fn func(*editor.ExpenseDraft)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(&v.draft)
}

func (v *ExpenseView) Draft() editor.ExpenseDraft {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draft
}

func (v *ExpenseView) CanSubmit() bool {
	return v.dialog.IsOpen() && v.Draft().Ready()
}

func (v *ExpenseView) CloseDialog() {
	v.dialog.Close()
	v.mu.Lock()
	v.draft = editor.ExpenseDraft{}
	v.mu.Unlock()
}

// Submit saves the open draft, creating or updating depending on the
// dialog mode. The dialog closes when the store returns, even on failure.
func (v *ExpenseView) Submit(ctx context.Context) error {
	mode, target := v.dialog.Mode(), v.dialog.Target()
	if mode == editor.ModeClosed {
		return editor.ErrDialogClosed
	}
	draft := v.Draft()
	if !draft.Ready() {
		return ErrNotReady
	}
	viewer := v.Viewer()

	var call func(context.Context) error
	switch mode {
	case editor.ModeEdit:
		if !viewer.IsAdmin() {
			return ErrForbidden
		}
		update, err := draft.Update()
		if err != nil {
			return err
		}
		call = func(ctx context.Context) error {
			return v.expenses.UpdateExpense(ctx, target, update)
		}
	default:
		expense, err := draft.Build(viewer)
		if err != nil {
			return err
		}
		call = func(ctx context.Context) error {
			return v.expenses.CreateExpense(ctx, &expense)
		}
	}

	err := v.dialog.Submit(ctx, call)
	if !v.dialog.IsOpen() {
		v.mu.Lock()
		v.draft = editor.ExpenseDraft{}
		v.mu.Unlock()
	}
	return err
}

// RequestDelete asks for confirmation before deleting. Admin only.
func (v *ExpenseView) RequestDelete(id uint) (model.Expense, error) {
	v.mu.Lock()
	if !v.viewer.IsAdmin() {
		v.mu.Unlock()
		return model.Expense{}, ErrForbidden
	}
	e, err := v.find(id)
	v.mu.Unlock()
	if err != nil {
		return model.Expense{}, err
	}
	v.deleting.Request(id)
	return e, nil
}

func (v *ExpenseView) PendingDelete() (uint, bool) { return v.deleting.Pending() }

func (v *ExpenseView) CancelDelete(id uint) bool { return v.deleting.CancelTarget(id) }

// ConfirmDelete deletes expense id if it is the one awaiting confirmation.
func (v *ExpenseView) ConfirmDelete(ctx context.Context, id uint) error {
	return v.deleting.ConfirmTarget(ctx, id, v.expenses.DeleteExpense)
}

// ExportCSV renders the visible expenses as a downloadable file.
func (v *ExpenseView) ExportCSV(ctx context.Context) Artifact {
	rows := v.Visible()
	v.notifier.Notify(ctx, notify.Toast{
		Severity: notify.Info,
		Message:  fmt.Sprintf("Exporting %d expenses", len(rows)),
	})
	return Artifact{
		Filename: export.CSVFilename(v.now().In(v.loc)),
		Content:  export.CSV(rows),
	}
}

// Report renders the printable report of the visible expenses.
func (v *ExpenseView) Report() (export.Document, error) {
	v.mu.Lock()
	in := export.ReportInput{
		Rows:        v.visible(),
		Filter:      v.activeFilter(),
		Users:       v.snap.Users,
		GeneratedAt: v.now().In(v.loc),
		Formatter:   v.formatter,
	}
	v.mu.Unlock()

	html, err := export.HTMLReport(in)
	if err != nil {
		return export.Document{}, err
	}
	name := "expense_report_" + in.GeneratedAt.Format(model.DateLayout) + ".html"
	return export.HTMLDocument(name, html), nil
}

// Print renders the report on a new surface and prints it. When no surface
// can be opened the viewer is told and the report is dropped.
func (v *ExpenseView) Print(ctx context.Context, opener export.Opener) error {
	doc, err := v.Report()
	if err != nil {
		return err
	}
	if err := export.Print(ctx, opener, doc); err != nil {
		if errors.Is(err, export.ErrSurfaceBlocked) {
			v.notifier.Notify(ctx, notify.Toast{Severity: notify.Error, Message: PopupBlockedMessage})
		}
		return err
	}
	return nil
}

// SubmitCategory creates a category, or renames one when id is non-zero.
// Admin only; duplicate names are accepted.
func (v *ExpenseView) SubmitCategory(ctx context.Context, id uint, draft editor.CategoryDraft) error {
	if !v.Viewer().IsAdmin() {
		return ErrForbidden
	}
	if !draft.Ready() {
		return ErrNotReady
	}
	if id == 0 {
		v.categoryDialog.Open(editor.ModeCreate, 0)
	} else {
		if !v.hasCategory(id) {
			return ErrNotFound
		}
		v.categoryDialog.Open(editor.ModeEdit, id)
	}
	return v.categoryDialog.Submit(ctx, func(ctx context.Context) error {
		if id == 0 {
			return v.categories.CreateCategory(ctx, draft.Value())
		}
		return v.categories.RenameCategory(ctx, id, draft.Value())
	})
}

func (v *ExpenseView) RequestDeleteCategory(id uint) (model.ExpenseCategory, error) {
	if !v.Viewer().IsAdmin() {
		return model.ExpenseCategory{}, ErrForbidden
	}
	for _, c := range v.Categories() {
		if c.ID == id {
			v.deletingCategory.Request(id)
			return c, nil
		}
	}
	return model.ExpenseCategory{}, ErrNotFound
}

func (v *ExpenseView) PendingDeleteCategory() (uint, bool) { return v.deletingCategory.Pending() }

func (v *ExpenseView) CancelDeleteCategory(id uint) bool { return v.deletingCategory.CancelTarget(id) }

// ConfirmDeleteCategory deletes category id if it is the one awaiting
// confirmation. Expenses keep the old label.
func (v *ExpenseView) ConfirmDeleteCategory(ctx context.Context, id uint) error {
	return v.deletingCategory.ConfirmTarget(ctx, id, v.categories.DeleteCategory)
}

// Close drops all ephemeral state.
func (v *ExpenseView) Close() {
	v.CloseDialog()
	v.deleting.Cancel()
	v.deletingCategory.Cancel()
}

func (v *ExpenseView) hasCategory(id uint) bool {
	for _, c := range v.Categories() {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (v *ExpenseView) visible() []model.Expense {
	today := v.now().In(v.loc)
	return access.VisibleExpenses(v.snap.Expenses, v.snap.Users, v.viewer, v.filter, today)
}

// activeFilter is the filter that actually applies to the viewer.
func (v *ExpenseView) activeFilter() access.ExpenseFilter {
	if !v.viewer.IsAdmin() {
		return access.ExpenseFilter{}
	}
	return v.filter
}

func (v *ExpenseView) find(id uint) (model.Expense, error) {
	for _, e := range v.visible() {
		if e.ID == id {
			return e, nil
		}
	}
	return model.Expense{}, ErrNotFound
}
