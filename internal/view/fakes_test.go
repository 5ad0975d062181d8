package view

import (
	"context"
	"sync"
	"time"

	"backoffice/internal/editor"
	"backoffice/internal/export"
	"backoffice/internal/model"
)

type fakeStore struct {
	err error

	created       []model.Task
	statusUpdates map[uint]model.TaskStatus
	deletedTasks  []uint
	expenses      []model.Expense
	updates       map[uint]editor.ExpenseUpdate
	deletedExp    []uint
	categories    []string
	renamed       map[uint]string
	deletedCats   []uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		statusUpdates: make(map[uint]model.TaskStatus),
		updates:       make(map[uint]editor.ExpenseUpdate),
		renamed:       make(map[uint]string),
	}
}

func (f *fakeStore) CreateTask(_ context.Context, task *model.Task) error {
	f.created = append(f.created, *task)
	return f.err
}

func (f *fakeStore) UpdateTaskStatus(_ context.Context, id uint, status model.TaskStatus) error {
	if f.err != nil {
		return f.err
	}
	f.statusUpdates[id] = status
	return nil
}

func (f *fakeStore) DeleteTask(_ context.Context, id uint) error {
	f.deletedTasks = append(f.deletedTasks, id)
	return f.err
}

func (f *fakeStore) CreateExpense(_ context.Context, e *model.Expense) error {
	f.expenses = append(f.expenses, *e)
	return f.err
}

func (f *fakeStore) UpdateExpense(_ context.Context, id uint, u editor.ExpenseUpdate) error {
	f.updates[id] = u
	return f.err
}

func (f *fakeStore) DeleteExpense(_ context.Context, id uint) error {
	f.deletedExp = append(f.deletedExp, id)
	return f.err
}

func (f *fakeStore) CreateCategory(_ context.Context, name string) error {
	f.categories = append(f.categories, name)
	return f.err
}

func (f *fakeStore) RenameCategory(_ context.Context, id uint, name string) error {
	f.renamed[id] = name
	return f.err
}

func (f *fakeStore) DeleteCategory(_ context.Context, id uint) error {
	f.deletedCats = append(f.deletedCats, id)
	return f.err
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs map[int]func()
	next int
}

func (f *fakeScheduler) Every(_ time.Duration, job func()) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jobs == nil {
		f.jobs = make(map[int]func())
	}
	id := f.next
	f.next++
	f.jobs[id] = job
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.jobs, id)
	}, nil
}

func (f *fakeScheduler) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func (f *fakeScheduler) fire() {
	f.mu.Lock()
	var jobs []func()
	for _, j := range f.jobs {
		jobs = append(jobs, j)
	}
	f.mu.Unlock()
	for _, j := range jobs {
		j()
	}
}

type fakeSurface struct {
	doc     export.Document
	printed bool
}

func (s *fakeSurface) Render(_ context.Context, doc export.Document) error {
	s.doc = doc
	return nil
}

func (s *fakeSurface) Print(context.Context) error {
	s.printed = true
	return nil
}

type fakeOpener struct {
	surface *fakeSurface
	err     error
}

func (o fakeOpener) Open(context.Context) (export.Surface, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.surface, nil
}
