package service

import (
	"context"
	"fmt"

	"backoffice/internal/editor"
	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/internal/view"
)

// ExpenseService persists expense changes and loads expense snapshots.
type ExpenseService struct {
	expenseRepo  *repository.ExpenseRepository
	categoryRepo *repository.CategoryRepository
	userRepo     *repository.UserRepository
	hub          *Hub
}

func NewExpenseService(expenseRepo *repository.ExpenseRepository, categoryRepo *repository.CategoryRepository, userRepo *repository.UserRepository, hub *Hub) *ExpenseService {
	return &ExpenseService{expenseRepo: expenseRepo, categoryRepo: categoryRepo, userRepo: userRepo, hub: hub}
}

func (s *ExpenseService) CreateExpense(ctx context.Context, expense *model.Expense) error {
	if err := s.expenseRepo.Create(ctx, expense); err != nil {
		return err
	}
	s.hub.Publish(Change{Entity: EntityExpense, ID: expense.ID})
	return nil
}

func (s *ExpenseService) UpdateExpense(ctx context.Context, id uint, update editor.ExpenseUpdate) error {
	if err := s.expenseRepo.Update(ctx, id, update.Date, update.Category, update.Description, update.Amount); err != nil {
		return err
	}
	s.hub.Publish(Change{Entity: EntityExpense, ID: id})
	return nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, id uint) error {
	if err := s.expenseRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.hub.Publish(Change{Entity: EntityExpense, ID: id})
	return nil
}

// Snapshot loads everything the expense screen needs.
func (s *ExpenseService) Snapshot(ctx context.Context) (view.ExpenseSnapshot, error) {
	expenses, err := s.expenseRepo.ListAll(ctx)
	if err != nil {
		return view.ExpenseSnapshot{}, fmt.Errorf("list expenses: %w", err)
	}
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return view.ExpenseSnapshot{}, fmt.Errorf("list users: %w", err)
	}
	categories, err := s.categoryRepo.ListAll(ctx)
	if err != nil {
		return view.ExpenseSnapshot{}, fmt.Errorf("list categories: %w", err)
	}
	return view.ExpenseSnapshot{Expenses: expenses, Users: users, Categories: categories}, nil
}
