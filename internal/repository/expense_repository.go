package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"backoffice/internal/model"
)

// ExpenseRepository handles CRUD for expenses.
type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(ctx context.Context, expense *model.Expense) error {
	if err := r.db.WithContext(ctx).Create(expense).Error; err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

// ListAll returns every expense, newest date first.
func (r *ExpenseRepository) ListAll(ctx context.Context) ([]model.Expense, error) {
	var expenses []model.Expense
	if err := r.db.WithContext(ctx).Order("date DESC, id DESC").Find(&expenses).Error; err != nil {
		return nil, err
	}
	return expenses, nil
}

// Update writes the editable columns only.
func (r *ExpenseRepository) Update(ctx context.Context, id uint, date, category, description string, amount float64) error {
	updates := map[string]interface{}{
		"date":        date,
		"category":    category,
		"description": description,
		"amount":      amount,
	}
	res := r.db.WithContext(ctx).Model(&model.Expense{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update expense: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Expense{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete expense: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
