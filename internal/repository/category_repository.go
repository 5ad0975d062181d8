package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"backoffice/internal/model"
)

// CategoryRepository manages expense categories.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create inserts a category. Duplicate names are allowed.
func (r *CategoryRepository) Create(ctx context.Context, name string) (*model.ExpenseCategory, error) {
	category := model.ExpenseCategory{Name: name}
	if err := r.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &category, nil
}

// EnsureNames creates the given names that do not exist yet.
func (r *CategoryRepository) EnsureNames(ctx context.Context, names []string) (int, error) {
	created := 0
	db := r.db.WithContext(ctx)
	for _, name := range names {
		var count int64
		if err := db.Model(&model.ExpenseCategory{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return created, fmt.Errorf("find category: %w", err)
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&model.ExpenseCategory{Name: name}).Error; err != nil {
			return created, fmt.Errorf("create category: %w", err)
		}
		created++
	}
	return created, nil
}

func (r *CategoryRepository) ListAll(ctx context.Context) ([]model.ExpenseCategory, error) {
	var categories []model.ExpenseCategory
	if err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id uint) (*model.ExpenseCategory, error) {
	var category model.ExpenseCategory
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// Rename does not touch expenses that reference the old name.
func (r *CategoryRepository) Rename(ctx context.Context, id uint, name string) error {
	res := r.db.WithContext(ctx).Model(&model.ExpenseCategory{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return fmt.Errorf("rename category: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.ExpenseCategory{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete category: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
