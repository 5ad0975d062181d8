package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"backoffice/internal/model"
)

// SaleRepository stores orders that tasks may link to.
type SaleRepository struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) *SaleRepository {
	return &SaleRepository{db: db}
}

// Create assigns a random identifier when the sale has none.
func (r *SaleRepository) Create(ctx context.Context, sale *model.Sale) error {
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(sale).Error; err != nil {
		return fmt.Errorf("create sale: %w", err)
	}
	return nil
}

func (r *SaleRepository) ListAll(ctx context.Context) ([]model.Sale, error) {
	var sales []model.Sale
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}
