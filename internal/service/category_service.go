package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"backoffice/internal/model"
	"backoffice/internal/repository"
)

// CategoryService manages expense categories.
type CategoryService struct {
	repo *repository.CategoryRepository
	hub  *Hub
}

func NewCategoryService(repo *repository.CategoryRepository, hub *Hub) *CategoryService {
	return &CategoryService{repo: repo, hub: hub}
}

func (s *CategoryService) List(ctx context.Context) ([]model.ExpenseCategory, error) {
	return s.repo.ListAll(ctx)
}

func (s *CategoryService) CreateCategory(ctx context.Context, name string) error {
	category, err := s.repo.Create(ctx, name)
	if err != nil {
		return err
	}
	s.hub.Publish(Change{Entity: EntityCategory, ID: category.ID})
	return nil
}

func (s *CategoryService) RenameCategory(ctx context.Context, id uint, name string) error {
	if err := s.repo.Rename(ctx, id, name); err != nil {
		return err
	}
	s.hub.Publish(Change{Entity: EntityCategory, ID: id})
	return nil
}

func (s *CategoryService) DeleteCategory(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.hub.Publish(Change{Entity: EntityCategory, ID: id})
	return nil
}

type seedFile struct {
	Categories []string `yaml:"categories"`
}

// SeedFromFile creates the categories listed in a YAML file that are not
// present yet. The file looks like:
//
//	categories:
//	  - Rent
//	  - Fuel
func (s *CategoryService) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}
	var names []string
	for _, name := range seed.Categories {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	created, err := s.repo.EnsureNames(ctx, names)
	if err != nil {
		return created, err
	}
	if created > 0 {
		s.hub.Publish(Change{Entity: EntityCategory})
	}
	return created, nil
}
