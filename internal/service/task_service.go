package service

import (
	"context"
	"fmt"

	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/internal/view"
)

// TaskService persists task changes and loads task snapshots.
type TaskService struct {
	taskRepo *repository.TaskRepository
	userRepo *repository.UserRepository
	saleRepo *repository.SaleRepository
	hub      *Hub
}

func NewTaskService(taskRepo *repository.TaskRepository, userRepo *repository.UserRepository, saleRepo *repository.SaleRepository, hub *Hub) *TaskService {
	return &TaskService{taskRepo: taskRepo, userRepo: userRepo, saleRepo: saleRepo, hub: hub}
}

func (s *TaskService) CreateTask(ctx context.Context, task *model.Task) error {
	if task.Title == "" {
		return fmt.Errorf("title is required")
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return err
	}
	s.hub.Publish(Change{Entity: EntityTask, ID: task.ID})
	return nil
}

func (s *TaskService) UpdateTaskStatus(ctx context.Context, id uint, status model.TaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	if err := s.taskRepo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.hub.Publish(Change{Entity: EntityTask, ID: id})
	return nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id uint) error {
	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.hub.Publish(Change{Entity: EntityTask, ID: id})
	return nil
}

// Snapshot loads everything the task screen needs.
func (s *TaskService) Snapshot(ctx context.Context) (view.TaskSnapshot, error) {
	tasks, err := s.taskRepo.ListAll(ctx)
	if err != nil {
		return view.TaskSnapshot{}, fmt.Errorf("list tasks: %w", err)
	}
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return view.TaskSnapshot{}, fmt.Errorf("list users: %w", err)
	}
	sales, err := s.saleRepo.ListAll(ctx)
	if err != nil {
		return view.TaskSnapshot{}, fmt.Errorf("list sales: %w", err)
	}
	return view.TaskSnapshot{Tasks: tasks, Users: users, Sales: sales}, nil
}
