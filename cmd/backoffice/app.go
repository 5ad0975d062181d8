package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"backoffice/internal/config"
	"backoffice/internal/export"
	"backoffice/internal/logging"
	"backoffice/internal/repository"
	"backoffice/internal/service"
)

// app holds everything the commands share.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
	db     *gorm.DB

	users      *repository.UserRepository
	tasks      *repository.TaskRepository
	expenses   *repository.ExpenseRepository
	categories *repository.CategoryRepository
	sales      *repository.SaleRepository

	hub         *service.Hub
	taskSvc     *service.TaskService
	expenseSvc  *service.ExpenseService
	categorySvc *service.CategoryService
	digestSvc   *service.DigestService
}

func openApp(logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := logging.NewWithWriter(logOut, cfg.LogLevel, cfg.LogPretty)

	db, err := repository.NewDB(cfg.DatabaseURL, logging.Gorm(logger))
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	a := &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		users:      repository.NewUserRepository(db),
		tasks:      repository.NewTaskRepository(db),
		expenses:   repository.NewExpenseRepository(db),
		categories: repository.NewCategoryRepository(db),
		sales:      repository.NewSaleRepository(db),
		hub:        service.NewHub(),
	}
	a.taskSvc = service.NewTaskService(a.tasks, a.users, a.sales, a.hub)
	a.expenseSvc = service.NewExpenseService(a.expenses, a.categories, a.users, a.hub)
	a.categorySvc = service.NewCategoryService(a.categories, a.hub)
	a.digestSvc = service.NewDigestService(a.tasks, a.expenses, a.users, export.Formatter{Currency: cfg.Currency})
	return a, nil
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
