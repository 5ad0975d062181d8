package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"backoffice/internal/bot"
	"backoffice/internal/deadline"
	"backoffice/internal/service"
	"backoffice/internal/web"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot, scheduler and print server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := openApp(os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.cfg.RequireTelegram(); err != nil {
		return err
	}

	lock := flock.New(a.cfg.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", a.cfg.LockFile, err)
	}
	if !locked {
		return fmt.Errorf("another instance holds %s", a.cfg.LockFile)
	}
	defer lock.Unlock()

	if a.cfg.CategoriesFile != "" {
		created, err := a.categorySvc.SeedFromFile(ctx, a.cfg.CategoriesFile)
		if err != nil {
			return err
		}
		a.logger.Info().Int("created", created).Str("file", a.cfg.CategoriesFile).Msg("categories seeded")
	}

	scheduler := service.NewSchedulerService(a.cfg.Location)
	watcher := deadline.NewWatcher(scheduler, a.cfg.CountdownInterval, nil)

	var server *web.Server
	if a.cfg.HTTPAddr != "" {
		server = web.NewServer(web.Config{
			Addr:      a.cfg.HTTPAddr,
			PublicURL: a.cfg.PublicURL,
			TTL:       a.cfg.PrintTTL,
			Logger:    a.logger.With().Str("component", "web").Logger(),
		})
	}

	telegramBot, err := bot.New(a.cfg.TelegramToken, bot.Deps{
		Users:      a.users,
		Tasks:      a.taskSvc,
		Expenses:   a.expenseSvc,
		Categories: a.categorySvc,
		Digest:     a.digestSvc,
		Hub:        a.hub,
		Watcher:    watcher,
		Web:        server,
		Config:     a.cfg,
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}

	if a.cfg.DigestTime != "" {
		if _, err := scheduler.ScheduleDaily(a.cfg.DigestTime, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailyDigests(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("daily digest")
			}
		}); err != nil {
			return fmt.Errorf("schedule digest: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	a.logger.Info().Str("digest_time", a.cfg.DigestTime).Dur("countdown_interval", a.cfg.CountdownInterval).Msg("back office started")

	runners := []func(context.Context) error{telegramBot.Start}
	if server != nil {
		runners = append(runners, server.Start)
	}
	err = runUntilFirstExit(ctx, runners...)
	a.logger.Info().Msg("shutdown complete")
	return err
}

// runUntilFirstExit runs every runner and stops the rest once any of them
// returns. Cancellation is not reported as an error.
func runUntilFirstExit(ctx context.Context, runners ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, run := range runners {
		g.Go(func() error {
			defer cancel()
			return run(gctx)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
