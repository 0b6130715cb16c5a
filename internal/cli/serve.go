package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/example/phrasebot/internal/api"
	"github.com/example/phrasebot/internal/bot"
	"github.com/example/phrasebot/internal/excel"
	"github.com/example/phrasebot/internal/scheduler"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the review API, the Telegram bot and the reminder scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(runCtx, ctx, cmd)
		},
	}
	cmd.Flags().String("addr", "", "HTTP listen address for the review API")
	cmd.Flags().Bool("telegram", false, "Run the Telegram bot")
	cmd.Flags().Bool("reminders", true, "Send hourly reminders through the bot")
	return cmd
}

func runServe(ctx context.Context, cc *commandContext, cmd *cobra.Command) error {
	cfg, err := cc.ensureConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := cc.logger(cmd)
	if err != nil {
		return err
	}
	store, svc, err := cc.engine(cmd)
	if err != nil {
		return err
	}

	server := api.New(svc, api.Options{
		Addr:         cfg.HTTP.Addr,
		Token:        cfg.HTTP.Token,
		DefaultLimit: cfg.Review.DefaultLimit,
		Logger:       logger,
	})
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer server.Stop()

	if !cfg.Telegram.Enabled {
		logger.Info("telegram bot disabled")
		<-ctx.Done()
		return nil
	}

	// Telegram delivers each update to one poller only.
	if err := os.MkdirAll(filepath.Dir(cfg.Telegram.LockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(cfg.Telegram.LockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire bot lock: %w", err)
	}
	if !ok {
		return errors.New("another phrasebot instance is already polling telegram")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release bot lock", slog.String("error", err.Error()))
		}
	}()

	b, err := bot.New(bot.Config{
		Token:       cfg.Telegram.Token,
		AdminIDs:    cfg.Telegram.AdminIDs,
		DefaultHour: cfg.Scheduler.DefaultHour,
		Logger:      logger,
	}, svc, store.Users(), excel.NewImporter(store, logger))
	if err != nil {
		return err
	}

	if cfg.Scheduler.Enabled {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		reminders := scheduler.New(store.Users(), svc, b, scheduler.Options{
			StartHour: cfg.Scheduler.StartHour,
			EndHour:   cfg.Scheduler.EndHour,
			Location:  loc,
			Logger:    logger,
		})
		if err := reminders.Start(ctx); err != nil {
			return err
		}
		defer reminders.Stop()
	}

	if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutting down")
	return nil
}
