package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/phrasebot/internal/logging"
	"github.com/example/phrasebot/pkg/models"
)

// Default reminder window, in hours of the configured location.
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 22
)

// Notifier delivers a study reminder to a user.
type Notifier interface {
	SendReminder(ctx context.Context, user models.User, stats models.ReviewStats) error
}

// UserSource lists the users who asked for a reminder at a given hour.
type UserSource interface {
	GetUsersForNotification(ctx context.Context, hour int) ([]models.User, error)
}

// StatsSource computes the review statistics a reminder is based on.
type StatsSource interface {
	GetReviewStats(ctx context.Context, userID, deckID string, now time.Time) (*models.ReviewStats, error)
}

// Options configures the reminder window and clock.
type Options struct {
	StartHour int
	EndHour   int
	Location  *time.Location
	Logger    *slog.Logger
	Now       func() time.Time
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	users     UserSource
	stats     StatsSource
	notifier  Notifier
	startHour int
	endHour   int
	location  *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a new scheduler instance
func New(users UserSource, stats StatsSource, notifier Notifier, opts Options) *Scheduler {
	s := &Scheduler{
		users:     users,
		stats:     stats,
		notifier:  notifier,
		startHour: opts.StartHour,
		endHour:   opts.EndHour,
		location:  opts.Location,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.logger = s.logger.With(slog.String("component", "scheduler"))
	if s.now == nil {
		s.now = time.Now
	}
	s.scheduler = gocron.NewScheduler(s.location)
	return s
}

// Start schedules the hourly reminder check and runs it in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(1).Hour().Do(func() {
		if _, err := s.CheckAndSendReminders(ctx); err != nil {
			s.logger.Error("reminder check failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminder job: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("reminder scheduler started",
		slog.Int("start_hour", s.startHour),
		slog.Int("end_hour", s.endHour),
		slog.String("location", s.location.String()),
	)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// CheckAndSendReminders notifies every user whose reminder hour is the
// current hour and who has cards waiting. It returns how many reminders
// were sent. Per-user failures are logged and skipped.
func (s *Scheduler) CheckAndSendReminders(ctx context.Context) (int, error) {
	now := s.now()
	currentHour := now.In(s.location).Hour()

	if currentHour < s.startHour || currentHour > s.endHour {
		s.logger.Debug("outside notification hours, skipping reminders",
			slog.Int("hour", currentHour),
			slog.Int("start_hour", s.startHour),
			slog.Int("end_hour", s.endHour),
		)
		return 0, nil
	}

	users, err := s.users.GetUsersForNotification(ctx, currentHour)
	if err != nil {
		return 0, fmt.Errorf("get users for notification: %w", err)
	}

	sent := 0
	for _, user := range users {
		ok, err := s.remind(ctx, user, now)
		if err != nil {
			s.logger.Warn("reminder failed",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// RunManualCheck sends a reminder to one user if they have cards waiting,
// regardless of their reminder hour.
func (s *Scheduler) RunManualCheck(ctx context.Context, user models.User) (bool, error) {
	return s.remind(ctx, user, s.now())
}

func (s *Scheduler) remind(ctx context.Context, user models.User, now time.Time) (bool, error) {
	stats, err := s.stats.GetReviewStats(ctx, user.ID, "", now)
	if err != nil {
		return false, err
	}
	if stats.Pending() == 0 {
		return false, nil
	}
	if err := s.notifier.SendReminder(ctx, user, *stats); err != nil {
		return false, err
	}
	s.logger.Info("reminder sent",
		slog.String("user_id", user.ID),
		slog.Int("due", stats.DueCards),
		slog.Int("overdue", stats.OverdueCards),
		slog.Int("new", stats.NewCards),
	)
	return true, nil
}
