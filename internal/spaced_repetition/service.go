package spaced_repetition

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/phrasebot/pkg/models"
)

// Queue size bounds accepted by BuildReviewQueue.
const (
	DefaultQueueLimit = 20
	MaxQueueLimit     = 100
)

// QueueRequest describes one review queue fetch.
type QueueRequest struct {
	UserID string
	DeckID string
	Limit  int
}

// Service selects due cards and applies grades. It keeps no state between
// calls; every queue is derived from the stored cards.
type Service struct {
	store    Store
	sm2      *SM2
	location *time.Location
	logger   *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger used for review events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocation sets the time zone that defines calendar days for due dates
// and statistics.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewService creates a review service on top of store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		location: time.Local,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sm2 = NewSM2()
	s.sm2.Location = s.location
	return s
}

// Location returns the time zone used for calendar-day boundaries.
func (s *Service) Location() *time.Location {
	return s.location
}

// BuildReviewQueue returns up to req.Limit eligible cards ordered by study
// priority (see Compare).
func (s *Service) BuildReviewQueue(ctx context.Context, req QueueRequest, now time.Time) ([]models.QueueItem, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidID)
	}
	if req.Limit < 1 || req.Limit > MaxQueueLimit {
		return nil, fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidLimit, req.Limit, MaxQueueLimit)
	}

	scope := Scope{UserID: req.UserID, DeckID: req.DeckID}
	candidates, err := s.store.Cards().FindEligibleCards(ctx, scope, now, req.Limit*2)
	if err != nil {
		return nil, fmt.Errorf("find eligible cards: %w", err)
	}

	SortQueue(candidates, now)
	if len(candidates) > req.Limit {
		candidates = candidates[:req.Limit]
	}

	queue := make([]models.QueueItem, len(candidates))
	for i, item := range candidates {
		item.IsNew = item.Schedule.IsNew()
		queue[i] = item
	}
	return queue, nil
}

// ProcessReview applies grade to the card and records the event. The card
// update and the history insert share one transaction.
func (s *Service) ProcessReview(ctx context.Context, cardID string, grade models.Grade, userID string, now time.Time) (*models.ReviewResult, error) {
	if !grade.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGrade, int(grade))
	}
	if strings.TrimSpace(cardID) == "" || strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: card id and user id are required", ErrInvalidID)
	}

	var result *models.ReviewResult
	err := s.store.WithinTx(ctx, func(tx Store) error {
		card, err := tx.Cards().FindCard(ctx, cardID)
		if err != nil {
			return fmt.Errorf("find card %s: %w", cardID, err)
		}
		if card == nil {
			return ErrCardNotFound
		}
		if card.UserID != userID {
			return ErrNotAuthorized
		}

		before := card.Schedule
		card.Schedule = s.sm2.Next(before, grade, now)
		if err := tx.Cards().UpdateCardSchedule(ctx, card); err != nil {
			return fmt.Errorf("update card %s: %w", cardID, err)
		}

		record := models.ReviewRecord{
			CardID:            card.ID,
			Grade:             grade,
			OldEasinessFactor: before.EasinessFactor,
			NewEasinessFactor: card.EasinessFactor,
			OldInterval:       before.Interval,
			NewInterval:       card.Interval,
			CreatedAt:         now.UTC(),
		}
		if err := tx.History().AppendReviewRecord(ctx, &record); err != nil {
			return fmt.Errorf("append review record for card %s: %w", cardID, err)
		}

		result = &models.ReviewResult{
			Card: *card,
			Changes: models.ChangeSummary{
				EasinessFactor: models.FloatChange{Old: before.EasinessFactor, New: card.EasinessFactor},
				Interval:       models.IntChange{Old: before.Interval, New: card.Interval},
				Repetitions:    models.IntChange{Old: before.Repetitions, New: card.Repetitions},
				NextReviewDate: card.NextReviewDate,
			},
			Record: record,
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("review not applied",
			slog.String("card_id", cardID),
			slog.String("user_id", userID),
			slog.String("grade", grade.String()),
			slog.String("code", Code(err)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("review applied",
		slog.String("card_id", cardID),
		slog.String("user_id", userID),
		slog.String("grade", grade.String()),
		slog.Int("old_interval", result.Changes.Interval.Old),
		slog.Int("new_interval", result.Changes.Interval.New),
		slog.Float64("easiness_factor", result.Changes.EasinessFactor.New),
	)
	return result, nil
}

// GetReviewStats counts the user's cards by state and tallies review grades.
// Due and overdue are measured against the calendar day containing now.
func (s *Service) GetReviewStats(ctx context.Context, userID, deckID string, now time.Time) (*models.ReviewStats, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidID)
	}

	scope := Scope{UserID: userID, DeckID: deckID}
	startOfToday, endOfToday := s.dayBounds(now)
	cards := s.store.Cards()

	var stats models.ReviewStats
	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int, filter CountFilter, what string) {
		g.Go(func() error {
			n, err := cards.CountCards(gctx, filter)
			if err != nil {
				return fmt.Errorf("count %s cards: %w", what, err)
			}
			*dst = n
			return nil
		})
	}
	count(&stats.TotalCards, CountFilter{Scope: scope}, "total")
	count(&stats.NewCards, CountFilter{Scope: scope, NewOnly: true}, "new")
	count(&stats.DueCards, CountFilter{Scope: scope, DueFrom: startOfToday, DueTo: endOfToday}, "due")
	count(&stats.OverdueCards, CountFilter{Scope: scope, DueBefore: startOfToday}, "overdue")
	g.Go(func() error {
		byGrade, err := s.store.History().CountByGrade(gctx, scope)
		if err != nil {
			return fmt.Errorf("count reviews by grade: %w", err)
		}
		stats.GradeStats = models.NewGradeStats(byGrade)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// dayBounds returns the first and last instant of now's calendar day.
func (s *Service) dayBounds(now time.Time) (time.Time, time.Time) {
	local := now.In(s.location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return start.UTC(), end.UTC()
}
