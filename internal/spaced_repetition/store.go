package spaced_repetition

import (
	"context"
	"time"

	"github.com/example/phrasebot/pkg/models"
)

// Scope narrows card queries to one user and, optionally, one deck.
type Scope struct {
	UserID string
	DeckID string // empty means every deck of the user
}

// CountFilter selects the cards counted for statistics. Zero time values
// leave the corresponding bound open.
type CountFilter struct {
	Scope
	NewOnly   bool
	DueFrom   time.Time // inclusive
	DueTo     time.Time // inclusive
	DueBefore time.Time // exclusive
}

// CardStore is the persistence the engine needs for cards.
type CardStore interface {
	// FindCard returns nil, nil when the card does not exist.
	FindCard(ctx context.Context, cardID string) (*models.Card, error)
	// FindEligibleCards returns up to limit cards in scope with
	// repetitions == 0 or next_review_date <= now, ordered by repetitions
	// then next_review_date.
	FindEligibleCards(ctx context.Context, scope Scope, now time.Time, limit int) ([]models.QueueItem, error)
	// UpdateCardSchedule writes card's schedule if its version still matches
	// the stored one, and bumps the version. A mismatch returns
	// ErrConcurrentUpdate.
	UpdateCardSchedule(ctx context.Context, card *models.Card) error
	CountCards(ctx context.Context, filter CountFilter) (int, error)
}

// HistoryStore is the append-only review log.
type HistoryStore interface {
	AppendReviewRecord(ctx context.Context, record *models.ReviewRecord) error
	CountByGrade(ctx context.Context, scope Scope) (map[models.Grade]int, error)
}

// Store bundles both collaborators with a transaction boundary.
type Store interface {
	Cards() CardStore
	History() HistoryStore
	// WithinTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
