package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/phrasebot/internal/spaced_repetition"
	"github.com/example/phrasebot/pkg/models"
)

const cardColumns = `id, user_id, deck_id, phrase_id, easiness_factor, interval_days, repetitions,
	next_review_date, last_reviewed_at, version, created_at`

// CardRepository handles database operations for cards
type CardRepository struct {
	db sqlx.ExtContext
}

// NewCardRepository creates a new repository instance on a DB or a Tx
func NewCardRepository(db sqlx.ExtContext) *CardRepository {
	return &CardRepository{db: db}
}

// Create inserts a fresh card. Empty ID, zero schedule and zero version are
// filled with the defaults of a never-reviewed card.
func (r *CardRepository) Create(ctx context.Context, card *models.Card) error {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now()
	}
	card.CreatedAt = card.CreatedAt.UTC()
	if card.EasinessFactor == 0 {
		card.Schedule = models.NewSchedule(card.CreatedAt)
	}
	card.NextReviewDate = card.NextReviewDate.UTC()
	if card.Version == 0 {
		card.Version = 1
	}

	query := r.db.Rebind(`INSERT INTO cards (` + cardColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		card.ID, card.UserID, card.DeckID, card.PhraseID,
		card.EasinessFactor, card.Interval, card.Repetitions,
		card.NextReviewDate, utcPtr(card.LastReviewedAt), card.Version, card.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// FindCard returns a card by ID, or nil when it does not exist
func (r *CardRepository) FindCard(ctx context.Context, cardID string) (*models.Card, error) {
	var card models.Card
	query := r.db.Rebind(`SELECT ` + cardColumns + ` FROM cards WHERE id = ?`)
	err := sqlx.GetContext(ctx, r.db, &card, query, cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return &card, nil
}

// FindEligibleCards returns new or due cards joined with their phrase and deck
func (r *CardRepository) FindEligibleCards(ctx context.Context, scope spaced_repetition.Scope, now time.Time, limit int) ([]models.QueueItem, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT c.id AS card_id, c.phrase_id, p.phrase, p.author, p.tags,
			c.deck_id, d.name AS deck_name,
			c.easiness_factor, c.interval_days, c.repetitions,
			c.next_review_date, c.last_reviewed_at
		FROM cards c
		JOIN phrases p ON p.id = c.phrase_id
		JOIN decks d ON d.id = c.deck_id
		WHERE c.user_id = ?`)
	args := []interface{}{scope.UserID}
	if scope.DeckID != "" {
		sb.WriteString(` AND c.deck_id = ?`)
		args = append(args, scope.DeckID)
	}
	sb.WriteString(` AND (c.repetitions = 0 OR c.next_review_date <= ?)
		ORDER BY c.repetitions ASC, c.next_review_date ASC, c.id ASC
		LIMIT ?`)
	args = append(args, now.UTC(), limit)

	items := []models.QueueItem{}
	if err := sqlx.SelectContext(ctx, r.db, &items, r.db.Rebind(sb.String()), args...); err != nil {
		return nil, fmt.Errorf("failed to get eligible cards: %w", err)
	}
	return items, nil
}

// UpdateCardSchedule stores the card's schedule when the stored version still
// equals card.Version, then advances card.Version.
func (r *CardRepository) UpdateCardSchedule(ctx context.Context, card *models.Card) error {
	query := r.db.Rebind(`
		UPDATE cards SET
			easiness_factor = ?,
			interval_days = ?,
			repetitions = ?,
			next_review_date = ?,
			last_reviewed_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?`)
	result, err := r.db.ExecContext(ctx, query,
		card.EasinessFactor,
		card.Interval,
		card.Repetitions,
		card.NextReviewDate.UTC(),
		utcPtr(card.LastReviewedAt),
		card.ID,
		card.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return spaced_repetition.ErrConcurrentUpdate
	}
	card.Version++
	return nil
}

// CountCards counts cards matching the filter
func (r *CardRepository) CountCards(ctx context.Context, filter spaced_repetition.CountFilter) (int, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT COUNT(*) FROM cards WHERE user_id = ?`)
	args := []interface{}{filter.UserID}
	if filter.DeckID != "" {
		sb.WriteString(` AND deck_id = ?`)
		args = append(args, filter.DeckID)
	}
	if filter.NewOnly {
		sb.WriteString(` AND repetitions = 0`)
	}
	if !filter.DueFrom.IsZero() {
		sb.WriteString(` AND next_review_date >= ?`)
		args = append(args, filter.DueFrom.UTC())
	}
	if !filter.DueTo.IsZero() {
		sb.WriteString(` AND next_review_date <= ?`)
		args = append(args, filter.DueTo.UTC())
	}
	if !filter.DueBefore.IsZero() {
		sb.WriteString(` AND next_review_date < ?`)
		args = append(args, filter.DueBefore.UTC())
	}

	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, r.db.Rebind(sb.String()), args...); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return n, nil
}

// ExistsForPhrase reports whether the deck already has a card for the phrase text
func (r *CardRepository) ExistsForPhrase(ctx context.Context, deckID, text string) (bool, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM cards c
		JOIN phrases p ON p.id = c.phrase_id
		WHERE c.deck_id = ? AND p.phrase = ?`)
	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, query, deckID, text); err != nil {
		return false, fmt.Errorf("failed to check card: %w", err)
	}
	return n > 0, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
