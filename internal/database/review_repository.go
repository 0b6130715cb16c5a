package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"github.com/example/phrasebot/internal/spaced_repetition"
	"github.com/example/phrasebot/pkg/models"
)

// ReviewRepository stores the append-only review history
type ReviewRepository struct {
	db sqlx.ExtContext
}

// NewReviewRepository creates a new repository instance on a DB or a Tx
func NewReviewRepository(db sqlx.ExtContext) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// AppendReviewRecord inserts a record, assigning a time-ordered ID when empty
func (r *ReviewRepository) AppendReviewRecord(ctx context.Context, record *models.ReviewRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.CreatedAt = record.CreatedAt.UTC()
	if record.ID == "" {
		record.ID = ulid.MustNew(ulid.Timestamp(record.CreatedAt), ulid.DefaultEntropy()).String()
	}

	query := r.db.Rebind(`
		INSERT INTO review_records (
			id, card_id, grade, old_easiness_factor, new_easiness_factor,
			old_interval, new_interval, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.CardID,
		record.Grade,
		record.OldEasinessFactor,
		record.NewEasinessFactor,
		record.OldInterval,
		record.NewInterval,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review record: %w", err)
	}
	return nil
}

// CountByGrade tallies the review records of the user's cards per grade
func (r *ReviewRepository) CountByGrade(ctx context.Context, scope spaced_repetition.Scope) (map[models.Grade]int, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT r.grade, COUNT(*) AS n
		FROM review_records r
		JOIN cards c ON c.id = r.card_id
		WHERE c.user_id = ?`)
	args := []interface{}{scope.UserID}
	if scope.DeckID != "" {
		sb.WriteString(` AND c.deck_id = ?`)
		args = append(args, scope.DeckID)
	}
	sb.WriteString(` GROUP BY r.grade`)

	var rows []struct {
		Grade models.Grade `db:"grade"`
		N     int          `db:"n"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(sb.String()), args...); err != nil {
		return nil, fmt.Errorf("failed to count reviews by grade: %w", err)
	}

	counts := make(map[models.Grade]int, len(rows))
	for _, row := range rows {
		counts[row.Grade] = row.N
	}
	return counts, nil
}

// ListByCard returns a card's review history, oldest first
func (r *ReviewRepository) ListByCard(ctx context.Context, cardID string) ([]models.ReviewRecord, error) {
	query := r.db.Rebind(`
		SELECT id, card_id, grade, old_easiness_factor, new_easiness_factor,
			old_interval, new_interval, created_at
		FROM review_records
		WHERE card_id = ?
		ORDER BY created_at ASC, id ASC`)
	records := []models.ReviewRecord{}
	if err := sqlx.SelectContext(ctx, r.db, &records, query, cardID); err != nil {
		return nil, fmt.Errorf("failed to get review history: %w", err)
	}
	return records, nil
}
