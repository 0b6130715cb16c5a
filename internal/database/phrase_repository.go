package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/phrasebot/pkg/models"
)

// PhraseRepository handles database operations for phrases
type PhraseRepository struct {
	db sqlx.ExtContext
}

// NewPhraseRepository creates a new repository instance
func NewPhraseRepository(db sqlx.ExtContext) *PhraseRepository {
	return &PhraseRepository{db: db}
}

// Create inserts a new phrase
func (r *PhraseRepository) Create(ctx context.Context, phrase *models.Phrase) error {
	if phrase.ID == "" {
		phrase.ID = uuid.NewString()
	}
	if phrase.CreatedAt.IsZero() {
		phrase.CreatedAt = time.Now()
	}
	phrase.CreatedAt = phrase.CreatedAt.UTC()
	if phrase.Tags == nil {
		phrase.Tags = models.TagList{}
	}

	query := r.db.Rebind(`INSERT INTO phrases (id, phrase, author, tags, created_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, phrase.ID, phrase.Text, phrase.Author, phrase.Tags, phrase.CreatedAt); err != nil {
		return fmt.Errorf("failed to create phrase: %w", err)
	}
	return nil
}

// GetByID returns a phrase by ID, or nil when absent
func (r *PhraseRepository) GetByID(ctx context.Context, id string) (*models.Phrase, error) {
	var phrase models.Phrase
	query := r.db.Rebind(`SELECT id, phrase, author, tags, created_at FROM phrases WHERE id = ?`)
	err := sqlx.GetContext(ctx, r.db, &phrase, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get phrase: %w", err)
	}
	return &phrase, nil
}
