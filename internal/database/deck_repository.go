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

// DeckRepository handles database operations for decks
type DeckRepository struct {
	db sqlx.ExtContext
}

// NewDeckRepository creates a new repository instance
func NewDeckRepository(db sqlx.ExtContext) *DeckRepository {
	return &DeckRepository{db: db}
}

// Create inserts a new deck
func (r *DeckRepository) Create(ctx context.Context, deck *models.Deck) error {
	if deck.ID == "" {
		deck.ID = uuid.NewString()
	}
	if deck.CreatedAt.IsZero() {
		deck.CreatedAt = time.Now()
	}
	deck.CreatedAt = deck.CreatedAt.UTC()

	query := r.db.Rebind(`INSERT INTO decks (id, user_id, name, description, created_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, deck.ID, deck.UserID, deck.Name, deck.Description, deck.CreatedAt); err != nil {
		return fmt.Errorf("failed to create deck: %w", err)
	}
	return nil
}

// GetByID returns a deck by ID, or nil when absent
func (r *DeckRepository) GetByID(ctx context.Context, id string) (*models.Deck, error) {
	return r.getOne(ctx, `SELECT id, user_id, name, description, created_at FROM decks WHERE id = ?`, id)
}

// GetByName returns the user's deck with the given name, or nil when absent
func (r *DeckRepository) GetByName(ctx context.Context, userID, name string) (*models.Deck, error) {
	return r.getOne(ctx, `SELECT id, user_id, name, description, created_at FROM decks WHERE user_id = ? AND name = ?`, userID, name)
}

func (r *DeckRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Deck, error) {
	var deck models.Deck
	err := sqlx.GetContext(ctx, r.db, &deck, r.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck: %w", err)
	}
	return &deck, nil
}

// GetOrCreate returns the user's deck named name, creating it when missing
func (r *DeckRepository) GetOrCreate(ctx context.Context, userID, name string) (*models.Deck, error) {
	deck, err := r.GetByName(ctx, userID, name)
	if err != nil || deck != nil {
		return deck, err
	}
	deck = &models.Deck{UserID: userID, Name: name}
	if err := r.Create(ctx, deck); err != nil {
		return nil, err
	}
	return deck, nil
}

// ListByUser returns the user's decks ordered by name
func (r *DeckRepository) ListByUser(ctx context.Context, userID string) ([]models.Deck, error) {
	query := r.db.Rebind(`SELECT id, user_id, name, description, created_at FROM decks WHERE user_id = ? ORDER BY name`)
	decks := []models.Deck{}
	if err := sqlx.SelectContext(ctx, r.db, &decks, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get decks: %w", err)
	}
	return decks, nil
}
