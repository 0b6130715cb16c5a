package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/phrasebot/internal/spaced_repetition"
)

// Store groups the repositories over one connection or one transaction.
// It implements spaced_repetition.Store.
type Store struct {
	db  *sqlx.DB // nil inside a transaction
	ext sqlx.ExtContext
}

// NewStore creates a store backed by db
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, ext: db}
}

// Cards returns the card repository
func (s *Store) Cards() spaced_repetition.CardStore { return NewCardRepository(s.ext) }

// History returns the review history repository
func (s *Store) History() spaced_repetition.HistoryStore { return NewReviewRepository(s.ext) }

func (s *Store) CardRepo() *CardRepository { return NewCardRepository(s.ext) }

func (s *Store) Reviews() *ReviewRepository { return NewReviewRepository(s.ext) }

func (s *Store) Decks() *DeckRepository { return NewDeckRepository(s.ext) }

func (s *Store) Phrases() *PhraseRepository { return NewPhraseRepository(s.ext) }

func (s *Store) Users() *UserRepository { return NewUserRepository(s.ext) }

// Transact runs fn inside a transaction. It commits when fn returns nil and
// rolls back otherwise. Nested calls reuse the outer transaction.
func (s *Store) Transact(ctx context.Context, fn func(tx *Store) error) (err error) {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&Store{ext: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// WithinTx implements spaced_repetition.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(tx spaced_repetition.Store) error) error {
	return s.Transact(ctx, func(tx *Store) error { return fn(tx) })
}
