package models

import "time"

// Default SM-2 values for a freshly created card.
const (
	DefaultEasinessFactor = 2.5
	MinEasinessFactor     = 1.3
)

// Schedule holds the SM-2 state shared by cards and queue items.
type Schedule struct {
	EasinessFactor float64    `json:"easinessFactor" db:"easiness_factor"` // SM-2 E-Factor, never below 1.3
	Interval       int        `json:"interval" db:"interval_days"`         // Days until the next review
	Repetitions    int        `json:"repetitions" db:"repetitions"`        // Consecutive successful recalls
	NextReviewDate time.Time  `json:"nextReviewDate" db:"next_review_date"`
	LastReviewedAt *time.Time `json:"lastReviewedAt" db:"last_reviewed_at"`
}

// IsNew reports whether the card has never been successfully reviewed.
func (s Schedule) IsNew() bool {
	return s.Repetitions == 0
}

// NewSchedule returns the initial state of a card created at the given time.
func NewSchedule(createdAt time.Time) Schedule {
	return Schedule{
		EasinessFactor: DefaultEasinessFactor,
		Interval:       0,
		Repetitions:    0,
		NextReviewDate: createdAt,
	}
}

// Card links a user's deck to a memorized phrase and carries its schedule
type Card struct {
	ID       string `json:"id" db:"id"`
	UserID   string `json:"userId" db:"user_id"`
	DeckID   string `json:"deckId" db:"deck_id"`
	PhraseID string `json:"phraseId" db:"phrase_id"`
	Schedule
	Version   int       `json:"version" db:"version"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
