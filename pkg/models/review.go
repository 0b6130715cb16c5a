package models

import "time"

// ReviewRecord is an immutable snapshot of one grading event
type ReviewRecord struct {
	ID                string    `json:"id" db:"id"`
	CardID            string    `json:"cardId" db:"card_id"`
	Grade             Grade     `json:"grade" db:"grade"`
	OldEasinessFactor float64   `json:"oldEasinessFactor" db:"old_easiness_factor"`
	NewEasinessFactor float64   `json:"newEasinessFactor" db:"new_easiness_factor"`
	OldInterval       int       `json:"oldInterval" db:"old_interval"`
	NewInterval       int       `json:"newInterval" db:"new_interval"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
}

// FloatChange is a before/after pair of a float field.
type FloatChange struct {
	Old float64 `json:"old"`
	New float64 `json:"new"`
}

// IntChange is a before/after pair of an integer field.
type IntChange struct {
	Old int `json:"old"`
	New int `json:"new"`
}

// ChangeSummary describes how a review moved a card's schedule.
type ChangeSummary struct {
	EasinessFactor FloatChange `json:"easinessFactor"`
	Interval       IntChange   `json:"interval"`
	Repetitions    IntChange   `json:"repetitions"`
	NextReviewDate time.Time   `json:"nextReviewDate"`
}

// ReviewResult is returned after a grade has been applied to a card.
type ReviewResult struct {
	Card    Card          `json:"card"`
	Changes ChangeSummary `json:"changes"`
	Record  ReviewRecord  `json:"-"`
}
