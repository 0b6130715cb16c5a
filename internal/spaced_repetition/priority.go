package spaced_repetition

import (
	"sort"
	"time"

	"github.com/example/phrasebot/pkg/models"
)

// IsForgotten reports whether a card was just reset by a failing grade.
func IsForgotten(s models.Schedule) bool {
	return s.Interval == 1 && s.Repetitions <= 1
}

// IsOverdue reports whether the card's due date has already passed.
func IsOverdue(s models.Schedule, now time.Time) bool {
	return s.NextReviewDate.Before(now)
}

// Compare orders two schedules for the review queue. It returns a negative
// number when a should be studied before b, positive when after, and zero
// when neither takes precedence.
//
// Priority, highest first:
//  1. new cards, oldest due date first among themselves
//  2. forgotten cards
//  3. overdue cards
//  4. earliest due date
func Compare(a, b models.Schedule, now time.Time) int {
	aNew, bNew := a.IsNew(), b.IsNew()
	if aNew != bNew {
		if aNew {
			return -1
		}
		return 1
	}
	if aNew {
		return compareTime(a.NextReviewDate, b.NextReviewDate)
	}

	if c := preferTrue(IsForgotten(a), IsForgotten(b)); c != 0 {
		return c
	}
	if c := preferTrue(IsOverdue(a, now), IsOverdue(b, now)); c != 0 {
		return c
	}
	return compareTime(a.NextReviewDate, b.NextReviewDate)
}

// SortQueue orders queue items in place by Compare. Items that compare equal
// keep the order the store returned them in.
func SortQueue(items []models.QueueItem, now time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return Compare(items[i].Schedule, items[j].Schedule, now) < 0
	})
}

func preferTrue(a, b bool) int {
	switch {
	case a && !b:
		return -1
	case !a && b:
		return 1
	default:
		return 0
	}
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
