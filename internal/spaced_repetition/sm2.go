package spaced_repetition

import (
	"math"
	"time"

	"github.com/example/phrasebot/pkg/models"
)

// SM2 implements the SuperMemo-2 update rule for a single grading event
type SM2 struct {
	// Grades with quality at or above this value count as a successful recall
	PassThreshold int
	// Floor for the easiness factor
	MinEasinessFactor float64
	// Location used for calendar-day arithmetic on the next review date
	Location *time.Location
}

// NewSM2 creates a new SM2 instance with the default settings
func NewSM2() *SM2 {
	return &SM2{
		PassThreshold:     int(models.GradeGood),
		MinEasinessFactor: models.MinEasinessFactor,
		Location:          time.Local,
	}
}

// EasinessFactor applies the SM-2 E-Factor formula for quality q.
func (sm *SM2) EasinessFactor(ef float64, q int) float64 {
	d := float64(5 - q)
	return math.Max(sm.MinEasinessFactor, ef+(0.1-d*(0.08+d*0.02)))
}

// Next returns the schedule that results from grading s with grade at now.
// AGAIN and HARD both reset the card to a one-day interval; they differ only
// in how much the easiness factor drops.
func (sm *SM2) Next(s models.Schedule, grade models.Grade, now time.Time) models.Schedule {
	q := grade.Quality()
	next := models.Schedule{
		EasinessFactor: sm.EasinessFactor(s.EasinessFactor, q),
	}

	if q < sm.PassThreshold {
		next.Repetitions = 0
		next.Interval = 1
	} else {
		next.Repetitions = s.Repetitions + 1
		switch next.Repetitions {
		case 1:
			next.Interval = 1
		case 2:
			next.Interval = 6
		default:
			next.Interval = int(math.Round(float64(s.Interval) * next.EasinessFactor))
		}
	}

	reviewedAt := now.UTC()
	next.LastReviewedAt = &reviewedAt
	next.NextReviewDate = sm.addDays(now, next.Interval)
	return next
}

// addDays moves now forward by whole calendar days in the configured location.
func (sm *SM2) addDays(now time.Time, days int) time.Time {
	loc := sm.Location
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).AddDate(0, 0, days).UTC()
}
