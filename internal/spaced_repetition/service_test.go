package spaced_repetition

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/example/phrasebot/pkg/models"
)

// memoryStore is an in-memory Store. Transactions work on a copy of the
// data that replaces the original only on success.
type memoryStore struct {
	mu        *sync.Mutex
	cards     map[string]models.Card
	records   []models.ReviewRecord
	failCount error
	failAfter error // returned by AppendReviewRecord
	lastLimit int
	// interleave runs inside UpdateCardSchedule before the version check.
	interleave func(cards map[string]models.Card)
}

func newMemoryStore(cards ...models.Card) *memoryStore {
	s := &memoryStore{mu: &sync.Mutex{}, cards: make(map[string]models.Card)}
	for _, c := range cards {
		s.cards[c.ID] = c
	}
	return s
}

func (s *memoryStore) Cards() CardStore { return memoryCards{s} }

func (s *memoryStore) History() HistoryStore { return memoryHistory{s} }

func (s *memoryStore) card(id string) models.Card { return s.cards[id] }

func (s *memoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	tx := &memoryStore{
		mu:         &sync.Mutex{},
		cards:      make(map[string]models.Card, len(s.cards)),
		records:    append([]models.ReviewRecord(nil), s.records...),
		failAfter:  s.failAfter,
		interleave: s.interleave,
	}
	for id, c := range s.cards {
		tx.cards[id] = c
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.cards = tx.cards
	s.records = tx.records
	return nil
}

type memoryCards struct{ s *memoryStore }

func (m memoryCards) FindCard(_ context.Context, cardID string) (*models.Card, error) {
	c, ok := m.s.cards[cardID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m memoryCards) FindEligibleCards(_ context.Context, scope Scope, now time.Time, limit int) ([]models.QueueItem, error) {
	m.s.lastLimit = limit
	var items []models.QueueItem
	for _, c := range m.s.cards {
		if c.UserID != scope.UserID || (scope.DeckID != "" && c.DeckID != scope.DeckID) {
			continue
		}
		if c.Repetitions != 0 && c.NextReviewDate.After(now) {
			continue
		}
		items = append(items, models.QueueItem{CardID: c.ID, DeckID: c.DeckID, PhraseID: c.PhraseID, Schedule: c.Schedule})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Repetitions != items[j].Repetitions {
			return items[i].Repetitions < items[j].Repetitions
		}
		if !items[i].NextReviewDate.Equal(items[j].NextReviewDate) {
			return items[i].NextReviewDate.Before(items[j].NextReviewDate)
		}
		return items[i].CardID < items[j].CardID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m memoryCards) UpdateCardSchedule(_ context.Context, card *models.Card) error {
	if m.s.interleave != nil {
		m.s.interleave(m.s.cards)
	}
	stored, ok := m.s.cards[card.ID]
	if !ok || stored.Version != card.Version {
		return ErrConcurrentUpdate
	}
	card.Version++
	m.s.cards[card.ID] = *card
	return nil
}

func (m memoryCards) CountCards(_ context.Context, f CountFilter) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failCount != nil {
		return 0, m.s.failCount
	}
	n := 0
	for _, c := range m.s.cards {
		if c.UserID != f.UserID || (f.DeckID != "" && c.DeckID != f.DeckID) {
			continue
		}
		if f.NewOnly && c.Repetitions != 0 {
			continue
		}
		if !f.DueFrom.IsZero() && c.NextReviewDate.Before(f.DueFrom) {
			continue
		}
		if !f.DueTo.IsZero() && c.NextReviewDate.After(f.DueTo) {
			continue
		}
		if !f.DueBefore.IsZero() && !c.NextReviewDate.Before(f.DueBefore) {
			continue
		}
		n++
	}
	return n, nil
}

type memoryHistory struct{ s *memoryStore }

func (m memoryHistory) AppendReviewRecord(_ context.Context, r *models.ReviewRecord) error {
	if m.s.failAfter != nil {
		return m.s.failAfter
	}
	r.ID = fmt.Sprintf("rec-%d", len(m.s.records)+1)
	m.s.records = append(m.s.records, *r)
	return nil
}

func (m memoryHistory) CountByGrade(_ context.Context, scope Scope) (map[models.Grade]int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	counts := make(map[models.Grade]int)
	for _, r := range m.s.records {
		c := m.s.cards[r.CardID]
		if c.UserID != scope.UserID || (scope.DeckID != "" && c.DeckID != scope.DeckID) {
			continue
		}
		counts[r.Grade]++
	}
	return counts, nil
}

func testCard(id, user, deck string, s models.Schedule) models.Card {
	return models.Card{ID: id, UserID: user, DeckID: deck, PhraseID: "p-" + id, Schedule: s, Version: 1}
}

func TestBuildReviewQueueLimitValidation(t *testing.T) {
	svc := NewService(newMemoryStore(), WithLocation(time.UTC))
	now := time.Now()

	for _, limit := range []int{0, -1, 101} {
		_, err := svc.BuildReviewQueue(context.Background(), QueueRequest{UserID: "u1", Limit: limit}, now)
		if !errors.Is(err, ErrInvalidLimit) {
			t.Fatalf("limit %d: expected ErrInvalidLimit, got %v", limit, err)
		}
		if Code(err) != CodeValidation {
			t.Fatalf("limit %d: expected validation code, got %s", limit, Code(err))
		}
	}
	for _, limit := range []int{1, 100} {
		if _, err := svc.BuildReviewQueue(context.Background(), QueueRequest{UserID: "u1", Limit: limit}, now); err != nil {
			t.Fatalf("limit %d: unexpected error %v", limit, err)
		}
	}
}

func TestBuildReviewQueueRequiresUser(t *testing.T) {
	svc := NewService(newMemoryStore(), WithLocation(time.UTC))
	_, err := svc.BuildReviewQueue(context.Background(), QueueRequest{Limit: 5}, time.Now())
	if !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestBuildReviewQueueOrdersAndTruncates(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore(
		testCard("due", "u1", "d1", models.Schedule{EasinessFactor: 2.5, Interval: 6, Repetitions: 2, NextReviewDate: now}),
		testCard("overdue", "u1", "d1", models.Schedule{EasinessFactor: 2.5, Interval: 6, Repetitions: 2, NextReviewDate: now.AddDate(0, 0, -3)}),
		testCard("forgotten", "u1", "d1", models.Schedule{EasinessFactor: 2.2, Interval: 1, Repetitions: 1, NextReviewDate: now.Add(-time.Hour)}),
		testCard("new", "u1", "d1", models.NewSchedule(now.AddDate(0, 0, -1))),
		testCard("future", "u1", "d1", models.Schedule{EasinessFactor: 2.5, Interval: 6, Repetitions: 2, NextReviewDate: now.AddDate(0, 0, 2)}),
		testCard("other-user", "u2", "d1", models.NewSchedule(now)),
	)
	svc := NewService(store, WithLocation(time.UTC))

	queue, err := svc.BuildReviewQueue(context.Background(), QueueRequest{UserID: "u1", Limit: 3}, now)
	if err != nil {
		t.Fatalf("build queue: %v", err)
	}
	if store.lastLimit != 6 {
		t.Fatalf("expected store to be asked for 6 candidates, got %d", store.lastLimit)
	}
	want := []string{"new", "forgotten", "overdue"}
	if len(queue) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(queue))
	}
	for i, id := range want {
		if queue[i].CardID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, queue[i].CardID)
		}
	}
	if !queue[0].IsNew || queue[1].IsNew {
		t.Fatalf("expected only the first item flagged new")
	}
}

func TestBuildReviewQueueEmpty(t *testing.T) {
	svc := NewService(newMemoryStore(), WithLocation(time.UTC))
	queue, err := svc.BuildReviewQueue(context.Background(), QueueRequest{UserID: "u1", Limit: 20}, time.Now())
	if err != nil {
		t.Fatalf("build queue: %v", err)
	}
	if queue == nil || len(queue) != 0 {
		t.Fatalf("expected empty non-nil queue, got %#v", queue)
	}
}

func TestProcessReviewAppliesGrade(t *testing.T) {
	now := time.Date(2024, 1, 22, 9, 0, 0, 0, time.UTC)
	store := newMemoryStore(testCard("c1", "u1", "d1", models.Schedule{EasinessFactor: 2.5, Interval: 6, Repetitions: 2, NextReviewDate: now}))
	svc := NewService(store, WithLocation(time.UTC))

	result, err := svc.ProcessReview(context.Background(), "c1", models.GradeGood, "u1", now)
	if err != nil {
		t.Fatalf("process review: %v", err)
	}
	if result.Changes.Interval.Old != 6 || result.Changes.Interval.New != 14 {
		t.Fatalf("unexpected interval change: %+v", result.Changes.Interval)
	}
	if result.Changes.Repetitions.Old != 2 || result.Changes.Repetitions.New != 3 {
		t.Fatalf("unexpected repetitions change: %+v", result.Changes.Repetitions)
	}
	if result.Card.Version != 2 {
		t.Fatalf("expected version bump to 2, got %d", result.Card.Version)
	}

	stored := store.card("c1")
	if stored.Interval != 14 || stored.Repetitions != 3 {
		t.Fatalf("store not updated: %+v", stored.Schedule)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected one review record, got %d", len(store.records))
	}
	rec := store.records[0]
	if rec.Grade != models.GradeGood || rec.OldInterval != 6 || rec.NewInterval != 14 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.OldEasinessFactor != 2.5 || rec.NewEasinessFactor != result.Card.EasinessFactor {
		t.Fatalf("unexpected EF in record: %+v", rec)
	}
}

func TestProcessReviewErrors(t *testing.T) {
	now := time.Now().UTC()
	original := testCard("c1", "u1", "d1", models.NewSchedule(now))

	cases := []struct {
		name   string
		cardID string
		userID string
		grade  models.Grade
		want   error
		code   string
	}{
		{"missing card", "nope", "u1", models.GradeGood, ErrCardNotFound, CodeCardNotFound},
		{"missing card checked before owner", "nope", "someone", models.GradeGood, ErrCardNotFound, CodeCardNotFound},
		{"wrong owner", "c1", "u2", models.GradeGood, ErrNotAuthorized, CodeNotAuthorized},
		{"grade too low", "c1", "u1", models.Grade(0), ErrInvalidGrade, CodeValidation},
		{"grade too high", "c1", "u1", models.Grade(5), ErrInvalidGrade, CodeValidation},
		{"blank card id", " ", "u1", models.GradeGood, ErrInvalidID, CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemoryStore(original)
			svc := NewService(store, WithLocation(time.UTC))

			_, err := svc.ProcessReview(context.Background(), tc.cardID, tc.grade, tc.userID, now)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if Code(err) != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, Code(err))
			}
			if store.card("c1") != original {
				t.Fatalf("card was modified on error")
			}
			if len(store.records) != 0 {
				t.Fatalf("review record written on error")
			}
		})
	}
}

func TestProcessReviewRollsBackWhenHistoryFails(t *testing.T) {
	now := time.Now().UTC()
	original := testCard("c1", "u1", "d1", models.NewSchedule(now))
	store := newMemoryStore(original)
	store.failAfter = errors.New("disk full")
	svc := NewService(store, WithLocation(time.UTC))

	_, err := svc.ProcessReview(context.Background(), "c1", models.GradeEasy, "u1", now)
	if err == nil {
		t.Fatalf("expected error")
	}
	if Code(err) != CodeInternal {
		t.Fatalf("expected internal code, got %s", Code(err))
	}
	if store.card("c1") != original {
		t.Fatalf("card update was not rolled back")
	}
}

func TestProcessReviewVersionConflict(t *testing.T) {
	now := time.Now().UTC()
	original := testCard("c1", "u1", "d1", models.NewSchedule(now))
	store := newMemoryStore(original)
	// Another writer commits between our read and our update.
	store.interleave = func(cards map[string]models.Card) {
		c := cards["c1"]
		c.Version++
		cards["c1"] = c
	}
	svc := NewService(store, WithLocation(time.UTC))

	_, err := svc.ProcessReview(context.Background(), "c1", models.GradeGood, "u1", now)
	if !errors.Is(err, ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}
	if Code(err) != CodeConcurrentUpdate {
		t.Fatalf("expected conflict code, got %s", Code(err))
	}
	if store.card("c1") != original || len(store.records) != 0 {
		t.Fatalf("conflicting review left changes behind")
	}
}

func TestGetReviewStats(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 1, 15, 15, 0, 0, 0, loc)
	startOfDay := time.Date(2024, 1, 15, 0, 0, 0, 0, loc)

	store := newMemoryStore(
		testCard("new-today", "u1", "d1", models.NewSchedule(now.Add(-time.Hour))),
		testCard("new-old", "u1", "d2", models.NewSchedule(startOfDay.AddDate(0, 0, -2))),
		testCard("due-start", "u1", "d1", models.Schedule{Interval: 3, Repetitions: 2, NextReviewDate: startOfDay}),
		testCard("due-end", "u1", "d1", models.Schedule{Interval: 3, Repetitions: 2, NextReviewDate: startOfDay.AddDate(0, 0, 1).Add(-time.Millisecond)}),
		testCard("tomorrow", "u1", "d1", models.Schedule{Interval: 3, Repetitions: 2, NextReviewDate: startOfDay.AddDate(0, 0, 1)}),
		testCard("overdue", "u1", "d1", models.Schedule{Interval: 3, Repetitions: 2, NextReviewDate: startOfDay.Add(-time.Second)}),
		testCard("other", "u2", "d1", models.NewSchedule(now)),
	)
	store.records = []models.ReviewRecord{
		{CardID: "due-start", Grade: models.GradeGood},
		{CardID: "due-end", Grade: models.GradeGood},
		{CardID: "overdue", Grade: models.GradeAgain},
		{CardID: "other", Grade: models.GradeEasy},
	}
	svc := NewService(store, WithLocation(loc))

	stats, err := svc.GetReviewStats(context.Background(), "u1", "", now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := models.ReviewStats{
		TotalCards:   6,
		NewCards:     2,
		DueCards:     3, // new-today, due-start, due-end
		OverdueCards: 2, // new-old, overdue
		GradeStats:   models.GradeStats{Again: 1, Good: 2},
	}
	if *stats != want {
		t.Fatalf("expected %+v, got %+v", want, *stats)
	}

	t.Run("deck scope", func(t *testing.T) {
		stats, err := svc.GetReviewStats(context.Background(), "u1", "d2", now)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if stats.TotalCards != 1 || stats.NewCards != 1 || stats.GradeStats.Total() != 0 {
			t.Fatalf("unexpected deck stats: %+v", *stats)
		}
	})
}

func TestGetReviewStatsNoCards(t *testing.T) {
	svc := NewService(newMemoryStore(), WithLocation(time.UTC))
	stats, err := svc.GetReviewStats(context.Background(), "u1", "", time.Now())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if *stats != (models.ReviewStats{}) {
		t.Fatalf("expected zero stats, got %+v", *stats)
	}
}

func TestGetReviewStatsPropagatesStoreError(t *testing.T) {
	store := newMemoryStore()
	store.failCount = errors.New("connection reset")
	svc := NewService(store, WithLocation(time.UTC))

	_, err := svc.GetReviewStats(context.Background(), "u1", "", time.Now())
	if err == nil || Code(err) != CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestDayBoundsUseLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	svc := NewService(newMemoryStore(), WithLocation(loc))

	// 22:30 UTC on Jan 15 is already Jan 16 at UTC+3.
	start, end := svc.dayBounds(time.Date(2024, 1, 15, 22, 30, 0, 0, time.UTC))

	wantStart := time.Date(2024, 1, 15, 21, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Fatalf("expected start %v, got %v", wantStart, start)
	}
	if want := wantStart.Add(24*time.Hour - time.Millisecond); !end.Equal(want) {
		t.Fatalf("expected end %v, got %v", want, end)
	}
}
