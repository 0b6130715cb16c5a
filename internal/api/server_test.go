package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/phrasebot/internal/spaced_repetition"
	"github.com/example/phrasebot/pkg/models"
)

var fixedNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

type reviewServiceStub struct {
	queueReq  spaced_repetition.QueueRequest
	queue     []models.QueueItem
	reviewErr error
	statsErr  error
	queueErr  error

	gotCardID string
	gotGrade  models.Grade
	gotUserID string
	gotDeckID string
}

func (s *reviewServiceStub) BuildReviewQueue(_ context.Context, req spaced_repetition.QueueRequest, _ time.Time) ([]models.QueueItem, error) {
	s.queueReq = req
	if s.queueErr != nil {
		return nil, s.queueErr
	}
	return s.queue, nil
}

func (s *reviewServiceStub) ProcessReview(_ context.Context, cardID string, grade models.Grade, userID string, now time.Time) (*models.ReviewResult, error) {
	s.gotCardID, s.gotGrade, s.gotUserID = cardID, grade, userID
	if s.reviewErr != nil {
		return nil, s.reviewErr
	}
	card := models.Card{ID: cardID, UserID: userID, Version: 2}
	card.Schedule = models.Schedule{EasinessFactor: 2.36, Interval: 14, Repetitions: 3, NextReviewDate: now.AddDate(0, 0, 14)}
	return &models.ReviewResult{
		Card: card,
		Changes: models.ChangeSummary{
			EasinessFactor: models.FloatChange{Old: 2.5, New: 2.36},
			Interval:       models.IntChange{Old: 6, New: 14},
			Repetitions:    models.IntChange{Old: 2, New: 3},
			NextReviewDate: card.NextReviewDate,
		},
	}, nil
}

func (s *reviewServiceStub) GetReviewStats(_ context.Context, userID, deckID string, _ time.Time) (*models.ReviewStats, error) {
	s.gotUserID, s.gotDeckID = userID, deckID
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	return &models.ReviewStats{TotalCards: 3, NewCards: 1, DueCards: 1, GradeStats: models.GradeStats{Good: 2}}, nil
}

func newTestServer(stub *reviewServiceStub, token string) http.Handler {
	return New(stub, Options{Token: token, Now: func() time.Time { return fixedNow }}).Handler()
}

func doRequest(t *testing.T, h http.Handler, method, target, body, user string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHandleQueue(t *testing.T) {
	stub := &reviewServiceStub{queue: []models.QueueItem{
		{CardID: "c1", Phrase: "Carpe diem", DeckName: "Latin", Tags: models.TagList{"latin"}, IsNew: true},
		{CardID: "c2", Phrase: "Memento mori", DeckName: "Latin", Tags: models.TagList{}},
	}}
	h := newTestServer(stub, "")

	w := doRequest(t, h, http.MethodGet, "/api/reviews/queue?deckId=d1&limit=5", "", "u1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Queue []map[string]any `json:"queue"`
		Count int              `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Queue) != 2 {
		t.Fatalf("unexpected queue response: %s", w.Body.String())
	}
	if resp.Queue[0]["cardId"] != "c1" || resp.Queue[0]["isNew"] != true {
		t.Fatalf("unexpected first item: %v", resp.Queue[0])
	}
	if stub.queueReq != (spaced_repetition.QueueRequest{UserID: "u1", DeckID: "d1", Limit: 5}) {
		t.Fatalf("unexpected request passed to engine: %+v", stub.queueReq)
	}
}

func TestHandleQueueDefaultLimit(t *testing.T) {
	stub := &reviewServiceStub{}
	h := newTestServer(stub, "")

	w := doRequest(t, h, http.MethodGet, "/api/reviews/queue", "", "u1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if stub.queueReq.Limit != 20 {
		t.Fatalf("expected default limit 20, got %d", stub.queueReq.Limit)
	}
	if !strings.Contains(w.Body.String(), `"queue":[]`) || !strings.Contains(w.Body.String(), `"count":0`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestHandleQueueValidation(t *testing.T) {
	for _, target := range []string{
		"/api/reviews/queue?limit=0",
		"/api/reviews/queue?limit=101",
		"/api/reviews/queue?limit=ten",
	} {
		t.Run(target, func(t *testing.T) {
			stub := &reviewServiceStub{}
			w := doRequest(t, newTestServer(stub, ""), http.MethodGet, target, "", "u1")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if resp := decodeError(t, w); resp.Code != spaced_repetition.CodeValidation {
				t.Fatalf("expected validation code, got %q", resp.Code)
			}
			if stub.queueReq.UserID != "" {
				t.Fatalf("engine must not be called on invalid input")
			}
		})
	}
}

func TestRequiresUser(t *testing.T) {
	h := newTestServer(&reviewServiceStub{}, "")
	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/api/reviews/queue"},
		{http.MethodPost, "/api/reviews"},
		{http.MethodGet, "/api/reviews/stats"},
	} {
		w := doRequest(t, h, tc.method, tc.target, `{}`, "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.target, w.Code)
		}
		if resp := decodeError(t, w); resp.Code != spaced_repetition.CodeNotAuthenticated {
			t.Fatalf("%s %s: unexpected code %q", tc.method, tc.target, resp.Code)
		}
	}
}

func TestBearerToken(t *testing.T) {
	h := newTestServer(&reviewServiceStub{}, "secret")

	w := doRequest(t, h, http.MethodGet, "/api/reviews/stats", "", "u1")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/reviews/stats", nil)
	req.Header.Set(UserHeader, "u1")
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
}

func TestHandleReview(t *testing.T) {
	stub := &reviewServiceStub{}
	h := newTestServer(stub, "")

	w := doRequest(t, h, http.MethodPost, "/api/reviews", `{"cardId":"c1","grade":"GOOD"}`, "u1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	if stub.gotCardID != "c1" || stub.gotGrade != models.GradeGood || stub.gotUserID != "u1" {
		t.Fatalf("unexpected engine call: %s %s %s", stub.gotCardID, stub.gotGrade, stub.gotUserID)
	}

	var resp struct {
		Success bool `json:"success"`
		Card    struct {
			ID       string `json:"id"`
			Interval int    `json:"interval"`
		} `json:"card"`
		Changes struct {
			Interval struct{ Old, New int } `json:"interval"`
		} `json:"changes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || resp.Card.ID != "c1" || resp.Card.Interval != 14 {
		t.Fatalf("unexpected response: %s", w.Body.String())
	}
	if resp.Changes.Interval.Old != 6 || resp.Changes.Interval.New != 14 {
		t.Fatalf("unexpected interval change: %+v", resp.Changes.Interval)
	}
}

func TestHandleReviewUsesSessionUser(t *testing.T) {
	stub := &reviewServiceStub{}
	w := doRequest(t, newTestServer(stub, ""), http.MethodPost, "/api/reviews", `{"cardId":"c1","grade":"EASY","userId":"u2"}`, "u1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	if stub.gotUserID != "u1" {
		t.Fatalf("expected session user u1, got %q", stub.gotUserID)
	}
}

func TestHandleReviewMissingCardWithOtherUserID(t *testing.T) {
	stub := &reviewServiceStub{reviewErr: spaced_repetition.ErrCardNotFound}
	w := doRequest(t, newTestServer(stub, ""), http.MethodPost, "/api/reviews", `{"cardId":"missing","grade":"GOOD","userId":"u2"}`, "u1")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != spaced_repetition.CodeCardNotFound {
		t.Fatalf("unexpected code %q", resp.Code)
	}
	if stub.gotCardID != "missing" || stub.gotUserID != "u1" {
		t.Fatalf("unexpected engine call: %s %s", stub.gotCardID, stub.gotUserID)
	}
}

func TestHandleReviewValidation(t *testing.T) {
	cases := map[string]string{
		"unknown grade":  `{"cardId":"c1","grade":"PERFECT"}`,
		"numeric grade":  `{"cardId":"c1","grade":3}`,
		"missing card":   `{"grade":"GOOD"}`,
		"missing grade":  `{"cardId":"c1"}`,
		"unknown field":  `{"cardId":"c1","grade":"GOOD","extra":true}`,
		"malformed json": `{"cardId":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := doRequest(t, newTestServer(&reviewServiceStub{}, ""), http.MethodPost, "/api/reviews", body, "u1")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if resp := decodeError(t, w); resp.Code != spaced_repetition.CodeValidation {
				t.Fatalf("unexpected code %q", resp.Code)
			}
		})
	}
}

func TestHandleReviewEngineErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{spaced_repetition.ErrCardNotFound, http.StatusNotFound, spaced_repetition.CodeCardNotFound},
		{spaced_repetition.ErrNotAuthorized, http.StatusForbidden, spaced_repetition.CodeNotAuthorized},
		{fmt.Errorf("update card c1: %w", spaced_repetition.ErrConcurrentUpdate), http.StatusConflict, spaced_repetition.CodeConcurrentUpdate},
		{fmt.Errorf("find card c1: %w", context.DeadlineExceeded), http.StatusInternalServerError, spaced_repetition.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			stub := &reviewServiceStub{reviewErr: tc.err}
			w := doRequest(t, newTestServer(stub, ""), http.MethodPost, "/api/reviews", `{"cardId":"c1","grade":"AGAIN"}`, "u1")
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			resp := decodeError(t, w)
			if resp.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, resp.Code)
			}
			if tc.code == spaced_repetition.CodeInternal && strings.Contains(resp.Error, "deadline") {
				t.Fatalf("internal error details leaked: %q", resp.Error)
			}
		})
	}
}

func TestHandleStats(t *testing.T) {
	stub := &reviewServiceStub{}
	w := doRequest(t, newTestServer(stub, ""), http.MethodGet, "/api/reviews/stats?deckId=d9", "", "u1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if stub.gotUserID != "u1" || stub.gotDeckID != "d9" {
		t.Fatalf("unexpected engine call: %s %s", stub.gotUserID, stub.gotDeckID)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	grades, ok := resp["gradeStats"].(map[string]any)
	if !ok {
		t.Fatalf("missing gradeStats: %s", w.Body.String())
	}
	for _, g := range []string{"AGAIN", "HARD", "GOOD", "EASY"} {
		if _, ok := grades[g]; !ok {
			t.Fatalf("gradeStats missing %s: %v", g, grades)
		}
	}
	if resp["totalCards"] != float64(3) {
		t.Fatalf("unexpected totalCards: %v", resp["totalCards"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	w := doRequest(t, newTestServer(&reviewServiceStub{}, ""), http.MethodDelete, "/api/reviews/queue", "", "u1")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
