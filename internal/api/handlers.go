package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/phrasebot/internal/spaced_repetition"
	"github.com/example/phrasebot/pkg/models"
)

const maxBodyBytes = 1 << 16

type queueQuery struct {
	DeckID string `validate:"omitempty,max=64"`
	Limit  int    `validate:"min=1,max=100"`
}

type reviewRequest struct {
	CardID string `json:"cardId" validate:"required,max=64"`
	Grade  string `json:"grade" validate:"required,grade"`
	UserID string `json:"userId" validate:"omitempty,max=64"`
}

type queueResponse struct {
	Queue []models.QueueItem `json:"queue"`
	Count int                `json:"count"`
}

type reviewResponse struct {
	Success bool                 `json:"success"`
	Card    models.Card          `json:"card"`
	Changes models.ChangeSummary `json:"changes"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("grade", func(fl validator.FieldLevel) bool {
		_, err := models.ParseGrade(fl.Field().String())
		return err == nil
	})
	return v
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", spaced_repetition.CodeValidation)
		return
	}

	q := queueQuery{
		DeckID: strings.TrimSpace(r.URL.Query().Get("deckId")),
		Limit:  s.defaultLimit,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "limit must be an integer", spaced_repetition.CodeValidation)
			return
		}
		q.Limit = limit
	}
	if err := s.validate.Struct(q); err != nil {
		s.writeValidationError(w, err)
		return
	}

	queue, err := s.reviews.BuildReviewQueue(r.Context(), spaced_repetition.QueueRequest{
		UserID: userFromContext(r.Context()),
		DeckID: q.DeckID,
		Limit:  q.Limit,
	}, s.now())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if queue == nil {
		queue = []models.QueueItem{}
	}
	s.writeJSON(w, http.StatusOK, queueResponse{Queue: queue, Count: len(queue)})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", spaced_repetition.CodeValidation)
		return
	}

	var req reviewRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), spaced_repetition.CodeValidation)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeValidationError(w, err)
		return
	}

	// The session user is authoritative; a body userId is ignored.
	userID := userFromContext(r.Context())
	grade, err := models.ParseGrade(req.Grade)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), spaced_repetition.CodeValidation)
		return
	}

	result, err := s.reviews.ProcessReview(r.Context(), req.CardID, grade, userID, s.now())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reviewResponse{Success: true, Card: result.Card, Changes: result.Changes})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", spaced_repetition.CodeValidation)
		return
	}
	deckID := strings.TrimSpace(r.URL.Query().Get("deckId"))

	stats, err := s.reviews.GetReviewStats(r.Context(), userFromContext(r.Context()), deckID, s.now())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// writeEngineError maps an engine error to its HTTP status and code.
// Internal failures are logged and reported without detail.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	code := spaced_repetition.Code(err)
	switch code {
	case spaced_repetition.CodeValidation:
		s.writeError(w, http.StatusBadRequest, err.Error(), code)
	case spaced_repetition.CodeNotAuthorized:
		s.writeError(w, http.StatusForbidden, err.Error(), code)
	case spaced_repetition.CodeCardNotFound:
		s.writeError(w, http.StatusNotFound, err.Error(), code)
	case spaced_repetition.CodeConcurrentUpdate:
		s.writeError(w, http.StatusConflict, err.Error(), code)
	default:
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("user_id", userFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		s.writeError(w, http.StatusInternalServerError, "internal error", spaced_repetition.CodeInternal)
	}
}

func (s *Server) writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		s.writeError(w, http.StatusBadRequest, err.Error(), spaced_repetition.CodeValidation)
		return
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	s.writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   "validation failed",
		Code:    spaced_repetition.CodeValidation,
		Details: details,
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, code string) {
	s.writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := writeJSON(w, status, payload); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}
