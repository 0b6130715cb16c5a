package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/phrasebot/internal/spaced_repetition"
)

// UserHeader carries the authenticated user id set by the upstream gateway.
const UserHeader = "X-User-ID"

type userKey struct{}

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Code: spaced_repetition.CodeNotAuthenticated})
			return
		}
		next(w, r)
	}
}

// requireUser rejects requests without a session user and stores the user
// id in the request context.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "user not authenticated", Code: spaced_repetition.CodeNotAuthenticated})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	}
}

func userFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userKey{}).(string)
	return userID
}
