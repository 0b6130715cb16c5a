package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/phrasebot/internal/logging"
	"github.com/example/phrasebot/internal/spaced_repetition"
	"github.com/example/phrasebot/pkg/models"
)

// ReviewService is the engine behind the review endpoints.
type ReviewService interface {
	BuildReviewQueue(ctx context.Context, req spaced_repetition.QueueRequest, now time.Time) ([]models.QueueItem, error)
	ProcessReview(ctx context.Context, cardID string, grade models.Grade, userID string, now time.Time) (*models.ReviewResult, error)
	GetReviewStats(ctx context.Context, userID, deckID string, now time.Time) (*models.ReviewStats, error)
}

// Options configures the API server.
type Options struct {
	Addr         string
	Token        string // optional bearer token; empty disables the check
	DefaultLimit int
	Logger       *slog.Logger
	Now          func() time.Time
}

// Server serves the review API over HTTP.
type Server struct {
	addr         string
	token        string
	defaultLimit int
	logger       *slog.Logger
	now          func() time.Time
	reviews      ReviewService
	validate     *validator.Validate

	listener net.Listener
	server   *http.Server
}

// New creates a server for the given review service.
func New(reviews ReviewService, opts Options) *Server {
	s := &Server{
		addr:         strings.TrimSpace(opts.Addr),
		token:        opts.Token,
		defaultLimit: opts.DefaultLimit,
		logger:       opts.Logger,
		now:          opts.Now,
		reviews:      reviews,
		validate:     newValidator(),
	}
	if s.defaultLimit <= 0 {
		s.defaultLimit = spaced_repetition.DefaultQueueLimit
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.logger = s.logger.With(slog.String("component", "api-server"))
	if s.now == nil {
		s.now = time.Now
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with authentication applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/reviews", authMiddleware(s.token, s.requireUser(s.handleReview)))
	mux.HandleFunc("/api/reviews/queue", authMiddleware(s.token, s.requireUser(s.handleQueue)))
	mux.HandleFunc("/api/reviews/stats", authMiddleware(s.token, s.requireUser(s.handleStats)))
	return mux
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", slog.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting up to five seconds for open requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
