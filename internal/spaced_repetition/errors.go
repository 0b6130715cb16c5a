package spaced_repetition

import (
	"errors"

	"github.com/example/phrasebot/pkg/models"
)

// Sentinel errors returned by the review engine. Check them with errors.Is.
var (
	ErrCardNotFound     = errors.New("card not found")
	ErrNotAuthorized    = errors.New("user not authorized")
	ErrInvalidGrade     = models.ErrInvalidGrade
	ErrInvalidLimit     = errors.New("invalid limit")
	ErrInvalidID        = errors.New("invalid id")
	ErrConcurrentUpdate = errors.New("card was modified concurrently")
)

// Machine-readable error codes shared by the HTTP API and the bot.
const (
	CodeCardNotFound     = "CARD_NOT_FOUND"
	CodeNotAuthorized    = "USER_NOT_AUTHORIZED"
	CodeNotAuthenticated = "USER_NOT_AUTHENTICATED"
	CodeValidation       = "VALIDATION_ERROR"
	CodeConcurrentUpdate = "CONCURRENT_UPDATE"
	CodeInternal         = "INTERNAL_ERROR"
)

// Code maps an error returned by the engine to its machine-readable code.
// Store failures and anything unrecognized map to INTERNAL_ERROR.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCardNotFound):
		return CodeCardNotFound
	case errors.Is(err, ErrNotAuthorized):
		return CodeNotAuthorized
	case errors.Is(err, ErrInvalidGrade), errors.Is(err, ErrInvalidLimit), errors.Is(err, ErrInvalidID):
		return CodeValidation
	case errors.Is(err, ErrConcurrentUpdate):
		return CodeConcurrentUpdate
	default:
		return CodeInternal
	}
}
