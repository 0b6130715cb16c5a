package bot

import (
	"log/slog"
	"time"
)

// Config represents the configuration for the bot
type Config struct {
	// Telegram bot token
	Token string
	// Telegram users allowed to import phrase files
	AdminIDs []int64
	// Reminder hour given to users on their first contact
	DefaultHour int
	// Deck that imports go to when the upload has no caption
	DefaultDeck string
	// Long-polling timeout in seconds
	UpdateTimeout int
	// Largest accepted import upload in bytes
	MaxUploadBytes int64

	Logger *slog.Logger
	Now    func() time.Time
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() Config {
	return Config{
		DefaultHour:    9,
		DefaultDeck:    "Default",
		UpdateTimeout:  60,
		MaxUploadBytes: 5 << 20,
	}
}
