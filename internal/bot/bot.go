package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/phrasebot/internal/excel"
	"github.com/example/phrasebot/internal/logging"
	"github.com/example/phrasebot/internal/spaced_repetition"
	"github.com/example/phrasebot/pkg/models"
)

// ReviewService is the review engine the bot drives.
type ReviewService interface {
	BuildReviewQueue(ctx context.Context, req spaced_repetition.QueueRequest, now time.Time) ([]models.QueueItem, error)
	ProcessReview(ctx context.Context, cardID string, grade models.Grade, userID string, now time.Time) (*models.ReviewResult, error)
	GetReviewStats(ctx context.Context, userID, deckID string, now time.Time) (*models.ReviewStats, error)
}

// UserStore maps Telegram accounts to users and stores reminder settings.
type UserStore interface {
	EnsureTelegramUser(ctx context.Context, telegramID int64, username, firstName string, defaultHour int) (*models.User, bool, error)
	UpdateNotifications(ctx context.Context, userID string, enabled bool, hour int) error
}

// PhraseImporter stores uploaded phrase rows in a deck.
type PhraseImporter interface {
	Import(ctx context.Context, config excel.ImportConfig, rows []excel.Row) (*excel.ImportResult, error)
}

// telegramAPI is the part of tgbotapi.BotAPI the handlers use.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot represents the Telegram bot application
type Bot struct {
	api      telegramAPI
	updates  *tgbotapi.BotAPI
	config   Config
	reviews  ReviewService
	users    UserStore
	importer PhraseImporter
	logger   *slog.Logger
	now      func() time.Time

	adminUserIDs map[int64]bool

	mu                 sync.Mutex
	awaitingFileUpload map[int64]bool
}

// New creates a new bot instance. It does not contact Telegram until Start.
func New(cfg Config, reviews ReviewService, users UserStore, importer PhraseImporter) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token is not set")
	}
	return newBot(nil, cfg, reviews, users, importer), nil
}

func newBot(api telegramAPI, cfg Config, reviews ReviewService, users UserStore, importer PhraseImporter) *Bot {
	defaults := DefaultConfig()
	if cfg.DefaultDeck == "" {
		cfg.DefaultDeck = defaults.DefaultDeck
	}
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = defaults.UpdateTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaults.MaxUploadBytes
	}

	b := &Bot{
		api:                api,
		config:             cfg,
		reviews:            reviews,
		users:              users,
		importer:           importer,
		logger:             cfg.Logger,
		now:                cfg.Now,
		adminUserIDs:       make(map[int64]bool, len(cfg.AdminIDs)),
		awaitingFileUpload: make(map[int64]bool),
	}
	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	b.logger = b.logger.With(slog.String("component", "bot"))
	if b.now == nil {
		b.now = time.Now
	}
	for _, id := range cfg.AdminIDs {
		b.adminUserIDs[id] = true
	}
	return b
}

// Start connects to Telegram and handles updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	botAPI, err := tgbotapi.NewBotAPI(b.config.Token)
	if err != nil {
		return fmt.Errorf("unable to create bot: %w", err)
	}
	b.api = botAPI
	b.updates = botAPI
	b.logger.Info("authorized on telegram", slog.String("account", botAPI.Self.UserName))

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.UpdateTimeout
	updates := botAPI.GetUpdatesChan(updateConfig)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.Stop()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// Stop stops polling for updates
func (b *Bot) Stop() {
	if b.updates != nil {
		b.updates.StopReceivingUpdates()
	}
	b.logger.Info("bot stopped")
}

// SendReminder implements scheduler.Notifier.
func (b *Bot) SendReminder(ctx context.Context, user models.User, stats models.ReviewStats) error {
	if b.api == nil {
		return errors.New("bot is not connected")
	}
	if user.TelegramID == 0 {
		return fmt.Errorf("user %s has no telegram chat", user.ID)
	}
	msg := tgbotapi.NewMessage(user.TelegramID, formatReminder(stats))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "📚 Start review", CallbackData: callbackReview}},
	})
	return b.sendMessage(msg)
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(telegramID int64) bool {
	return b.adminUserIDs[telegramID]
}

func (b *Bot) setAwaitingUpload(chatID int64, waiting bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if waiting {
		b.awaitingFileUpload[chatID] = true
	} else {
		delete(b.awaitingFileUpload, chatID)
	}
}

func (b *Bot) isAwaitingUpload(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.awaitingFileUpload[chatID]
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.Message != nil && update.Message.IsCommand():
		err = b.HandleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Document != nil && b.isAwaitingUpload(update.Message.Chat.ID):
		err = b.handleDocument(ctx, update.Message)
	case update.Message != nil:
		msg := tgbotapi.NewMessage(update.Message.Chat.ID, "I don't understand. Use /help to see what I can do.")
		msg.ReplyMarkup = createKeyboard(mainMenuButtons())
		err = b.sendMessage(msg)
	case update.CallbackQuery != nil:
		err = b.HandleCallback(ctx, update.CallbackQuery)
	}
	if err != nil {
		b.logger.Error("update failed", slog.Int("update_id", update.UpdateID), slog.String("error", err.Error()))
	}
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) error {
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
