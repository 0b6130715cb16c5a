package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/phrasebot/internal/excel"
	"github.com/example/phrasebot/internal/spaced_repetition"
	"github.com/example/phrasebot/pkg/models"
)

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message == nil || message.From == nil || message.Chat == nil {
		return fmt.Errorf("invalid message: required fields are missing")
	}

	var err error
	switch message.Command() {
	case "start", "menu":
		err = b.handleStart(ctx, message)
	case "help":
		err = b.handleHelp(message.Chat.ID)
	case "review":
		err = b.handleReview(ctx, message.Chat.ID, message.From)
	case "stats":
		err = b.handleStats(ctx, message.Chat.ID, message.From)
	case "notify":
		err = b.handleNotifyCommand(ctx, message)
	case "time":
		err = b.handleTimeCommand(ctx, message)
	case "import":
		err = b.handleImportCommand(message)
	default:
		err = b.handleUnknownCommand(message)
	}
	return err
}

// user returns the account behind a Telegram sender, registering it on first contact.
func (b *Bot) user(ctx context.Context, from *tgbotapi.User) (*models.User, error) {
	user, created, err := b.users.EnsureTelegramUser(ctx, from.ID, from.UserName, from.FirstName, b.config.DefaultHour)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if created {
		b.logger.Info("user registered", slog.String("user_id", user.ID), slog.Int64("telegram_id", from.ID))
	}
	return user, nil
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.user(ctx, message.From)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("👋 Welcome, %s!\n\n"+
		"I help you memorize phrases with spaced repetition.\n\n"+
		"🔹 How it works:\n"+
		"1. Press Review to see the next phrase\n"+
		"2. Rate how well you remembered it\n"+
		"3. I schedule the next review for you\n\n"+
		"Daily reminders are %s at %d:00.",
		displayName(message.From), enabledString(user.NotificationEnabled), user.NotificationHour)

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = createKeyboard(mainMenuButtons())
	return b.sendMessage(msg)
}

func (b *Bot) handleHelp(chatID int64) error {
	text := "📖 Commands\n\n" +
		"/review - Review the next phrase\n" +
		"/stats - Show your progress\n" +
		"/notify on|off - Turn daily reminders on or off\n" +
		"/time <hour> - Set the reminder hour (0-23)\n" +
		"/help - Show this help\n\n" +
		"🔄 Grades\n" +
		"Again and Hard restart the phrase tomorrow.\n" +
		"Good and Easy push it further out each time."

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "⬅️ Back to menu", CallbackData: callbackMainMenu}},
	})
	return b.sendMessage(msg)
}

// handleReview shows the head of the user's queue with grade buttons.
func (b *Bot) handleReview(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	user, err := b.user(ctx, from)
	if err != nil {
		return err
	}

	queue, err := b.reviews.BuildReviewQueue(ctx, spaced_repetition.QueueRequest{UserID: user.ID, Limit: 1}, b.now())
	if err != nil {
		return fmt.Errorf("failed to build queue: %w", err)
	}
	if len(queue) == 0 {
		msg := tgbotapi.NewMessage(chatID, "🎉 Nothing to review right now. Come back later!")
		msg.ReplyMarkup = createKeyboard(mainMenuButtons())
		return b.sendMessage(msg)
	}

	msg := tgbotapi.NewMessage(chatID, formatCard(queue[0]))
	msg.ReplyMarkup = createKeyboard(gradeButtons(queue[0].CardID))
	return b.sendMessage(msg)
}

func (b *Bot) handleGrade(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	chatID := callback.Message.Chat.ID
	cardID, grade, err := parseGradeCallback(callback.Data)
	if err != nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "⚠️ Unknown action"))
	}

	user, err := b.user(ctx, callback.From)
	if err != nil {
		return err
	}

	// Drop the buttons so the same card cannot be graded twice from this message.
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, callback.Message.MessageID, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(edit); err != nil {
		b.logger.Warn("failed to remove grade buttons", slog.String("error", err.Error()))
	}

	result, err := b.reviews.ProcessReview(ctx, cardID, grade, user.ID, b.now())
	if err != nil {
		if spaced_repetition.Code(err) == spaced_repetition.CodeInternal {
			b.logger.Error("review failed", slog.String("card_id", cardID), slog.String("error", err.Error()))
		}
		return b.sendMessage(tgbotapi.NewMessage(chatID, reviewErrorText(err)))
	}

	if err := b.sendMessage(tgbotapi.NewMessage(chatID, formatChanges(grade, result.Changes))); err != nil {
		return err
	}
	return b.handleReview(ctx, chatID, callback.From)
}

func (b *Bot) handleStats(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	user, err := b.user(ctx, from)
	if err != nil {
		return err
	}
	stats, err := b.reviews.GetReviewStats(ctx, user.ID, "", b.now())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, formatStats(*stats))
	msg.ReplyMarkup = createKeyboard(mainMenuButtons())
	return b.sendMessage(msg)
}

func (b *Bot) handleNotifyCommand(ctx context.Context, message *tgbotapi.Message) error {
	var enabled bool
	switch strings.ToLower(strings.TrimSpace(message.CommandArguments())) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Please specify on or off: /notify <on|off>"))
	}

	user, err := b.user(ctx, message.From)
	if err != nil {
		return err
	}
	if err := b.users.UpdateNotifications(ctx, user.ID, enabled, user.NotificationHour); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	text := fmt.Sprintf("✅ Reminders %s", enabledString(enabled))
	return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, text))
}

func (b *Bot) handleTimeCommand(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.TrimSpace(message.CommandArguments())
	if args == "" {
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Please specify an hour (0-23): /time <hour>"))
	}
	hour, err := strconv.Atoi(args)
	if err != nil || hour < 0 || hour > 23 {
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Please specify a valid hour (0-23)"))
	}

	user, err := b.user(ctx, message.From)
	if err != nil {
		return err
	}
	if err := b.users.UpdateNotifications(ctx, user.ID, user.NotificationEnabled, hour); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	text := fmt.Sprintf("✅ Reminder time set to %d:00", hour)
	return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, text))
}

func (b *Bot) handleImportCommand(message *tgbotapi.Message) error {
	if !b.isAdmin(message.From.ID) || b.importer == nil {
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "This command is only available for administrators."))
	}
	b.setAwaitingUpload(message.Chat.ID, true)

	text := "Send an .xlsx or .csv file with the columns phrase | author | tags.\n" +
		"The first row is treated as a header. Use the file caption to name the deck."
	return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, text))
}

// handleDocument imports an uploaded phrase file into the sender's deck.
func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) error {
	b.setAwaitingUpload(message.Chat.ID, false)
	doc := message.Document

	if int64(doc.FileSize) > b.config.MaxUploadBytes {
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "❌ The file is too large."))
	}

	user, err := b.user(ctx, message.From)
	if err != nil {
		return err
	}

	cfg := excel.DefaultImportConfig()
	cfg.UserID = user.ID
	cfg.DeckName = b.config.DefaultDeck
	if caption := strings.TrimSpace(message.Caption); caption != "" {
		cfg.DeckName = caption
	}

	rows, err := b.downloadRows(ctx, doc, cfg)
	if errors.Is(err, excel.ErrUnsupportedFormat) {
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "❌ Only .xlsx and .csv files are supported."))
	}
	if err != nil {
		b.logger.Warn("import download failed", slog.String("file", doc.FileName), slog.String("error", err.Error()))
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "❌ Could not read the file."))
	}

	result, err := b.importer.Import(ctx, cfg, rows)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", doc.FileName, err)
	}

	text := fmt.Sprintf("📥 Imported into «%s»\nAdded: %d\nSkipped: %d\nErrors: %d",
		cfg.DeckName, result.Created, result.Skipped, len(result.Errors))
	for i, e := range result.Errors {
		if i == 5 {
			text += fmt.Sprintf("\n…and %d more", len(result.Errors)-i)
			break
		}
		text += "\n" + e
	}
	return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, text))
}

func (b *Bot) downloadRows(ctx context.Context, doc *tgbotapi.Document, cfg excel.ImportConfig) ([]excel.Row, error) {
	ext := strings.ToLower(filepath.Ext(doc.FileName))
	if ext != ".xlsx" && ext != ".csv" {
		return nil, fmt.Errorf("%w: %q", excel.ErrUnsupportedFormat, ext)
	}

	url, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}

	return excel.ReadRows(io.LimitReader(resp.Body, b.config.MaxUploadBytes), ext, cfg)
}

func (b *Bot) handleUnknownCommand(message *tgbotapi.Message) error {
	text := "Unknown command. Use /help to see the list of commands."
	return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, text))
}

// HandleCallback handles inline button presses
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback == nil || callback.Message == nil || callback.From == nil {
		return fmt.Errorf("invalid callback data: required fields are missing")
	}

	// Always answer the callback query to remove the loading state
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.Warn("failed to answer callback", slog.String("error", err.Error()))
	}

	chatID := callback.Message.Chat.ID
	var err error
	switch callback.Data {
	case callbackMainMenu:
		msg := tgbotapi.NewMessage(chatID, "🤖 Main menu")
		msg.ReplyMarkup = createKeyboard(mainMenuButtons())
		err = b.sendMessage(msg)
	case callbackHelp:
		err = b.handleHelp(chatID)
	case callbackReview:
		err = b.handleReview(ctx, chatID, callback.From)
	case callbackStats:
		err = b.handleStats(ctx, chatID, callback.From)
	default:
		if strings.HasPrefix(callback.Data, gradeCallbackPrefix) {
			return b.handleGrade(ctx, callback)
		}
		return b.sendMessage(tgbotapi.NewMessage(chatID, "⚠️ Unknown action"))
	}

	if err != nil {
		b.logger.Error("callback failed", slog.String("data", callback.Data), slog.String("error", err.Error()))
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Something went wrong. Please try again later."))
	}
	return nil
}

func displayName(u *tgbotapi.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.UserName != "" {
		return u.UserName
	}
	return "there"
}
