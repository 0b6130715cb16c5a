package bot

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/phrasebot/internal/spaced_repetition"
	"github.com/example/phrasebot/pkg/models"
)

// Callback data understood by HandleCallback.
const (
	callbackReview   = "review"
	callbackStats    = "stats"
	callbackHelp     = "help"
	callbackMainMenu = "main_menu"

	gradeCallbackPrefix = "grade:"
)

var errBadCallback = errors.New("malformed callback data")

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// mainMenuButtons returns the buttons of the main menu
func mainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{{Text: "📚 Review", CallbackData: callbackReview}, {Text: "📊 Stats", CallbackData: callbackStats}},
		{{Text: "❓ Help", CallbackData: callbackHelp}},
	}
}

var gradeLabels = map[models.Grade]string{
	models.GradeAgain: "🔁 Again",
	models.GradeHard:  "😓 Hard",
	models.GradeGood:  "🙂 Good",
	models.GradeEasy:  "😎 Easy",
}

// gradeButtons returns one row with a button per grade for the card.
func gradeButtons(cardID string) [][]MenuButton {
	row := make([]MenuButton, 0, 4)
	for _, g := range models.Grades() {
		row = append(row, MenuButton{Text: gradeLabels[g], CallbackData: gradeCallbackData(cardID, g)})
	}
	return [][]MenuButton{row}
}

// gradeCallbackData encodes a grade button as grade:<card id>:<GRADE>.
func gradeCallbackData(cardID string, grade models.Grade) string {
	return gradeCallbackPrefix + cardID + ":" + grade.String()
}

// parseGradeCallback decodes data produced by gradeCallbackData.
func parseGradeCallback(data string) (string, models.Grade, error) {
	rest, ok := strings.CutPrefix(data, gradeCallbackPrefix)
	if !ok {
		return "", 0, errBadCallback
	}
	cardID, gradeName, ok := strings.Cut(rest, ":")
	if !ok || cardID == "" {
		return "", 0, errBadCallback
	}
	grade, err := models.ParseGrade(gradeName)
	if err != nil {
		return "", 0, err
	}
	return cardID, grade, nil
}

func formatCard(item models.QueueItem) string {
	var sb strings.Builder
	if item.IsNew {
		sb.WriteString("🆕 New phrase")
	} else {
		fmt.Fprintf(&sb, "🔄 Review (every %s)", pluralDays(item.Interval))
	}
	if item.DeckName != "" {
		fmt.Fprintf(&sb, " · %s", item.DeckName)
	}
	fmt.Fprintf(&sb, "\n\n«%s»", item.Phrase)
	if item.Author != "" {
		fmt.Fprintf(&sb, "\n— %s", item.Author)
	}
	if len(item.Tags) > 0 {
		sb.WriteString("\n\n")
		for i, tag := range item.Tags {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString("#" + tag)
		}
	}
	sb.WriteString("\n\nHow well did you remember it?")
	return sb.String()
}

func formatChanges(grade models.Grade, c models.ChangeSummary) string {
	return fmt.Sprintf("✅ %s recorded\n"+
		"Interval: %d → %s\n"+
		"Easiness: %.2f → %.2f\n"+
		"Next review: %s",
		gradeLabels[grade],
		c.Interval.Old, pluralDays(c.Interval.New),
		c.EasinessFactor.Old, c.EasinessFactor.New,
		c.NextReviewDate.Format("2006-01-02"),
	)
}

func formatStats(s models.ReviewStats) string {
	return fmt.Sprintf("📊 Your progress\n\n"+
		"Total cards: %d\n"+
		"New: %d\n"+
		"Due today: %d\n"+
		"Overdue: %d\n\n"+
		"Reviews: %d (again %d, hard %d, good %d, easy %d)",
		s.TotalCards, s.NewCards, s.DueCards, s.OverdueCards,
		s.GradeStats.Total(), s.GradeStats.Again, s.GradeStats.Hard, s.GradeStats.Good, s.GradeStats.Easy,
	)
}

func formatReminder(s models.ReviewStats) string {
	parts := make([]string, 0, 3)
	if s.OverdueCards > 0 {
		parts = append(parts, fmt.Sprintf("%d overdue", s.OverdueCards))
	}
	if s.DueCards > 0 {
		parts = append(parts, fmt.Sprintf("%d due today", s.DueCards))
	}
	if s.NewCards > 0 {
		parts = append(parts, fmt.Sprintf("%d new", s.NewCards))
	}
	return "⏰ Time to review! You have " + strings.Join(parts, ", ") + "."
}

// reviewErrorText turns an engine error into a reply for the user.
func reviewErrorText(err error) string {
	switch spaced_repetition.Code(err) {
	case spaced_repetition.CodeCardNotFound:
		return "⚠️ This card no longer exists."
	case spaced_repetition.CodeNotAuthorized:
		return "⚠️ This card belongs to someone else."
	case spaced_repetition.CodeConcurrentUpdate:
		return "⚠️ This card was just reviewed elsewhere. Use /review to continue."
	case spaced_repetition.CodeValidation:
		return "⚠️ Unknown answer."
	default:
		return "❌ Something went wrong. Please try again later."
	}
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
