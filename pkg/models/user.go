package models

import "time"

// User is a learner reachable through Telegram
type User struct {
	ID                  string    `json:"id" db:"id"`
	TelegramID          int64     `json:"telegramId" db:"telegram_id"`
	Username            string    `json:"username" db:"username"`
	FirstName           string    `json:"firstName" db:"first_name"`
	NotificationEnabled bool      `json:"notificationEnabled" db:"notification_enabled"`
	NotificationHour    int       `json:"notificationHour" db:"notification_hour"` // Hour of day for reminders (0-23)
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
}
