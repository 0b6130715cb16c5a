package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/phrasebot/pkg/models"
)

const (
	userColumns       = `id, telegram_id, username, first_name, notification_enabled, notification_hour, created_at`
	userSelectColumns = `id, COALESCE(telegram_id, 0) AS telegram_id, username, first_name,
	notification_enabled, notification_hour, created_at`
)

// UserRepository handles database operations for users
type UserRepository struct {
	db sqlx.ExtContext
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db sqlx.ExtContext) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID returns a user by ID, or nil when absent
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userSelectColumns+` FROM users WHERE id = ?`, id)
}

// GetByTelegramID returns the user linked to a Telegram account, or nil when absent
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userSelectColumns+` FROM users WHERE telegram_id = ?`, telegramID)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.db, &user, r.db.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Create inserts a new user. A zero TelegramID is stored as NULL so that
// API-only users do not collide on the unique index.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC()

	var telegramID sql.NullInt64
	if user.TelegramID != 0 {
		telegramID = sql.NullInt64{Int64: user.TelegramID, Valid: true}
	}

	query := r.db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		telegramID,
		user.Username,
		user.FirstName,
		user.NotificationEnabled,
		user.NotificationHour,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// EnsureTelegramUser returns the user linked to the Telegram account,
// creating it with reminders enabled at defaultHour when missing.
func (r *UserRepository) EnsureTelegramUser(ctx context.Context, telegramID int64, username, firstName string, defaultHour int) (*models.User, bool, error) {
	user, err := r.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, false, nil
	}

	user = &models.User{
		TelegramID:          telegramID,
		Username:            username,
		FirstName:           firstName,
		NotificationEnabled: true,
		NotificationHour:    defaultHour,
	}
	if err := r.Create(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// UpdateNotifications changes the reminder settings of a user
func (r *UserRepository) UpdateNotifications(ctx context.Context, userID string, enabled bool, hour int) error {
	query := r.db.Rebind(`UPDATE users SET notification_enabled = ?, notification_hour = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, enabled, hour, userID)
	if err != nil {
		return fmt.Errorf("failed to update user notifications: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}

// GetUsersForNotification returns Telegram users with reminders enabled at the given hour
func (r *UserRepository) GetUsersForNotification(ctx context.Context, hour int) ([]models.User, error) {
	query := r.db.Rebind(`SELECT ` + userSelectColumns + ` FROM users
		WHERE notification_enabled = ? AND notification_hour = ? AND telegram_id IS NOT NULL
		ORDER BY created_at ASC`)
	users := []models.User{}
	if err := sqlx.SelectContext(ctx, r.db, &users, query, true, hour); err != nil {
		return nil, fmt.Errorf("failed to get users for notification: %w", err)
	}
	return users, nil
}
