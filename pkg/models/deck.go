package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Deck groups a user's cards
type Deck struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Phrase is the memorized content a card points to
type Phrase struct {
	ID        string    `json:"id" db:"id"`
	Text      string    `json:"phrase" db:"phrase"`
	Author    string    `json:"author" db:"author"`
	Tags      TagList   `json:"tags" db:"tags"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// TagList is stored as a JSON array so it works the same on SQLite and Postgres.
type TagList []string

// Value implements driver.Valuer.
func (t TagList) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *TagList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = TagList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("failed to scan tags: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*t = TagList{}
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return fmt.Errorf("failed to parse tags: %w", err)
	}
	*t = tags
	return nil
}
