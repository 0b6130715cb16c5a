package models

// QueueItem is a card ready to be shown in a study session, with the
// phrase and deck fields needed for display.
type QueueItem struct {
	CardID   string   `json:"cardId" db:"card_id"`
	PhraseID string   `json:"phraseId" db:"phrase_id"`
	Phrase   string   `json:"phrase" db:"phrase"`
	Author   string   `json:"author" db:"author"`
	Tags     TagList  `json:"tags" db:"tags"`
	DeckID   string   `json:"deckId" db:"deck_id"`
	DeckName string   `json:"deckName" db:"deck_name"`
	Schedule
	IsNew bool `json:"isNew" db:"-"`
}
