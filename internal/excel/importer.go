package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/phrasebot/internal/database"
	"github.com/example/phrasebot/internal/logging"
	"github.com/example/phrasebot/pkg/models"
)

// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv.
var ErrUnsupportedFormat = errors.New("unsupported import format")

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath     string // Path to the Excel or CSV file
	UserID       string // Owner of the deck and the created cards
	DeckName     string // Deck to fill; created when missing
	PhraseColumn string // Column with the phrase text
	AuthorColumn string // Column with the author
	TagsColumn   string // Column with comma or semicolon separated tags
	SheetName    string // Name of the sheet to import; empty means the first sheet
	StartRow     int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		DeckName:     "Default",
		PhraseColumn: "A",
		AuthorColumn: "B",
		TagsColumn:   "C",
		StartRow:     2, // skip header
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	DeckID         string
	TotalProcessed int
	Created        int
	Skipped        int
	Errors         []string
}

// Row is one phrase read from a file.
type Row struct {
	Number int
	Phrase string
	Author string
	Tags   []string
}

// Importer writes phrase rows into a user's deck.
type Importer struct {
	store  *database.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewImporter creates an importer over store. A nil logger discards output.
func NewImporter(store *database.Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Importer{store: store, logger: logger, now: time.Now}
}

// ImportFile reads config.FilePath and imports its rows.
func (im *Importer) ImportFile(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	f, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	rows, err := ReadRows(f, filepath.Ext(config.FilePath), config)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, config, rows)
}

// Import stores rows as phrases with fresh cards in the configured deck.
// Rows whose phrase already has a card in the deck are skipped. Invalid
// rows are reported in the result; store failures abort the whole import.
func (im *Importer) Import(ctx context.Context, config ImportConfig, rows []Row) (*ImportResult, error) {
	if strings.TrimSpace(config.UserID) == "" {
		return nil, errors.New("import requires a user")
	}
	deckName := strings.TrimSpace(config.DeckName)
	if deckName == "" {
		deckName = DefaultImportConfig().DeckName
	}

	result := &ImportResult{Errors: make([]string, 0)}
	now := im.now()

	err := im.store.Transact(ctx, func(tx *database.Store) error {
		deck, err := tx.Decks().GetOrCreate(ctx, config.UserID, deckName)
		if err != nil {
			return err
		}
		result.DeckID = deck.ID

		for _, row := range rows {
			result.TotalProcessed++
			created, err := importRow(ctx, tx, deck, row, now)
			if errors.Is(err, errInvalidRow) {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", row.Number, err))
				continue
			}
			if err != nil {
				return fmt.Errorf("row %d: %w", row.Number, err)
			}
			if created {
				result.Created++
			} else {
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	im.logger.Info("phrases imported",
		slog.String("user_id", config.UserID),
		slog.String("deck", deckName),
		slog.Int("processed", result.TotalProcessed),
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", len(result.Errors)),
	)
	return result, nil
}

var errInvalidRow = errors.New("invalid row")

func importRow(ctx context.Context, tx *database.Store, deck *models.Deck, row Row, now time.Time) (bool, error) {
	text := strings.TrimSpace(row.Phrase)
	if text == "" {
		return false, fmt.Errorf("%w: phrase cannot be empty", errInvalidRow)
	}

	exists, err := tx.CardRepo().ExistsForPhrase(ctx, deck.ID, text)
	if err != nil || exists {
		return false, err
	}

	phrase := &models.Phrase{
		Text:      text,
		Author:    strings.TrimSpace(row.Author),
		Tags:      models.TagList(row.Tags),
		CreatedAt: now,
	}
	if err := tx.Phrases().Create(ctx, phrase); err != nil {
		return false, err
	}
	card := &models.Card{
		UserID:    deck.UserID,
		DeckID:    deck.ID,
		PhraseID:  phrase.ID,
		Schedule:  models.NewSchedule(now),
		CreatedAt: now,
	}
	if err := tx.CardRepo().Create(ctx, card); err != nil {
		return false, err
	}
	return true, nil
}

// ReadRows parses an xlsx or csv stream; ext selects the format.
func ReadRows(r io.Reader, ext string, config ImportConfig) ([]Row, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(ext) {
	case ".xlsx", ".xlsm":
		records, err = readExcel(r, config.SheetName)
	case ".csv":
		records, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	start := config.StartRow
	if start < 1 {
		start = 1
	}
	phraseIdx := columnToIndex(config.PhraseColumn)
	authorIdx := columnToIndex(config.AuthorColumn)
	tagsIdx := columnToIndex(config.TagsColumn)

	rows := make([]Row, 0, len(records))
	for i, record := range records {
		if i < start-1 || isBlank(record) {
			continue
		}
		rows = append(rows, Row{
			Number: i + 1,
			Phrase: cell(record, phraseIdx),
			Author: cell(record, authorIdx),
			Tags:   splitTags(cell(record, tagsIdx)),
		})
	}
	return rows, nil
}

func readExcel(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return records, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func splitTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	tags := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		tag := strings.ToLower(strings.TrimSpace(f))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// columnToIndex converts an Excel column letter to a zero-based index; an
// empty column yields -1.
func columnToIndex(column string) int {
	column = strings.ToUpper(strings.TrimSpace(column))
	index := 0
	for i := 0; i < len(column); i++ {
		if column[i] < 'A' || column[i] > 'Z' {
			return -1
		}
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
