package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/phrasebot/internal/excel"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	cfg := excel.DefaultImportConfig()
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "import <file.xlsx|file.csv>",
		Short: "Import phrases into a user's deck as new cards",
		Long: "Reads rows of phrase, author and tags (comma or semicolon separated).\n" +
			"Phrases that already have a card in the deck are skipped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			store, err := ctx.store(cmd.Context(), cmd)
			if err != nil {
				return err
			}

			user, err := store.Users().GetByID(cmd.Context(), cfg.UserID)
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("user %q not found; create one with `phrasebot user add`", cfg.UserID)
			}

			cfg.FilePath = args[0]
			result, err := excel.NewImporter(store, logger).ImportFile(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			if wantJSON(cmd, jsonFlag) {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deck %q (%s): %d processed, %d created, %d skipped\n",
				cfg.DeckName, result.DeckID, result.TotalProcessed, result.Created, result.Skipped)
			for _, e := range result.Errors {
				fmt.Fprintln(out, "  "+e)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.UserID, "user", "u", "", "Owner of the deck")
	flags.StringVarP(&cfg.DeckName, "deck", "d", cfg.DeckName, "Deck name; created when missing")
	flags.StringVar(&cfg.SheetName, "sheet", "", "Excel sheet name (default: first sheet)")
	flags.StringVar(&cfg.PhraseColumn, "phrase-column", cfg.PhraseColumn, "Column with the phrase")
	flags.StringVar(&cfg.AuthorColumn, "author-column", cfg.AuthorColumn, "Column with the author")
	flags.StringVar(&cfg.TagsColumn, "tags-column", cfg.TagsColumn, "Column with the tags")
	flags.IntVar(&cfg.StartRow, "start-row", cfg.StartRow, "First data row (1-based)")
	flags.BoolVar(&jsonFlag, "json", false, "Print JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
