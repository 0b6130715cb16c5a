package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/phrasebot/internal/spaced_repetition"
	"github.com/example/phrasebot/pkg/models"
)

const dateLayout = "2006-01-02 15:04"

func newQueueCommand(ctx *commandContext) *cobra.Command {
	var (
		userID   string
		deckID   string
		limit    int
		jsonFlag bool
	)
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the cards a user should review next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := ctx.engine(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("limit") {
				limit = ctx.config.Review.DefaultLimit
			}
			now := time.Now()
			queue, err := svc.BuildReviewQueue(cmd.Context(), spaced_repetition.QueueRequest{
				UserID: userID,
				DeckID: deckID,
				Limit:  limit,
			}, now)
			if err != nil {
				return err
			}

			if wantJSON(cmd, jsonFlag) {
				return writeJSON(cmd, map[string]any{"queue": queue, "count": len(queue)})
			}
			if len(queue) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to review.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderQueue(queue, svc.Location()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID")
	cmd.Flags().StringVarP(&deckID, "deck", "d", "", "Restrict to one deck")
	cmd.Flags().IntVarP(&limit, "limit", "n", spaced_repetition.DefaultQueueLimit, "Maximum number of cards (1-100)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func renderQueue(queue []models.QueueItem, loc *time.Location) string {
	rows := make([][]string, 0, len(queue))
	for i, item := range queue {
		status := "due"
		switch {
		case item.IsNew:
			status = "new"
		case spaced_repetition.IsForgotten(item.Schedule):
			status = "forgotten"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			item.CardID,
			item.Phrase,
			item.DeckName,
			status,
			strconv.Itoa(item.Interval),
			strconv.FormatFloat(item.EasinessFactor, 'f', 2, 64),
			item.NextReviewDate.In(loc).Format(dateLayout),
		})
	}
	return renderTable(
		[]string{"#", "Card", "Phrase", "Deck", "Status", "Interval", "EF", "Due"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func newReviewCommand(ctx *commandContext) *cobra.Command {
	var (
		userID   string
		jsonFlag bool
	)
	cmd := &cobra.Command{
		Use:   "review <card-id> <AGAIN|HARD|GOOD|EASY>",
		Short: "Grade a card and reschedule it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			grade, err := models.ParseGrade(strings.ToUpper(strings.TrimSpace(args[1])))
			if err != nil {
				return err
			}
			_, svc, err := ctx.engine(cmd)
			if err != nil {
				return err
			}
			result, err := svc.ProcessReview(cmd.Context(), args[0], grade, userID, time.Now())
			if err != nil {
				return describeEngineError(err)
			}

			if wantJSON(cmd, jsonFlag) {
				return writeJSON(cmd, map[string]any{"success": true, "card": result.Card, "changes": result.Changes})
			}
			c := result.Changes
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Field", "Before", "After"},
				[][]string{
					{"Easiness", strconv.FormatFloat(c.EasinessFactor.Old, 'f', 2, 64), strconv.FormatFloat(c.EasinessFactor.New, 'f', 2, 64)},
					{"Interval (days)", strconv.Itoa(c.Interval.Old), strconv.Itoa(c.Interval.New)},
					{"Repetitions", strconv.Itoa(c.Repetitions.Old), strconv.Itoa(c.Repetitions.New)},
					{"Next review", "", c.NextReviewDate.In(svc.Location()).Format(dateLayout)},
				},
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID of the reviewer")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var (
		userID   string
		deckID   string
		jsonFlag bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show review statistics for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := ctx.engine(cmd)
			if err != nil {
				return err
			}
			stats, err := svc.GetReviewStats(cmd.Context(), userID, deckID, time.Now())
			if err != nil {
				return err
			}

			if wantJSON(cmd, jsonFlag) {
				return writeJSON(cmd, stats)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStats(*stats))
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID")
	cmd.Flags().StringVarP(&deckID, "deck", "d", "", "Restrict to one deck")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func renderStats(s models.ReviewStats) string {
	itoa := strconv.Itoa
	return renderTable(
		[]string{"Metric", "Count"},
		[][]string{
			{"Total cards", itoa(s.TotalCards)},
			{"New", itoa(s.NewCards)},
			{"Due today", itoa(s.DueCards)},
			{"Overdue", itoa(s.OverdueCards)},
			{"Reviews: AGAIN", itoa(s.GradeStats.Again)},
			{"Reviews: HARD", itoa(s.GradeStats.Hard)},
			{"Reviews: GOOD", itoa(s.GradeStats.Good)},
			{"Reviews: EASY", itoa(s.GradeStats.Easy)},
		},
		[]columnAlignment{alignLeft, alignRight},
	)
}

// describeEngineError prefixes engine errors with their code for the shell.
func describeEngineError(err error) error {
	code := spaced_repetition.Code(err)
	if code == spaced_repetition.CodeInternal {
		return err
	}
	if errors.Is(err, spaced_repetition.ErrConcurrentUpdate) {
		return fmt.Errorf("%s: %w (run the command again)", code, err)
	}
	return fmt.Errorf("%s: %w", code, err)
}
