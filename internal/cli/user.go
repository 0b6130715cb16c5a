package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/phrasebot/pkg/models"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage learners",
	}
	cmd.AddCommand(newUserAddCommand(ctx))
	cmd.AddCommand(newUserDecksCommand(ctx))
	return cmd
}

func newUserAddCommand(ctx *commandContext) *cobra.Command {
	var (
		telegramID int64
		hour       int
	)
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user and print its ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("hour") {
				hour = ctx.config.Scheduler.DefaultHour
			}
			if hour < 0 || hour > 23 {
				return fmt.Errorf("hour must be between 0 and 23, got %d", hour)
			}

			user := &models.User{
				TelegramID:          telegramID,
				Username:            args[0],
				NotificationEnabled: telegramID != 0,
				NotificationHour:    hour,
			}
			if err := store.Users().Create(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&telegramID, "telegram-id", 0, "Telegram user ID for reminders")
	cmd.Flags().IntVar(&hour, "hour", 9, "Reminder hour (0-23)")
	return cmd
}

func newUserDecksCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool
	cmd := &cobra.Command{
		Use:   "decks <user-id>",
		Short: "List a user's decks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			decks, err := store.Decks().ListByUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if wantJSON(cmd, jsonFlag) {
				return writeJSON(cmd, decks)
			}
			rows := make([][]string, 0, len(decks))
			for i, d := range decks {
				rows = append(rows, []string{strconv.Itoa(i + 1), d.ID, d.Name, d.CreatedAt.Format(dateLayout)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Deck", "Name", "Created"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print JSON")
	return cmd
}
