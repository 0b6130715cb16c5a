// Package cli wires the phrasebot commands.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the phrasebot command tree.
func NewRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "phrasebot",
		Short:         "Spaced repetition for memorable phrases",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFile, "config", "c", "", "Configuration file path (YAML)")
	flags.StringVar(&ctx.envFile, "env-file", ".env", "Dotenv file loaded before reading PHRASEBOT_* variables")
	flags.String("db-driver", "", "Database driver: sqlite3, sqlite or postgres")
	flags.String("db-dsn", "", "Database DSN")
	flags.String("timezone", "", "IANA time zone used for calendar days")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newUserCommand(ctx))
	rootCmd.AddCommand(newQueueCommand(ctx))
	rootCmd.AddCommand(newReviewCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"db-driver":  "database.driver",
	"db-dsn":     "database.dsn",
	"timezone":   "review.timezone",
	"log-level":  "log.level",
	"log-format": "log.format",
	"addr":       "http.addr",
	"telegram":   "telegram.enabled",
	"reminders":  "scheduler.enabled",
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
