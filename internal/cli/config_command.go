package cli

import (
	"github.com/spf13/cobra"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			masked := *cfg
			masked.HTTP.Token = mask(masked.HTTP.Token)
			masked.Telegram.Token = mask(masked.Telegram.Token)
			return writeJSON(cmd, masked)
		},
	})
	return cmd
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
