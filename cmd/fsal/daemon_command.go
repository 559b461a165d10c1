package main

import (
	"github.com/spf13/cobra"

	"fsal/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the fsal daemon in the foreground",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: logLevel,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}
