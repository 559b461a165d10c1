package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fsal/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and index status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				lines := renderSectionHeader("fsal daemon", colorize)

				running := statusError
				runningMsg := "stopped"
				if status.Running {
					running = statusOK
					runningMsg = fmt.Sprintf("pid %d", status.PID)
				}
				lines = append(lines,
					renderStatusLine("Daemon", running, runningMsg, colorize),
					renderStatusLine("Socket", statusInfo, status.SocketPath, colorize),
					renderStatusLine("Database", statusInfo, status.DBPath, colorize),
					renderStatusLine("Base paths", statusInfo, strings.Join(status.BasePaths, ", "), colorize),
					renderStatusLine("Files", statusInfo, fmt.Sprintf("%d", status.Files), colorize),
					renderStatusLine("Directories", statusInfo, fmt.Sprintf("%d", status.Dirs), colorize),
				)
				pending := statusOK
				if status.PendingEvents > 0 {
					pending = statusInfo
				}
				lines = append(lines,
					renderStatusLine("Pending events", pending, fmt.Sprintf("%d", status.PendingEvents), colorize))

				fmt.Fprintln(out, strings.Join(lines, "\n"))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}
