package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fsal/internal/ipc"
)

func newTransferCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer <source> <destination>",
		Short: "Move an external file or tree under the primary base path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Transfer(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "transferred to %s\n", resp.Path)
				return nil
			})
		},
	}
	return cmd
}

func newConsolidateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consolidate <destination> <source>...",
		Short: "Move indexed subtrees into a destination directory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, sources := args[0], args[1:]
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Consolidate(sources, dest)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, moved := range resp.Moved {
					fmt.Fprintf(out, "moved %s\n", moved)
				}
				if resp.Message != "" {
					fmt.Fprintf(out, "some sources failed: %s\n", resp.Message)
					return fmt.Errorf("%d of %d sources moved", len(resp.Moved), len(sources))
				}
				return nil
			})
		},
	}
	return cmd
}

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh [path]",
		Short: "Reconcile the index with the filesystem",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if len(args) == 1 {
					if err := client.RefreshPath(args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "refreshed %s\n", args[0])
					return nil
				}
				if err := client.Refresh(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "refresh complete")
				return nil
			})
		},
	}
	return cmd
}

func newChangesCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		limit      int
		confirm    bool
	)

	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Show pending index change events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.GetChanges(limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					if err := writeJSON(cmd, resp); err != nil {
						return err
					}
				} else if len(resp.Events) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "(no pending changes)")
				} else {
					rows := make([][]string, 0, len(resp.Events))
					for _, ev := range resp.Events {
						kind := "file"
						if ev.IsDir {
							kind = "dir"
						}
						rows = append(rows, []string{
							ev.Type, kind, formatTime(ev.RecordedAt), ev.Path,
						})
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(
						[]string{"EVENT", "KIND", "RECORDED", "PATH"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
					))
				}

				if confirm && len(resp.Events) > 0 {
					confirmed, err := client.ConfirmChanges(len(resp.Events))
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "confirmed %d events\n", confirmed.Confirmed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of events to fetch")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Acknowledge the fetched events")
	return cmd
}

func newWhitelistCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist [prefix]...",
		Short: "Replace the runtime blacklist-bypass prefixes",
		Long: "Replace the runtime blacklist-bypass prefixes. Whitelisted " +
			"subtrees are indexed even when the blacklist matches them; calling " +
			"with no arguments clears the whitelist.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if err := client.SetWhitelist(args); err != nil {
					return err
				}
				if len(args) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "whitelist cleared")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "whitelist set to %d prefixes\n", len(args))
				}
				return nil
			})
		},
	}
	return cmd
}

func newBundlesCommand(ctx *commandContext) *cobra.Command {
	bundlesCmd := &cobra.Command{
		Use:   "bundles",
		Short: "Content bundle utilities",
	}

	importCmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Extract and index a content bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ImportBundle(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d files from %s\n", len(resp.Files), args[0])
				return nil
			})
		},
	}

	bundlesCmd.AddCommand(importCmd)
	return bundlesCmd
}
