package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fsal/internal/ipc"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info <path>",
		Short: "Show the index entry for a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.GetEntry(args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				entry := resp.Entry
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Path:      %s\n", entry.Path)
				fmt.Fprintf(out, "Type:      %s\n", entry.Type)
				fmt.Fprintf(out, "Base path: %s\n", entry.BasePath)
				if entry.Type == "file" {
					fmt.Fprintf(out, "Size:      %s (%d bytes)\n", humanSize(entry.Size), entry.Size)
				}
				fmt.Fprintf(out, "Modified:  %s\n", formatTime(entry.ModTime))
				if entry.Checksum != "" {
					fmt.Fprintf(out, "Checksum:  %s\n", entry.Checksum)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the entry as JSON")
	return cmd
}

func newExistsCommand(ctx *commandContext) *cobra.Command {
	var (
		wantDir  bool
		wantFile bool
	)

	cmd := &cobra.Command{
		Use:   "exists <path>",
		Short: "Check whether a path is indexed",
		Long: "Check whether a path is indexed. Exits zero when the path " +
			"exists (and matches --dir/--file when given), non-zero otherwise.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				var found bool
				switch {
				case wantDir:
					resp, err := client.IsDir(args[0])
					if err != nil {
						return err
					}
					found = resp.IsDir
				case wantFile:
					resp, err := client.IsFile(args[0])
					if err != nil {
						return err
					}
					found = resp.IsFile
				default:
					resp, err := client.Exists(args[0])
					if err != nil {
						return err
					}
					found = resp.Exists
				}
				fmt.Fprintln(cmd.OutOrStdout(), yesNo(found))
				if !found {
					return fmt.Errorf("%s: not indexed", args[0])
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&wantDir, "dir", false, "Require the path to be a directory")
	cmd.Flags().BoolVar(&wantFile, "file", false, "Require the path to be a file")
	cmd.MarkFlagsMutuallyExclusive("dir", "file")
	return cmd
}

func newDiskUsageCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "du <path>",
		Short: "Report the indexed size of a subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PathSize(args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", humanSize(resp.Size), args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the size as JSON")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a managed path from disk and index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("rm deletes %s from disk; rerun with --force to confirm", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Remove(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Confirm the deletion")
	return cmd
}
