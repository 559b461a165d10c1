package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fsal/internal/ipc"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List the children of an indexed directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ListDir(path)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "(empty)")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(),
					renderTable(entryHeaders, entryRows(resp.Entries), entryAligns))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output entries as JSON")
	return cmd
}

func newFindCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput   bool
		countOnly    bool
		offset       int
		limit        int
		order        string
		span         int
		entryType    string
		ignoredPaths []string
	)

	cmd := &cobra.Command{
		Use:   "find [path]",
		Short: "List the descendants of an indexed path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			req := ipc.ListDescendantsRequest{
				Path:         path,
				CountOnly:    countOnly,
				Offset:       offset,
				Limit:        limit,
				Order:        order,
				Span:         span,
				EntryType:    entryType,
				IgnoredPaths: ignoredPaths,
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ListDescendants(req)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				if countOnly {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Count)
					return nil
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "(no matches)")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(),
					renderTable(entryHeaders, entryRows(resp.Entries), entryAligns))
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries\n", len(resp.Entries), resp.Count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output entries as JSON")
	cmd.Flags().BoolVar(&countOnly, "count", false, "Print only the number of matches")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many entries")
	cmd.Flags().IntVar(&limit, "limit", 0, "Return at most this many entries (0 means all)")
	cmd.Flags().StringVar(&order, "order", "", "Sort order: name, -name, size, -size, mtime, -mtime")
	cmd.Flags().IntVar(&span, "span", 0, "Only entries modified within this many days")
	cmd.Flags().StringVar(&entryType, "type", "", "Restrict to \"file\" or \"dir\" entries")
	cmd.Flags().StringSliceVar(&ignoredPaths, "ignore", nil, "Subtrees to exclude from results")
	return cmd
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput      bool
		wholeWords      bool
		excludePatterns []string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed entries by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.SearchRequest{
				Query:           args[0],
				WholeWords:      wholeWords,
				ExcludePatterns: excludePatterns,
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Search(req)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if resp.IsMatch {
					fmt.Fprintf(out, "%s is an indexed directory:\n", args[0])
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(out, "(no matches)")
					return nil
				}
				fmt.Fprintln(out,
					renderTable(entryHeaders, entryRows(resp.Entries), entryAligns))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output matches as JSON")
	cmd.Flags().BoolVar(&wholeWords, "whole-words", false, "Match whole names instead of substrings")
	cmd.Flags().StringSliceVar(&excludePatterns, "exclude", nil, "Drop matches whose name matches these patterns")
	return cmd
}
