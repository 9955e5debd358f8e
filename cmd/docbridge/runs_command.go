package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docbridge/internal/config"
	"docbridge/internal/ledger"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [script]",
		Short: "Show stage run history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script := ""
			if len(args) > 0 {
				script = strings.TrimSpace(args[0])
			}
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				runs, err := store.RecentRuns(cmd.Context(), script, limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Script", "Status", "Processed", "Inserted", "Updated", "Deleted", "Duration", "Ran At", "Note"},
					buildRunHistoryRows(runs),
					[]columnAlignment{
						alignLeft, alignLeft, alignRight, alignRight, alignRight,
						alignRight, alignRight, alignLeft, alignLeft,
					},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to show")
	return cmd
}

func buildRunHistoryRows(runs []*ledger.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ScriptName,
			string(run.Status),
			formatCount(run.ProcessCount),
			formatCount(run.InsertCount),
			formatCount(run.UpdateCount),
			formatCount(run.DeleteCount),
			formatDuration(run.Duration),
			formatTimestamp(run.Timestamp),
			truncate(run.FailedReason, 48),
		})
	}
	return rows
}
