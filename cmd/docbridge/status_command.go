package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"docbridge/internal/config"
	"docbridge/internal/ledger"
)

const (
	recentRunsShown     = 5
	recentFailuresShown = 5
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline health and recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				printSection(out, "Pipeline", colorize)
				health := ledger.CheckHealth(cmd.Context(), cfg.DatabasePath())
				for _, line := range databaseStatusLines(health, colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, ingestStatusLine(cfg, colorize))
				fmt.Fprintln(out, archiveStatusLine(cfg, colorize))
				fmt.Fprintln(out, erpStatusLine(cfg, colorize))
				fmt.Fprintln(out, notifyStatusLine(cfg, colorize))

				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				printSection(out, "Documents", colorize)
				fmt.Fprintln(out, renderTable(
					[]string{"Status", "Count"},
					buildStatsRows(stats),
					[]columnAlignment{alignLeft, alignRight},
				))

				runs, err := store.RecentRuns(cmd.Context(), "", recentRunsShown)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				printSection(out, "Recent Runs", colorize)
				if len(runs) == 0 {
					fmt.Fprintln(out, statusIndent+"No runs recorded")
				} else {
					fmt.Fprintln(out, renderTable(
						[]string{"Script", "Status", "Processed", "Duration", "Ran At", "Note"},
						buildRunRows(runs),
						[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
					))
				}

				failures, err := store.RecentFailures(cmd.Context(), recentFailuresShown)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				printSection(out, "Recent Failures", colorize)
				if len(failures) == 0 {
					fmt.Fprintln(out, statusIndent+"No failed documents")
				} else {
					fmt.Fprintln(out, renderTable(
						[]string{"ID", "File", "Reason", "Submitted"},
						buildFailureRows(failures),
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
					))
				}
				return nil
			})
		},
	}
}

func printSection(out io.Writer, title string, colorize bool) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
}

func databaseStatusLines(health *ledger.DatabaseHealth, colorize bool) []string {
	if health.Error != "" {
		return []string{renderStatusLine("Database", statusError, health.Error, colorize)}
	}
	lines := []string{renderStatusLine("Database", statusOK,
		fmt.Sprintf("%d documents tracked", health.TotalDocuments), colorize)}
	if health.IntegrityCheck {
		lines = append(lines, renderStatusLine("Integrity", statusOK, "", colorize))
	} else {
		lines = append(lines, renderStatusLine("Integrity", statusWarn, "integrity_check reported issues", colorize))
	}
	if len(health.MissingColumns) > 0 {
		lines = append(lines, renderStatusLine("Schema", statusWarn,
			"missing columns: "+strings.Join(health.MissingColumns, ", "), colorize))
	}
	return lines
}

func ingestStatusLine(cfg *config.Config, colorize bool) string {
	if cfg.Ingest.BaseURL == "" {
		return renderStatusLine("Ingest API", statusError, "base_url not configured", colorize)
	}
	if cfg.Ingest.APIKey == "" {
		return renderStatusLine("Ingest API", statusWarn, cfg.Ingest.BaseURL+" (no API key)", colorize)
	}
	return renderStatusLine("Ingest API", statusOK, cfg.Ingest.BaseURL, colorize)
}

func archiveStatusLine(cfg *config.Config, colorize bool) string {
	if !cfg.Archive.Enabled {
		return renderStatusLine("Archive", statusInfo, "Disabled", colorize)
	}
	return renderStatusLine("Archive", statusOK,
		fmt.Sprintf("%s/%s", cfg.Archive.Endpoint, cfg.Archive.Bucket), colorize)
}

func erpStatusLine(cfg *config.Config, colorize bool) string {
	if cfg.ERP.DumpDir == "" {
		return renderStatusLine("ERP Dump", statusInfo, "Not configured", colorize)
	}
	return renderStatusLine("ERP Dump", statusOK, cfg.ERP.DumpDir, colorize)
}

func notifyStatusLine(cfg *config.Config, colorize bool) string {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return renderStatusLine("Notifications", statusInfo, "Disabled", colorize)
	}
	return renderStatusLine("Notifications", statusOK, "ntfy topic "+topic, colorize)
}

func buildStatsRows(stats *ledger.HealthSummary) [][]string {
	rows := [][]string{
		{"discover", formatCount(stats.Discover)},
		{"pending", formatCount(stats.Pending)},
		{"processing", formatCount(stats.Processing)},
		{"completed", formatCount(stats.Completed)},
		{"failed", formatCount(stats.Failed)},
		{"deleted", formatCount(stats.Deleted)},
		{"total", formatCount(stats.Total)},
	}
	return rows
}

func buildRunRows(runs []*ledger.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		note := ""
		if run.Status == ledger.RunFail {
			note = truncate(run.FailedReason, 48)
		}
		rows = append(rows, []string{
			run.ScriptName,
			string(run.Status),
			formatCount(run.ProcessCount),
			formatDuration(run.Duration),
			formatTimestamp(run.Timestamp),
			note,
		})
	}
	return rows
}

func buildFailureRows(docs []*ledger.Document) [][]string {
	rows := make([][]string, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, []string{
			formatID(doc.ID),
			truncate(doc.Filename, 40),
			truncate(doc.FailedMsg, 56),
			formatTimestampPtr(doc.ProcessAt),
		})
	}
	return rows
}
