package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"docbridge/internal/config"
	"docbridge/internal/discovery"
	"docbridge/internal/erplink"
	"docbridge/internal/ledger"
	"docbridge/internal/logging"
	"docbridge/internal/polling"
	"docbridge/internal/scheduler"
	"docbridge/internal/submission"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single pipeline stage immediately",
	}

	syncCmd.AddCommand(newSyncDiscoverCommand(ctx))
	syncCmd.AddCommand(newSyncSubmitCommand(ctx))
	syncCmd.AddCommand(newSyncPollCommand(ctx))
	syncCmd.AddCommand(newSyncLinkCommand(ctx))

	return syncCmd
}

type stageBuilder func(*config.Config, *ledger.Store, *slog.Logger) (scheduler.Stage, error)

func newSyncDiscoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Scan document roots and reconcile the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStageOnce(cmd, ctx, func(cfg *config.Config, store *ledger.Store, logger *slog.Logger) (scheduler.Stage, error) {
				return discovery.NewScanner(cfg, store, logger), nil
			})
		},
	}
}

func newSyncSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Upload discovered documents to the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStageOnce(cmd, ctx, func(cfg *config.Config, store *ledger.Store, logger *slog.Logger) (scheduler.Stage, error) {
				return submission.NewWorker(cfg, store, logger)
			})
		},
	}
}

func newSyncPollCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Refresh parse status for in-flight documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStageOnce(cmd, ctx, func(cfg *config.Config, store *ledger.Store, logger *slog.Logger) (scheduler.Stage, error) {
				return polling.NewPoller(cfg, store, logger), nil
			})
		},
	}
}

func newSyncLinkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "link",
		Short: "Attach ERP contract metadata from dump files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStageOnce(cmd, ctx, func(cfg *config.Config, store *ledger.Store, logger *slog.Logger) (scheduler.Stage, error) {
				return erplink.NewLinker(cfg, store, logger), nil
			})
		},
	}
}

func runStageOnce(cmd *cobra.Command, ctx *commandContext, build stageBuilder) error {
	logger, err := ctx.newLogger()
	if err != nil {
		return err
	}
	return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
		stage, err := build(cfg, store, logger)
		if err != nil {
			return err
		}
		runCtx := logging.ContextWithRunID(cmd.Context(), uuid.NewString())
		runCtx = logging.ContextWithStage(runCtx, stage.Name())
		if err := stage.Run(runCtx); err != nil {
			return err
		}
		printRunSummary(cmd, store, stage.Name())
		return nil
	})
}

// printRunSummary echoes the audit row the stage just recorded. A lookup
// failure only costs the summary line, so it is not treated as an error.
func printRunSummary(cmd *cobra.Command, store *ledger.Store, scriptName string) {
	runs, err := store.RecentRuns(cmd.Context(), scriptName, 1)
	if err != nil || len(runs) == 0 {
		return
	}
	run := runs[0]
	fmt.Fprintf(cmd.OutOrStdout(), "%s: processed %d, inserted %d, updated %d, deleted %d in %s\n",
		scriptName, run.ProcessCount, run.InsertCount, run.UpdateCount, run.DeleteCount,
		run.Duration.Round(time.Millisecond))
}
