package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docbridge/internal/discovery"
	"docbridge/internal/ledger"
	"docbridge/internal/logging"
	"docbridge/internal/notify"
	"docbridge/internal/polling"
	"docbridge/internal/scheduler"
	"docbridge/internal/submission"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the sync pipeline on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd, ctx)
		},
	}
}

func runDaemonProcess(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() { _ = store.Close() }()

	worker, err := submission.NewWorker(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("build submission worker: %w", err)
	}

	manager := scheduler.NewManager(cfg, logger, notify.NewService(cfg))
	stages := []struct {
		stage    scheduler.Stage
		interval time.Duration
	}{
		{discovery.NewScanner(cfg, store, logger), time.Duration(cfg.Discovery.Interval) * time.Second},
		{worker, time.Duration(cfg.Submission.Interval) * time.Second},
		{polling.NewPoller(cfg, store, logger), time.Duration(cfg.Polling.Interval) * time.Second},
	}
	for _, entry := range stages {
		if err := manager.Register(entry.stage, entry.interval); err != nil {
			return fmt.Errorf("register %s stage: %w", entry.stage.Name(), err)
		}
	}

	if err := manager.Start(signalCtx); err != nil {
		return err
	}

	logger.Info("docbridge daemon started",
		logging.String("database", store.Path()),
		logging.Int("roots", len(cfg.Discovery.Roots)))

	<-signalCtx.Done()
	logger.Info("docbridge daemon shutting down")
	manager.Stop()
	return nil
}
