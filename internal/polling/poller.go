package polling

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"docbridge/internal/config"
	"docbridge/internal/ingest"
	"docbridge/internal/ledger"
	"docbridge/internal/logging"
)

// ScriptName identifies polling runs in the audit trail.
const ScriptName = "poll"

// unknownRemoteFailure stands in when the remote reports a failed parse
// without any error detail.
const unknownRemoteFailure = "Unknown error"

// StatusChecker fetches parse progress for a knowledge entry.
type StatusChecker interface {
	Status(ctx context.Context, knowledgeID string) (*ingest.Knowledge, error)
}

// Poller settles in-flight documents by asking the knowledge base how
// parsing went.
type Poller struct {
	cfg    *config.Config
	store  *ledger.Store
	logger *slog.Logger
	client StatusChecker
	delay  time.Duration
}

// NewPoller constructs the polling stage with default dependencies.
func NewPoller(cfg *config.Config, store *ledger.Store, logger *slog.Logger) *Poller {
	return NewPollerWithDependencies(cfg, store, logger, ingest.NewClient(cfg))
}

// NewPollerWithDependencies allows injecting collaborators (used in tests).
func NewPollerWithDependencies(cfg *config.Config, store *ledger.Store, logger *slog.Logger, client StatusChecker) *Poller {
	return &Poller{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "polling"),
		client: client,
		delay:  time.Duration(cfg.Polling.RequestDelayMS) * time.Millisecond,
	}
}

// Name identifies the stage to the scheduler.
func (p *Poller) Name() string { return ScriptName }

// Run polls one batch of in-flight documents and appends an audit row.
// Transient remote trouble leaves rows untouched for the next pass; only
// ledger errors fail the run.
func (p *Poller) Run(ctx context.Context) error {
	logger := logging.WithContext(ctx, p.logger)
	start := time.Now()
	run := ledger.Run{ScriptName: ScriptName, Status: ledger.RunSuccess}

	err := p.pollBatch(ctx, logger, &run)
	if err != nil {
		run.Status = ledger.RunFail
		run.FailedReason = err.Error()
	}
	run.Duration = time.Since(start)

	if recordErr := p.store.RecordRun(context.WithoutCancel(ctx), run); recordErr != nil {
		logger.Error("record audit row", logging.Error(recordErr))
		if err == nil {
			err = recordErr
		}
	}

	if err != nil {
		logger.Error("poll pass failed", logging.Error(err), logging.Duration("elapsed", run.Duration))
		return err
	}
	if run.ProcessCount > 0 {
		logger.Info("poll pass complete",
			logging.Int("polled", run.ProcessCount),
			logging.Int("settled", run.UpdateCount),
			logging.Duration("elapsed", run.Duration),
		)
	}
	return nil
}

func (p *Poller) pollBatch(ctx context.Context, logger *slog.Logger, run *ledger.Run) error {
	batch, err := p.store.ListByStatuses(ctx, p.cfg.Polling.BatchSize, ledger.StatusPending, ledger.StatusProcessing)
	if err != nil {
		return err
	}
	for i, doc := range batch {
		if i > 0 {
			if err := p.pause(ctx); err != nil {
				return err
			}
		}
		run.ProcessCount++
		changed, err := p.pollOne(ctx, logger, doc)
		if err != nil {
			return err
		}
		if changed {
			run.UpdateCount++
		}
	}
	return nil
}

func (p *Poller) pollOne(ctx context.Context, logger *slog.Logger, doc *ledger.Document) (bool, error) {
	docLogger := logger.With(logging.Args(
		logging.Int64(logging.FieldDocID, doc.ID),
		logging.String(logging.FieldPath, doc.Filepath),
	)...)

	// An in-flight row without a knowledge id cannot be settled remotely.
	// Something upstream misbehaved, so surface it instead of polling forever.
	if doc.KnowledgeID == "" {
		docLogger.Error("in-flight document has no knowledge id")
		return true, p.store.Finalize(ctx, doc.ID, ledger.StatusFailed, "missing knowledge id")
	}

	kn, err := p.client.Status(ctx, doc.KnowledgeID)
	switch {
	case errors.Is(err, ingest.ErrNotFound):
		docLogger.Warn("knowledge entry vanished remotely",
			logging.String(logging.FieldKnowledgeID, doc.KnowledgeID))
		return true, p.store.Finalize(ctx, doc.ID, ledger.StatusFailed, "external record not found")
	case errors.Is(err, ingest.ErrTransient):
		docLogger.Warn("status check unavailable, will retry", logging.Error(err))
		return false, nil
	case errors.Is(err, ingest.ErrRemote):
		docLogger.Error("status check rejected", logging.Error(err))
		return true, p.store.Finalize(ctx, doc.ID, ledger.StatusFailed, err.Error())
	case err != nil:
		return false, err
	}

	status, ok := ledger.ParseStatus(kn.ParseStatus)
	if !ok || status == ledger.StatusDiscover || status == ledger.StatusDeleted {
		docLogger.Warn("remote reported unexpected parse status",
			logging.String("parse_status", kn.ParseStatus))
		return false, nil
	}

	switch status {
	case ledger.StatusCompleted:
		docLogger.Info("parse completed",
			logging.String(logging.FieldKnowledgeID, doc.KnowledgeID))
		return true, p.store.Finalize(ctx, doc.ID, ledger.StatusCompleted, "")
	case ledger.StatusFailed:
		reason := kn.ErrorMessage
		if reason == "" {
			reason = unknownRemoteFailure
		}
		docLogger.Warn("parse failed remotely", logging.String("reason", reason))
		return true, p.store.Finalize(ctx, doc.ID, ledger.StatusFailed, reason)
	default:
		if status == doc.Status {
			return false, nil
		}
		docLogger.Info("parse status advanced",
			logging.String("from", string(doc.Status)),
			logging.String("to", string(status)))
		return true, p.store.UpdateStatus(ctx, doc.ID, status)
	}
}

// pause enforces the configured gap between consecutive status requests so a
// large batch does not hammer the knowledge base.
func (p *Poller) pause(ctx context.Context) error {
	if p.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
