package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"docbridge/internal/archive"
	"docbridge/internal/config"
	"docbridge/internal/fileutil"
	"docbridge/internal/ingest"
	"docbridge/internal/ledger"
	"docbridge/internal/logging"
)

// ScriptName identifies submission runs in the audit trail.
const ScriptName = "submit"

// Uploader pushes a document into the knowledge base.
type Uploader interface {
	Upload(ctx context.Context, path, filename string) (*ingest.Knowledge, error)
}

// Archiver mirrors submitted documents into object storage.
type Archiver interface {
	EnsureBucket(ctx context.Context) error
	Store(ctx context.Context, path string) (string, error)
}

// Worker uploads discovered documents to the knowledge base and records
// where each one landed.
type Worker struct {
	cfg      *config.Config
	store    *ledger.Store
	logger   *slog.Logger
	client   Uploader
	archiver Archiver
}

// NewWorker constructs the submission stage with default dependencies. The
// archive mirror is only wired when archiving is enabled in the config.
func NewWorker(cfg *config.Config, store *ledger.Store, logger *slog.Logger) (*Worker, error) {
	mirror, err := archive.New(cfg)
	if err != nil {
		return nil, err
	}
	var archiver Archiver
	if mirror != nil {
		archiver = mirror
	}
	return NewWorkerWithDependencies(cfg, store, logger, ingest.NewClient(cfg), archiver), nil
}

// NewWorkerWithDependencies allows injecting collaborators (used in tests).
func NewWorkerWithDependencies(cfg *config.Config, store *ledger.Store, logger *slog.Logger, client Uploader, archiver Archiver) *Worker {
	return &Worker{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "submission"),
		client:   client,
		archiver: archiver,
	}
}

// Name identifies the stage to the scheduler.
func (w *Worker) Name() string { return ScriptName }

// Run uploads one batch of discovered documents and appends an audit row.
// A document that cannot be submitted is marked failed with the concrete
// reason and the batch moves on; the run itself fails only when the batch
// cannot be fetched or the archive bucket cannot be prepared.
func (w *Worker) Run(ctx context.Context) error {
	logger := logging.WithContext(ctx, w.logger)
	start := time.Now()
	run := ledger.Run{ScriptName: ScriptName, Status: ledger.RunSuccess}

	err := w.processBatch(ctx, logger, &run)
	if err != nil {
		run.Status = ledger.RunFail
		run.FailedReason = err.Error()
	}
	run.Duration = time.Since(start)

	if recordErr := w.store.RecordRun(context.WithoutCancel(ctx), run); recordErr != nil {
		logger.Error("record audit row", logging.Error(recordErr))
		if err == nil {
			err = recordErr
		}
	}

	if err != nil {
		logger.Error("submission pass failed", logging.Error(err), logging.Duration("elapsed", run.Duration))
		return err
	}
	if run.ProcessCount > 0 {
		logger.Info("submission pass complete",
			logging.Int("attempted", run.ProcessCount),
			logging.Int("submitted", run.UpdateCount),
			logging.Duration("elapsed", run.Duration),
		)
	}
	return nil
}

func (w *Worker) processBatch(ctx context.Context, logger *slog.Logger, run *ledger.Run) error {
	batch, err := w.store.ListByStatus(ctx, ledger.StatusDiscover, w.cfg.Submission.BatchSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	if w.archiver != nil {
		if err := w.archiver.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("prepare archive bucket: %w", err)
		}
	}
	for _, doc := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		run.ProcessCount++
		docLogger := logger.With(logging.Args(
			logging.Int64(logging.FieldDocID, doc.ID),
			logging.String(logging.FieldPath, doc.Filepath),
		)...)
		if err := w.submit(ctx, doc); err != nil {
			docLogger.Error("submission failed", logging.Error(err))
			if markErr := w.store.MarkFailed(ctx, doc.ID, err.Error()); markErr != nil {
				return markErr
			}
			continue
		}
		run.UpdateCount++
		docLogger.Info("document submitted")
	}
	return nil
}

func (w *Worker) submit(ctx context.Context, doc *ledger.Document) error {
	hash, err := fileutil.HashFile(doc.Filepath)
	if err != nil {
		return fmt.Errorf("hash file: %w", err)
	}
	storePath := ""
	if w.archiver != nil {
		storePath, err = w.archiver.Store(ctx, doc.Filepath)
		if err != nil {
			return fmt.Errorf("archive copy: %w", err)
		}
	}
	kn, err := w.client.Upload(ctx, doc.Filepath, doc.Filename)
	if err != nil {
		return err
	}
	if kn.ID == "" {
		return errors.New("ingest response missing knowledge id")
	}
	status, ok := ledger.ParseStatus(kn.ParseStatus)
	if !ok {
		status = ledger.StatusProcessing
	}
	if storePath == "" {
		storePath = kn.FilePath
	}
	return w.store.TransitionOnSubmit(ctx, doc.ID, status, kn.ID, hash, storePath)
}
