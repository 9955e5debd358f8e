package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docbridge/internal/config"
	"docbridge/internal/ingest"
	"docbridge/internal/ledger"
	"docbridge/internal/logging"
)

// ScriptName identifies discovery runs in the audit trail.
const ScriptName = "discover"

// allowedExtensions lists the document types worth submitting for ingestion.
var allowedExtensions = map[string]struct{}{
	".pdf":      {},
	".doc":      {},
	".docx":     {},
	".md":       {},
	".markdown": {},
	".txt":      {},
	".xlsx":     {},
	".xls":      {},
	".csv":      {},
	".jpg":      {},
	".jpeg":     {},
	".png":      {},
	".gif":      {},
}

// KnowledgeDeleter removes knowledge entries from the external system before
// the ledger forgets about them.
type KnowledgeDeleter interface {
	Delete(ctx context.Context, knowledgeID string) error
}

// Scanner reconciles the filesystem under the configured roots with the
// ledger: new files are registered, changed files are reset for
// resubmission, and vanished files are marked deleted once their remote
// knowledge entry is gone.
type Scanner struct {
	cfg     *config.Config
	store   *ledger.Store
	logger  *slog.Logger
	deleter KnowledgeDeleter
}

// NewScanner constructs the discovery stage with default dependencies.
func NewScanner(cfg *config.Config, store *ledger.Store, logger *slog.Logger) *Scanner {
	return NewScannerWithDependencies(cfg, store, logger, ingest.NewClient(cfg))
}

// NewScannerWithDependencies allows injecting collaborators (used in tests).
func NewScannerWithDependencies(cfg *config.Config, store *ledger.Store, logger *slog.Logger, deleter KnowledgeDeleter) *Scanner {
	return &Scanner{
		cfg:     cfg,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "discovery"),
		deleter: deleter,
	}
}

// Name identifies the stage to the scheduler.
func (s *Scanner) Name() string { return ScriptName }

// Run executes one reconciliation pass and appends an audit row. The run
// fails only when reconciliation itself cannot complete; per-file problems
// are logged and picked up again on a later pass.
func (s *Scanner) Run(ctx context.Context) error {
	logger := logging.WithContext(ctx, s.logger)
	start := time.Now()
	run := ledger.Run{ScriptName: ScriptName, Status: ledger.RunSuccess}

	err := s.reconcile(ctx, logger, &run)
	if err != nil {
		run.Status = ledger.RunFail
		run.FailedReason = err.Error()
	}
	run.Duration = time.Since(start)
	run.ProcessCount = run.InsertCount + run.UpdateCount + run.DeleteCount

	if recordErr := s.store.RecordRun(context.WithoutCancel(ctx), run); recordErr != nil {
		logger.Error("record audit row", logging.Error(recordErr))
		if err == nil {
			err = recordErr
		}
	}

	if err != nil {
		logger.Error("scan failed", logging.Error(err), logging.Duration("elapsed", run.Duration))
		return err
	}
	logger.Info("scan complete",
		logging.Int("inserted", run.InsertCount),
		logging.Int("updated", run.UpdateCount),
		logging.Int("deleted", run.DeleteCount),
		logging.Duration("elapsed", run.Duration),
	)
	return nil
}

func (s *Scanner) reconcile(ctx context.Context, logger *slog.Logger, run *ledger.Run) error {
	current, err := s.scanRoots(ctx, logger)
	if err != nil {
		return err
	}
	known, err := s.store.SnapshotActive(ctx)
	if err != nil {
		return err
	}

	for path, observed := range current {
		outcome, err := s.store.UpsertDiscovered(ctx, path, observed.size, observed.modified)
		if err != nil {
			return err
		}
		switch outcome {
		case ledger.OutcomeInserted:
			run.InsertCount++
			logger.Info("new document",
				logging.String(logging.FieldPath, path),
				logging.Int64("size", observed.size))
		case ledger.OutcomeUpdated:
			run.UpdateCount++
			logger.Info("document changed", logging.String(logging.FieldPath, path))
			// The reset row no longer references the old knowledge entry, so
			// drop the remote copy. Failures are retried by the poller noticing
			// the orphan, not by this run.
			if prior := known[path]; prior != nil && prior.KnowledgeID != "" {
				if err := s.deleter.Delete(ctx, prior.KnowledgeID); err != nil {
					logger.Warn("delete superseded knowledge",
						logging.String(logging.FieldKnowledgeID, prior.KnowledgeID),
						logging.Error(err))
				}
			}
		case ledger.OutcomeDeferred:
			logger.Info("change deferred, document in flight",
				logging.String(logging.FieldPath, path))
		}
	}

	for path, doc := range known {
		if _, onDisk := current[path]; onDisk {
			continue
		}
		// Remote delete must succeed (or report not-found) before the ledger
		// forgets the file; otherwise the record stays and is reconsidered on
		// the next pass.
		if doc.KnowledgeID != "" {
			if err := s.deleter.Delete(ctx, doc.KnowledgeID); err != nil {
				logger.Warn("deferring removal, remote delete failed",
					logging.String(logging.FieldPath, path),
					logging.String(logging.FieldKnowledgeID, doc.KnowledgeID),
					logging.Error(err))
				continue
			}
		}
		if err := s.store.MarkDeleted(ctx, path); err != nil {
			return err
		}
		run.DeleteCount++
		logger.Info("document removed", logging.String(logging.FieldPath, path))
	}
	return nil
}

type observation struct {
	size     int64
	modified time.Time
}

func (s *Scanner) scanRoots(ctx context.Context, logger *slog.Logger) (map[string]observation, error) {
	found := make(map[string]observation)
	for _, root := range s.cfg.Discovery.Roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("enumerate root %s: %w", root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("enumerate root %s: not a directory", root)
		}
		walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if path == root {
					return err
				}
				logger.Warn("skip unreadable path",
					logging.String(logging.FieldPath, path),
					logging.Error(err))
				if entry != nil && entry.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if entry.IsDir() {
				return nil
			}
			if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
				return nil
			}
			fileInfo, err := entry.Info()
			if err != nil {
				logger.Warn("stat file",
					logging.String(logging.FieldPath, path),
					logging.Error(err))
				return nil
			}
			if fileInfo.Size() < s.cfg.Discovery.MinFileSize {
				return nil
			}
			found[path] = observation{size: fileInfo.Size(), modified: fileInfo.ModTime()}
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("enumerate root %s: %w", root, walkErr)
		}
	}
	return found, nil
}
