package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"docbridge/internal/config"
	"docbridge/internal/logging"
	"docbridge/internal/notify"
)

// Stage is one idempotent pipeline pass, re-run on a timer by the manager.
// Implementations record their own audit rows; the manager only schedules
// and alerts.
type Stage interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	stage    Stage
	interval time.Duration
}

// Manager runs registered stages on their own cadences and enforces
// single-instance execution through a lock file.
type Manager struct {
	logger   *slog.Logger
	notifier notify.Service
	entries  []entry

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a scheduler whose lock file lives in the data
// directory next to the ledger database.
func NewManager(cfg *config.Config, logger *slog.Logger, notifier notify.Service) *Manager {
	if notifier == nil {
		notifier = notify.NewService(cfg)
	}
	lockPath := cfg.LockPath()
	return &Manager{
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
}

// Register adds a stage to the schedule. Stages run once immediately at
// startup and then once per interval.
func (m *Manager) Register(stage Stage, interval time.Duration) error {
	if stage == nil {
		return errors.New("stage is required")
	}
	if interval <= 0 {
		return fmt.Errorf("stage %s requires a positive interval", stage.Name())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("cannot register stages while running")
	}
	m.entries = append(m.entries, entry{stage: stage, interval: interval})
	return nil
}

// LockPath returns the instance lock file location.
func (m *Manager) LockPath() string { return m.lockPath }

// Start acquires the instance lock and launches one timer loop per stage.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("scheduler already running")
	}
	if len(m.entries) == 0 {
		return errors.New("no stages registered")
	}

	ok, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another docbridge daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(len(m.entries))
	for _, e := range m.entries {
		go m.runStage(runCtx, e)
	}
	m.logger.Info("scheduler started",
		logging.Int("stages", len(m.entries)),
		logging.String("lock", m.lockPath))
	return nil
}

// Stop terminates the timer loops, waits for in-flight passes, and releases
// the instance lock.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	if err := m.lock.Unlock(); err != nil {
		m.logger.Warn("release scheduler lock", logging.Error(err))
	}
	m.logger.Info("scheduler stopped")
}

func (m *Manager) runStage(ctx context.Context, e entry) {
	defer m.wg.Done()

	m.execute(ctx, e.stage)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.execute(ctx, e.stage)
		}
	}
}

// execute runs one pass under a fresh correlation id. Stage errors already
// live in the audit table, so here they only feed alerting.
func (m *Manager) execute(ctx context.Context, stage Stage) {
	if ctx.Err() != nil {
		return
	}
	runCtx := logging.ContextWithRunID(ctx, uuid.NewString())
	runCtx = logging.ContextWithStage(runCtx, stage.Name())
	if err := stage.Run(runCtx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if notifyErr := m.notifier.RunFailed(context.WithoutCancel(runCtx), stage.Name(), err); notifyErr != nil {
			m.logger.Warn("deliver failure alert", logging.Error(notifyErr))
		}
	}
}
