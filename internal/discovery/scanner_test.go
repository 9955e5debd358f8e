package discovery_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docbridge/internal/discovery"
	"docbridge/internal/ledger"
	"docbridge/internal/logging"
	"docbridge/internal/testsupport"
)

type fakeDeleter struct {
	calls []string
	err   error
}

func (f *fakeDeleter) Delete(_ context.Context, knowledgeID string) error {
	f.calls = append(f.calls, knowledgeID)
	return f.err
}

func TestRunRegistersEligibleFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinFileSize(1024))
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)

	testsupport.WriteFile(t, filepath.Join(root, "contract.pdf"), 2048)
	testsupport.WriteFile(t, filepath.Join(root, "nested", "notes.MD"), 4096)
	testsupport.WriteFile(t, filepath.Join(root, "ignore.tmp"), 2048)
	testsupport.WriteFile(t, filepath.Join(root, "tiny.pdf"), 10)

	deleter := &fakeDeleter{}
	scanner := discovery.NewScannerWithDependencies(cfg, store, logging.NewNop(), deleter)
	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	docs, err := store.ListByStatus(context.Background(), ledger.StatusDiscover, 0)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 discovered documents, got %d", len(docs))
	}
	paths := map[string]bool{}
	for _, doc := range docs {
		paths[doc.Filepath] = true
	}
	if !paths[filepath.Join(root, "contract.pdf")] || !paths[filepath.Join(root, "nested", "notes.MD")] {
		t.Fatalf("unexpected discovered paths: %v", paths)
	}
	if len(deleter.calls) != 0 {
		t.Fatalf("no remote deletes expected, got %v", deleter.calls)
	}

	runs, err := store.RecentRuns(context.Background(), discovery.ScriptName, 1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one audit row, got %d", len(runs))
	}
	if runs[0].InsertCount != 2 || runs[0].ProcessCount != 2 || runs[0].Status != ledger.RunSuccess {
		t.Fatalf("unexpected audit row: %+v", runs[0])
	}
}

func TestRunIdempotentWhenNothingChanged(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)
	testsupport.WriteFile(t, filepath.Join(root, "report.docx"), 512)

	scanner := discovery.NewScannerWithDependencies(cfg, store, logging.NewNop(), &fakeDeleter{})
	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	runs, err := store.RecentRuns(context.Background(), discovery.ScriptName, 1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if runs[0].InsertCount != 0 || runs[0].UpdateCount != 0 || runs[0].DeleteCount != 0 {
		t.Fatalf("second run should be a no-op, got %+v", runs[0])
	}
}

func TestRunResetsChangedFileAndDropsStaleKnowledge(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)
	path := filepath.Join(root, "handbook.pdf")
	testsupport.WriteFile(t, path, 512)

	deleter := &fakeDeleter{}
	scanner := discovery.NewScannerWithDependencies(cfg, store, logging.NewNop(), deleter)
	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("initial Run: %v", err)
	}

	doc, err := store.GetByPath(context.Background(), path)
	if err != nil || doc == nil {
		t.Fatalf("GetByPath: doc=%v err=%v", doc, err)
	}
	if err := store.TransitionOnSubmit(context.Background(), doc.ID, ledger.StatusProcessing, "kn-old", "hash", "store/handbook.pdf"); err != nil {
		t.Fatalf("TransitionOnSubmit: %v", err)
	}
	if err := store.Finalize(context.Background(), doc.ID, ledger.StatusCompleted, ""); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	testsupport.WriteFile(t, path, 1024)
	testsupport.Touch(t, path, time.Now().Add(time.Minute))
	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("rescan: %v", err)
	}

	doc, err = store.GetByPath(context.Background(), path)
	if err != nil {
		t.Fatalf("GetByPath after rescan: %v", err)
	}
	if doc.Status != ledger.StatusDiscover {
		t.Fatalf("expected reset to discover, got %s", doc.Status)
	}
	if doc.KnowledgeID != "" {
		t.Fatalf("expected knowledge id cleared, got %q", doc.KnowledgeID)
	}
	if len(deleter.calls) != 1 || deleter.calls[0] != "kn-old" {
		t.Fatalf("expected stale knowledge delete for kn-old, got %v", deleter.calls)
	}

	runs, err := store.RecentRuns(context.Background(), discovery.ScriptName, 1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if runs[0].UpdateCount != 1 {
		t.Fatalf("expected one update in audit row, got %+v", runs[0])
	}
}

func TestRunDefersChangeWhileProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)
	path := filepath.Join(root, "pending.xlsx")
	testsupport.WriteFile(t, path, 256)

	deleter := &fakeDeleter{}
	scanner := discovery.NewScannerWithDependencies(cfg, store, logging.NewNop(), deleter)
	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("initial Run: %v", err)
	}
	doc, err := store.GetByPath(context.Background(), path)
	if err != nil || doc == nil {
		t.Fatalf("GetByPath: doc=%v err=%v", doc, err)
	}
	if err := store.TransitionOnSubmit(context.Background(), doc.ID, ledger.StatusProcessing, "kn-busy", "hash", ""); err != nil {
		t.Fatalf("TransitionOnSubmit: %v", err)
	}

	testsupport.WriteFile(t, path, 999)
	testsupport.Touch(t, path, time.Now().Add(time.Minute))
	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("rescan: %v", err)
	}

	doc, err = store.GetByPath(context.Background(), path)
	if err != nil {
		t.Fatalf("GetByPath after rescan: %v", err)
	}
	if doc.Status != ledger.StatusProcessing || doc.KnowledgeID != "kn-busy" {
		t.Fatalf("in-flight document must stay untouched, got %+v", doc)
	}
	if len(deleter.calls) != 0 {
		t.Fatalf("deferred change must not delete remote knowledge, got %v", deleter.calls)
	}
}

func TestRunRemovesVanishedFileAfterRemoteDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)
	path := filepath.Join(root, "obsolete.csv")
	testsupport.WriteFile(t, path, 128)

	deleter := &fakeDeleter{}
	scanner := discovery.NewScannerWithDependencies(cfg, store, logging.NewNop(), deleter)
	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("initial Run: %v", err)
	}
	doc, err := store.GetByPath(context.Background(), path)
	if err != nil || doc == nil {
		t.Fatalf("GetByPath: doc=%v err=%v", doc, err)
	}
	if err := store.TransitionOnSubmit(context.Background(), doc.ID, ledger.StatusProcessing, "kn-gone", "hash", ""); err != nil {
		t.Fatalf("TransitionOnSubmit: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("rescan: %v", err)
	}

	doc, err = store.GetByPath(context.Background(), path)
	if err != nil {
		t.Fatalf("GetByPath after rescan: %v", err)
	}
	if doc.Status != ledger.StatusDeleted {
		t.Fatalf("expected deleted, got %s", doc.Status)
	}
	if doc.FinishAt == nil {
		t.Fatal("expected finish timestamp on deleted document")
	}
	if len(deleter.calls) != 1 || deleter.calls[0] != "kn-gone" {
		t.Fatalf("expected remote delete of kn-gone, got %v", deleter.calls)
	}

	runs, err := store.RecentRuns(context.Background(), discovery.ScriptName, 1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if runs[0].DeleteCount != 1 {
		t.Fatalf("expected one delete in audit row, got %+v", runs[0])
	}
}

func TestRunKeepsRecordWhenRemoteDeleteFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)
	path := filepath.Join(root, "stuck.pdf")
	testsupport.WriteFile(t, path, 128)

	deleter := &fakeDeleter{err: errors.New("gateway timeout")}
	scanner := discovery.NewScannerWithDependencies(cfg, store, logging.NewNop(), deleter)
	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("initial Run: %v", err)
	}
	doc, err := store.GetByPath(context.Background(), path)
	if err != nil || doc == nil {
		t.Fatalf("GetByPath: doc=%v err=%v", doc, err)
	}
	if err := store.TransitionOnSubmit(context.Background(), doc.ID, ledger.StatusPending, "kn-stuck", "hash", ""); err != nil {
		t.Fatalf("TransitionOnSubmit: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("rescan with failing delete: %v", err)
	}

	doc, err = store.GetByPath(context.Background(), path)
	if err != nil {
		t.Fatalf("GetByPath after failed delete: %v", err)
	}
	if doc.Status != ledger.StatusPending {
		t.Fatalf("record must stay put until remote delete succeeds, got %s", doc.Status)
	}

	deleter.err = nil
	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("rescan after outage: %v", err)
	}
	doc, err = store.GetByPath(context.Background(), path)
	if err != nil {
		t.Fatalf("GetByPath after recovery: %v", err)
	}
	if doc.Status != ledger.StatusDeleted {
		t.Fatalf("expected deleted after recovery, got %s", doc.Status)
	}
	if len(deleter.calls) != 2 {
		t.Fatalf("expected delete attempted on both passes, got %v", deleter.calls)
	}
}

func TestRunFailsWhenRootUnreachable(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRoots(filepath.Join(t.TempDir(), "absent")))
	store := testsupport.MustOpenStore(t, cfg)

	scanner := discovery.NewScannerWithDependencies(cfg, store, logging.NewNop(), &fakeDeleter{})
	err := scanner.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for unreachable root")
	}

	runs, recErr := store.RecentRuns(context.Background(), discovery.ScriptName, 1)
	if recErr != nil {
		t.Fatalf("RecentRuns: %v", recErr)
	}
	if len(runs) != 1 {
		t.Fatalf("expected failed audit row, got %d rows", len(runs))
	}
	if runs[0].Status != ledger.RunFail || runs[0].FailedReason == "" {
		t.Fatalf("expected fail status with reason, got %+v", runs[0])
	}
}
