package polling_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"docbridge/internal/ingest"
	"docbridge/internal/ledger"
	"docbridge/internal/logging"
	"docbridge/internal/polling"
	"docbridge/internal/testsupport"
)

type fakeChecker struct {
	responses map[string]*ingest.Knowledge
	errs      map[string]error
	calls     []string
}

func (f *fakeChecker) Status(_ context.Context, knowledgeID string) (*ingest.Knowledge, error) {
	f.calls = append(f.calls, knowledgeID)
	if err, ok := f.errs[knowledgeID]; ok {
		return nil, err
	}
	if kn, ok := f.responses[knowledgeID]; ok {
		return kn, nil
	}
	return nil, ingest.ErrNotFound
}

func seedInFlight(t *testing.T, store *ledger.Store, root, name, knowledgeID string, status ledger.Status) *ledger.Document {
	t.Helper()
	path := filepath.Join(root, name)
	doc := testsupport.SeedDocument(t, store, path, 64, time.Now())
	if err := store.TransitionOnSubmit(context.Background(), doc.ID, status, knowledgeID, "hash-"+name, ""); err != nil {
		t.Fatalf("TransitionOnSubmit: %v", err)
	}
	reloaded, err := store.GetByID(context.Background(), doc.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("GetByID: doc=%v err=%v", reloaded, err)
	}
	return reloaded
}

func TestRunFinalizesCompletedParse(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)

	doc := seedInFlight(t, store, root, "done.pdf", "kn-done", ledger.StatusProcessing)
	checker := &fakeChecker{responses: map[string]*ingest.Knowledge{
		"kn-done": {ID: "kn-done", ParseStatus: "completed"},
	}}

	poller := polling.NewPollerWithDependencies(cfg, store, logging.NewNop(), checker)
	if err := poller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := store.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.FinishAt == nil {
		t.Fatal("expected finish timestamp")
	}
	if got.FailedMsg != "" {
		t.Fatalf("completed document must not carry a failure reason, got %q", got.FailedMsg)
	}

	runs, err := store.RecentRuns(context.Background(), polling.ScriptName, 1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if runs[0].ProcessCount != 1 || runs[0].UpdateCount != 1 || runs[0].Status != ledger.RunSuccess {
		t.Fatalf("unexpected audit row: %+v", runs[0])
	}
}

func TestRunRecordsRemoteParseFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)

	detailed := seedInFlight(t, store, root, "bad.pdf", "kn-bad", ledger.StatusProcessing)
	silent := seedInFlight(t, store, root, "mute.pdf", "kn-mute", ledger.StatusProcessing)
	checker := &fakeChecker{responses: map[string]*ingest.Knowledge{
		"kn-bad":  {ID: "kn-bad", ParseStatus: "failed", ErrorMessage: "ocr crashed"},
		"kn-mute": {ID: "kn-mute", ParseStatus: "failed"},
	}}

	poller := polling.NewPollerWithDependencies(cfg, store, logging.NewNop(), checker)
	if err := poller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := store.GetByID(context.Background(), detailed.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != ledger.StatusFailed || got.FailedMsg != "ocr crashed" {
		t.Fatalf("expected remote reason preserved, got %+v", got)
	}
	if got.FinishAt == nil {
		t.Fatal("expected finish timestamp on failed document")
	}

	got, err = store.GetByID(context.Background(), silent.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FailedMsg != "Unknown error" {
		t.Fatalf("expected placeholder reason, got %q", got.FailedMsg)
	}
}

func TestRunLeavesDocumentsDuringOutage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)

	doc := seedInFlight(t, store, root, "wait.pdf", "kn-wait", ledger.StatusProcessing)
	checker := &fakeChecker{errs: map[string]error{
		"kn-wait": ingest.ErrTransient,
	}}

	poller := polling.NewPollerWithDependencies(cfg, store, logging.NewNop(), checker)
	if err := poller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := store.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != ledger.StatusProcessing || got.KnowledgeID != "kn-wait" {
		t.Fatalf("document must stay untouched during outages, got %+v", got)
	}

	runs, err := store.RecentRuns(context.Background(), polling.ScriptName, 1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if runs[0].ProcessCount != 1 || runs[0].UpdateCount != 0 || runs[0].Status != ledger.RunSuccess {
		t.Fatalf("outage must not fail the run, got %+v", runs[0])
	}
}

func TestRunFailsVanishedKnowledge(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)

	doc := seedInFlight(t, store, root, "ghost.pdf", "kn-ghost", ledger.StatusPending)
	checker := &fakeChecker{} // every id resolves to not found

	poller := polling.NewPollerWithDependencies(cfg, store, logging.NewNop(), checker)
	if err := poller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := store.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != ledger.StatusFailed || got.FailedMsg != "external record not found" {
		t.Fatalf("expected vanished entry to fail the document, got %+v", got)
	}
}

func TestRunFailsRowsWithoutKnowledgeID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)

	doc := testsupport.SeedDocument(t, store, filepath.Join(root, "orphan.pdf"), 64, time.Now())
	if err := store.UpdateStatus(context.Background(), doc.ID, ledger.StatusPending); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	checker := &fakeChecker{}
	poller := polling.NewPollerWithDependencies(cfg, store, logging.NewNop(), checker)
	if err := poller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := store.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != ledger.StatusFailed || got.FailedMsg != "missing knowledge id" {
		t.Fatalf("expected orphan row failed, got %+v", got)
	}
	if len(checker.calls) != 0 {
		t.Fatalf("no remote call expected for rows without knowledge id, got %v", checker.calls)
	}
}

func TestRunAdvancesPendingToProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)

	moving := seedInFlight(t, store, root, "moving.pdf", "kn-moving", ledger.StatusPending)
	steady := seedInFlight(t, store, root, "steady.pdf", "kn-steady", ledger.StatusProcessing)
	checker := &fakeChecker{responses: map[string]*ingest.Knowledge{
		"kn-moving": {ID: "kn-moving", ParseStatus: "processing"},
		"kn-steady": {ID: "kn-steady", ParseStatus: "processing"},
	}}

	poller := polling.NewPollerWithDependencies(cfg, store, logging.NewNop(), checker)
	if err := poller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := store.GetByID(context.Background(), moving.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != ledger.StatusProcessing {
		t.Fatalf("expected pending row to advance, got %s", got.Status)
	}
	if got.FinishAt != nil {
		t.Fatal("non-terminal advance must not stamp finish time")
	}

	got, err = store.GetByID(context.Background(), steady.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != ledger.StatusProcessing {
		t.Fatalf("expected steady row untouched, got %s", got.Status)
	}

	runs, err := store.RecentRuns(context.Background(), polling.ScriptName, 1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if runs[0].ProcessCount != 2 || runs[0].UpdateCount != 1 {
		t.Fatalf("expected one settled of two polled, got %+v", runs[0])
	}
}

func TestRunSkipsUnexpectedRemoteStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)

	doc := seedInFlight(t, store, root, "odd.pdf", "kn-odd", ledger.StatusProcessing)
	checker := &fakeChecker{responses: map[string]*ingest.Knowledge{
		"kn-odd": {ID: "kn-odd", ParseStatus: "deleting"},
	}}

	poller := polling.NewPollerWithDependencies(cfg, store, logging.NewNop(), checker)
	if err := poller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := store.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != ledger.StatusProcessing {
		t.Fatalf("unexpected remote status must leave the row alone, got %s", got.Status)
	}
}

func TestRunPacesStatusRequests(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Polling.RequestDelayMS = 25
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.DocsRoot(cfg)

	responses := map[string]*ingest.Knowledge{}
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		doc := seedInFlight(t, store, root, name, "kn-"+name, ledger.StatusProcessing)
		responses[doc.KnowledgeID] = &ingest.Knowledge{ID: doc.KnowledgeID, ParseStatus: "processing"}
	}

	checker := &fakeChecker{responses: responses}
	poller := polling.NewPollerWithDependencies(cfg, store, logging.NewNop(), checker)

	start := time.Now()
	if err := poller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("expected pacing between three requests, finished in %v", elapsed)
	}
	if len(checker.calls) != 3 {
		t.Fatalf("expected three status calls, got %v", checker.calls)
	}
}
