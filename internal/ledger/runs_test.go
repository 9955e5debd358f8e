package ledger_test

import (
	"context"
	"testing"
	"time"

	"docbridge/internal/ledger"
	"docbridge/internal/testsupport"
)

func TestRecordRunRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if err := store.RecordRun(ctx, ledger.Run{
		ScriptName:   "discover",
		Duration:     1500 * time.Millisecond,
		ProcessCount: 12,
		InsertCount:  3,
		UpdateCount:  2,
		DeleteCount:  1,
		Status:       ledger.RunSuccess,
	}); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := store.RecordRun(ctx, ledger.Run{
		ScriptName:   "submit",
		Duration:     200 * time.Millisecond,
		Status:       ledger.RunFail,
		FailedReason: "list documents: database is locked",
	}); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	runs, err := store.RecentRuns(ctx, "", 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ScriptName != "submit" {
		t.Fatalf("expected newest run first, got %q", runs[0].ScriptName)
	}
	if runs[0].Status != ledger.RunFail || runs[0].FailedReason == "" {
		t.Fatalf("failure details not persisted: %#v", runs[0])
	}

	discover := runs[1]
	if discover.ProcessCount != 12 || discover.InsertCount != 3 || discover.UpdateCount != 2 || discover.DeleteCount != 1 {
		t.Fatalf("counts not persisted: %#v", discover)
	}
	if discover.Duration != 1500*time.Millisecond {
		t.Fatalf("expected duration 1.5s, got %v", discover.Duration)
	}
	if discover.Timestamp.IsZero() {
		t.Fatal("expected timestamp to default to now")
	}

	filtered, err := store.RecentRuns(ctx, "discover", 10)
	if err != nil {
		t.Fatalf("RecentRuns filtered failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ScriptName != "discover" {
		t.Fatalf("unexpected filtered runs: %#v", filtered)
	}
}

func TestStatsCountsByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.SeedDocument(t, store, "/srv/docs/a.pdf", 100, time.Now())
	b := testsupport.SeedDocument(t, store, "/srv/docs/b.pdf", 100, time.Now())
	testsupport.SeedDocument(t, store, "/srv/docs/c.pdf", 100, time.Now())

	if err := store.TransitionOnSubmit(ctx, a.ID, ledger.StatusPending, "kn-a", "h", ""); err != nil {
		t.Fatalf("TransitionOnSubmit failed: %v", err)
	}
	if err := store.Finalize(ctx, b.ID, ledger.StatusFailed, "boom"); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("expected 3 total, got %d", stats.Total)
	}
	if stats.Discover != 1 || stats.Pending != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestCheckHealthReportsIntactDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedDocument(t, store, "/srv/docs/a.pdf", 100, time.Now())

	health := ledger.CheckHealth(context.Background(), cfg.DatabasePath())
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("expected healthy database, got %#v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("unexpected missing columns: %v", health.MissingColumns)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
	if health.TotalDocuments != 1 {
		t.Fatalf("expected 1 document, got %d", health.TotalDocuments)
	}
}

func TestCheckHealthMissingDatabase(t *testing.T) {
	health := ledger.CheckHealth(context.Background(), "/nonexistent/docbridge.db")
	if health.DatabaseExists {
		t.Fatal("expected missing database to be reported")
	}
	if health.Error == "" {
		t.Fatal("expected an error description")
	}
}
