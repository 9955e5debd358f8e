package testsupport

import (
	"context"
	"testing"
	"time"

	"docbridge/internal/config"
	"docbridge/internal/ledger"
)

// MustOpenStore opens a ledger.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SeedDocument registers a path with the store as discovery would and returns
// the resulting record.
func SeedDocument(t testing.TB, store *ledger.Store, path string, size int64, modified time.Time) *ledger.Document {
	t.Helper()

	ctx := context.Background()
	if _, err := store.UpsertDiscovered(ctx, path, size, modified); err != nil {
		t.Fatalf("UpsertDiscovered %s: %v", path, err)
	}
	doc, err := store.GetByPath(ctx, path)
	if err != nil {
		t.Fatalf("GetByPath %s: %v", path, err)
	}
	if doc == nil {
		t.Fatalf("GetByPath %s: no document", path)
	}
	return doc
}
