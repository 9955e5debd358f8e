package testsupport

import (
	"path/filepath"
	"testing"

	"docbridge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Discovery.Roots = []string{filepath.Join(base, "docs")}
	cfgVal.Discovery.MinFileSize = 0
	cfgVal.Ingest.BaseURL = "http://ingest.test"
	cfgVal.Ingest.APIKey = "test-key"
	cfgVal.Ingest.KnowledgeBaseID = "kb-test"
	cfgVal.Polling.RequestDelayMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRoots replaces the discovery roots on the test config.
func WithRoots(roots ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Discovery.Roots = roots
	}
}

// WithMinFileSize sets the discovery size threshold on the test config.
func WithMinFileSize(size int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Discovery.MinFileSize = size
	}
}

// WithIngestURL points the test config at the given ingestion endpoint,
// typically an httptest server URL.
func WithIngestURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.BaseURL = url
	}
}

// WithBatchSize sets both the submission and polling batch sizes.
func WithBatchSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Submission.BatchSize = size
		b.cfg.Polling.BatchSize = size
	}
}

// DocsRoot returns the first discovery root of a config built by NewConfig.
func DocsRoot(cfg *config.Config) string {
	if len(cfg.Discovery.Roots) == 0 {
		return ""
	}
	return cfg.Discovery.Roots[0]
}
