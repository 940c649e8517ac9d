package testsupport

import (
	"path/filepath"
	"testing"

	"pennysync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Endpoints.AnalysisURL = "http://127.0.0.1:0/analyze"
	cfg.Endpoints.ExpensesURL = "http://127.0.0.1:0/expenses"
	cfg.Sync.UserID = "test-user"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithUserID overrides the queue owner on the test config.
func WithUserID(userID string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sync.UserID = userID
	}
}

// WithEndpoints points the remote endpoints at a test server.
func WithEndpoints(analysisURL, expensesURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Endpoints.AnalysisURL = analysisURL
		cfg.Endpoints.ExpensesURL = expensesURL
	}
}

// WithRetryFailed enables the drain-time requeue of failed rows.
func WithRetryFailed(max int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sync.RetryFailed = true
		cfg.Sync.MaxRetries = max
	}
}
