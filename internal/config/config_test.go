package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pennysync/internal/config"
)

func validConfigTOML() string {
	return strings.Join([]string{
		`[endpoints]`,
		`analysis_url = "https://finance.example.com/api/analyze"`,
		`expenses_url = "https://finance.example.com/api/expenses"`,
		``,
		`[sync]`,
		`user_id = "u1"`,
	}, "\n")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, validConfigTOML())

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved path %s to exist, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Sync.MaxRetries != 5 {
		t.Fatalf("expected default max_retries 5, got %d", cfg.Sync.MaxRetries)
	}
	if cfg.Sync.AnalysisFailurePolicy != config.PolicyDrop {
		t.Fatalf("expected default analysis policy drop, got %q", cfg.Sync.AnalysisFailurePolicy)
	}
	if cfg.Sync.SaveFailurePolicy != config.PolicyQueue {
		t.Fatalf("expected default save policy queue, got %q", cfg.Sync.SaveFailurePolicy)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("expected data dir to be expanded, got %s", cfg.Paths.DataDir)
	}
}

func TestLoadRejectsMissingUserID(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		`[endpoints]`,
		`analysis_url = "https://finance.example.com/api/analyze"`,
		`expenses_url = "https://finance.example.com/api/expenses"`,
	}, "\n"))

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for missing sync.user_id")
	}
}

func TestLoadRejectsBadEndpointScheme(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		`[endpoints]`,
		`analysis_url = "ftp://finance.example.com/api/analyze"`,
		`expenses_url = "https://finance.example.com/api/expenses"`,
		``,
		`[sync]`,
		`user_id = "u1"`,
	}, "\n"))

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for non-http endpoint scheme")
	}
}

func TestLoadRejectsUnknownFailurePolicy(t *testing.T) {
	path := writeConfig(t, validConfigTOML()+"\n"+`save_failure_policy = "retry"`)

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown failure policy")
	}
}

func TestEnvTokenOverridesConfig(t *testing.T) {
	t.Setenv("PENNYSYNC_API_TOKEN", "env-token")
	path := writeConfig(t, validConfigTOML()+"\n"+`api_token = "file-token"`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Endpoints.APIToken != "env-token" {
		t.Fatalf("expected env token to win, got %q", cfg.Endpoints.APIToken)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when sample config already exists")
	}
}
