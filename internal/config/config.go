package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Endpoints contains the remote collaborators the sync engine drains into.
type Endpoints struct {
	AnalysisURL string `toml:"analysis_url"`
	ExpensesURL string `toml:"expenses_url"`
	APIToken    string `toml:"api_token"`
	// RequestTimeout bounds each remote call in seconds. Zero disables the
	// per-call timeout entirely.
	RequestTimeout int `toml:"request_timeout"`
}

// FailurePolicy names what a "try now" entry point does when the direct
// remote call fails while online.
type FailurePolicy string

const (
	// PolicyDrop returns the error to the caller without queueing.
	PolicyDrop FailurePolicy = "drop"
	// PolicyQueue enqueues the intent for a later drain before returning.
	PolicyQueue FailurePolicy = "queue"
)

// Sync contains drain policy and scheduling configuration.
type Sync struct {
	// UserID scopes all queue operations to the device owner.
	UserID string `toml:"user_id"`
	// RetryFailed requeues failed rows below MaxRetries at the start of a
	// drain. When false, a failed row is terminal until retried manually.
	RetryFailed bool `toml:"retry_failed"`
	MaxRetries  int  `toml:"max_retries"`
	// AnalysisFailurePolicy and SaveFailurePolicy control the online-failure
	// behavior of the direct entry points. The defaults are asymmetric:
	// analysis drops, save queues.
	AnalysisFailurePolicy FailurePolicy `toml:"analysis_failure_policy"`
	SaveFailurePolicy     FailurePolicy `toml:"save_failure_policy"`
	// DrainLockTimeout bounds how long a drain waits for the per-user lock
	// in seconds before giving up.
	DrainLockTimeout int `toml:"drain_lock_timeout"`
}

// Network contains connectivity monitor configuration.
type Network struct {
	// Interface restricts the netlink watcher to one interface name.
	// Empty watches every non-loopback interface.
	Interface string `toml:"interface"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for pennysync.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Endpoints: remote analysis and expense-creation endpoints
//   - Sync: drain policy, retry policy, per-user lock timeout
//   - Network: connectivity monitor settings
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Endpoints Endpoints `toml:"endpoints"`
	Sync      Sync      `toml:"sync"`
	Network   Network   `toml:"network"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/pennysync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pennysync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the engine writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// QueueDatabasePath returns the SQLite database location for this config.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// WriteSample writes the annotated sample configuration to the target path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", trimmed, err)
	}
	return abs, nil
}
