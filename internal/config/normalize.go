package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEndpoints()
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEndpoints() {
	c.Endpoints.AnalysisURL = strings.TrimRight(strings.TrimSpace(c.Endpoints.AnalysisURL), "/")
	c.Endpoints.ExpensesURL = strings.TrimRight(strings.TrimSpace(c.Endpoints.ExpensesURL), "/")
	if token := os.Getenv("PENNYSYNC_API_TOKEN"); token != "" {
		c.Endpoints.APIToken = token
	}
	if c.Endpoints.RequestTimeout < 0 {
		c.Endpoints.RequestTimeout = 0
	}
}

func (c *Config) normalizeSync() {
	c.Sync.UserID = strings.TrimSpace(c.Sync.UserID)
	c.Sync.AnalysisFailurePolicy = FailurePolicy(strings.ToLower(strings.TrimSpace(string(c.Sync.AnalysisFailurePolicy))))
	c.Sync.SaveFailurePolicy = FailurePolicy(strings.ToLower(strings.TrimSpace(string(c.Sync.SaveFailurePolicy))))
	if c.Sync.AnalysisFailurePolicy == "" {
		c.Sync.AnalysisFailurePolicy = PolicyDrop
	}
	if c.Sync.SaveFailurePolicy == "" {
		c.Sync.SaveFailurePolicy = PolicyQueue
	}
	if c.Sync.MaxRetries <= 0 {
		c.Sync.MaxRetries = defaultMaxRetries
	}
	if c.Sync.DrainLockTimeout <= 0 {
		c.Sync.DrainLockTimeout = defaultDrainLockTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
