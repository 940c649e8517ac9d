package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEndpoints() error {
	if c.Endpoints.AnalysisURL == "" {
		return errors.New("endpoints.analysis_url is required (run 'pennysync config init' to create a config)")
	}
	if err := validateURL("endpoints.analysis_url", c.Endpoints.AnalysisURL); err != nil {
		return err
	}
	if c.Endpoints.ExpensesURL == "" {
		return errors.New("endpoints.expenses_url is required")
	}
	if err := validateURL("endpoints.expenses_url", c.Endpoints.ExpensesURL); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.UserID == "" {
		return errors.New("sync.user_id must be set")
	}
	switch c.Sync.AnalysisFailurePolicy {
	case PolicyDrop, PolicyQueue:
	default:
		return fmt.Errorf("sync.analysis_failure_policy must be %q or %q", PolicyDrop, PolicyQueue)
	}
	switch c.Sync.SaveFailurePolicy {
	case PolicyDrop, PolicyQueue:
	default:
		return fmt.Errorf("sync.save_failure_policy must be %q or %q", PolicyDrop, PolicyQueue)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func validateURL(field, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http or https URL", field)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return fmt.Errorf("%s is missing a host", field)
	}
	return nil
}
