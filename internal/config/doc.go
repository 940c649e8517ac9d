// Package config loads, validates, and normalizes pennysync configuration.
//
// Configuration is TOML with a well-known default location
// (~/.config/pennysync/config.toml) and a project-local fallback
// (pennysync.toml). Defaults cover everything except the remote endpoints
// and the owning user id, which must be set explicitly. Path fields are
// expanded (~ and relative paths) during Load so downstream code never
// deals with unexpanded values.
package config
