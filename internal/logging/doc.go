// Package logging builds the slog loggers used across pennysync and defines
// the standardized attribute keys components log with.
package logging
