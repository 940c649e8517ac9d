// Command pennysync is the CLI entry point for the offline-first expense
// sync engine. It runs the background daemon, drains the queue on demand,
// inspects queued rows, and provides direct analyze/save entry points that
// fall back to the queue when the device is offline.
package main
