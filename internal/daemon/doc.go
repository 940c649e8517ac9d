// Package daemon coordinates the long-running pennysync process and system
// integration points.
//
// It wires configuration, queue storage, the network monitor, and the sync
// facade into a single lifecycle with flock-based locking to prevent multiple
// instances. While running, the daemon drains the queue at startup, after
// every offline-to-online transition, and whenever a new row is queued while
// the device is online.
//
// Keep orchestration logic here: drain semantics live in internal/syncer and
// the daemon focuses on startup, shutdown, and drain triggers.
package daemon
