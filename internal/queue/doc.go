// Package queue persists offline action intents in SQLite and exposes
// helpers for driving their lifecycle.
//
// Two independent tables hold analysis requests and expense-save intents,
// both keyed by an auto-assigned id and scoped by user. Rows move through
// pending → processing → completed/failed; expense saves are deleted once
// the remote write succeeds. Every mutation publishes a Change through the
// store's ChangeHub so live views track the queue without polling.
//
// The database is the device's local durability layer, not a shared system
// of record. Schema changes bump the version in schema.go; users clear the
// database to adopt the new schema.
package queue
