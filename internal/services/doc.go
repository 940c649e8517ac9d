// Package services defines the error taxonomy shared by the remote clients
// the sync engine drains into.
package services
