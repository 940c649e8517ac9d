// Package network observes connectivity transitions and exposes a single
// current boolean state to the sync engine.
package network
