// Package syncer drains queued offline intents into the remote system and
// exposes the public sync surface.
//
// The Orchestrator runs one sequential pass per user over pending rows,
// serialized by a per-user lock with a bounded acquire timeout. The Facade
// layers the "try now, fall back to queue" entry points and the reactive
// counters on top. The online-failure policies of the two entry points are
// deliberately asymmetric by default: a failed direct analysis is dropped
// for the caller to retry, a failed direct save is queued so it is never
// lost. Both policies are configurable.
package syncer
