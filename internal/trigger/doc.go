// Package trigger drives tick generation from outside the engine.
//
// The Scheduler calls the engine's tick endpoint on a cron schedule
// (default "@every 3s"), once immediately on start and then on every
// firing. A firing that arrives while the previous call is still in
// flight is skipped rather than queued.
package trigger
