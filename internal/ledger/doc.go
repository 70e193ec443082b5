// Package ledger is the persistent store behind the price engine and the
// mining controller.
//
// PG is the PostgreSQL implementation. Tick generation is serialized with a
// transaction-scoped advisory lock; supply reservation is a single conditional
// UPDATE that never drives the remaining supply below zero; per-user claims
// lock the user's profile row for the length of the claim transaction.
//
// Memory is an in-process implementation with the same guarantees, used by
// tests and by the engine's memory store mode.
package ledger
