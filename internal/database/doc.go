// Package database provides the PostgreSQL connection pool and schema
// migrations for the ledger.
//
// The schema lives in schema/*.sql, embedded at build time and applied in
// file-name order. Every statement is idempotent, so Migrate runs on each
// startup when database.migrate is set.
package database
