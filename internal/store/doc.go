// Package store provides document persistence for alpha-core using SQLite.
//
// # Architecture
//
// The store exposes two interfaces:
//
//   - DocumentStore: collection-oriented documents with add and equality queries
//   - SecretsStore: named JSON credential blobs for deployment variants
//
// SQLiteStore implements both in a single struct. MockStore is the in-memory
// equivalent used by handler tests.
//
// # Documents
//
// A Document is a JSON-compatible field map. Documents are append-only: the
// store never updates or deletes them. Fields holding ServerTimestamp (or the
// equivalent JSON object {".sv":"timestamp"}) are replaced with the insert
// time, so handlers never stamp records with their own clock.
//
// Collections used by the gateway:
//
//   - genesis_logs: one GenesisRecord per node_id
//   - integrityRecords: one CertificationRecord per accepted prompt
//
// # Uniqueness
//
// Queries and inserts are separate calls, so query-then-insert is not atomic.
// EnsureUnique installs a partial unique index so that a racing duplicate
// insert fails with ErrDuplicate instead of writing a second record.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;  -- set per connection through the DSN
//
// Use NewSQLiteStore(":memory:") for integration tests with real SQLite.
//
// # Error Handling
//
//   - ErrNotFound: requested secret does not exist
//   - ErrDuplicate: insert violates a unique field
//   - ErrInvalidName: collection or field is not a plain identifier
//
// All methods accept context.Context for cancellation support.
package store
