// ABOUTME: SQLite implementation of DocumentStore using modernc.org/sqlite
// ABOUTME: Stores documents as JSON rows with automatic schema creation and migrations

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// createdAtLayout keeps every created_at the same width so text comparison
// matches time order. RFC3339Nano trims trailing zeros and does not.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements DocumentStore and SecretsStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		// Ensure parent directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// busy_timeout is per connection, so it goes in the DSN to reach every
	// pooled connection: concurrent writers wait instead of failing with SQLITE_BUSY
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if path == ":memory:" {
		// Every pooled connection to :memory: would get its own empty database
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			id         TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			data_json  TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (json_valid(data_json))
		);

		CREATE INDEX IF NOT EXISTS idx_documents_collection
			ON documents(collection, created_at);

		CREATE TABLE IF NOT EXISTS secrets (
			id         TEXT PRIMARY KEY,
			key        TEXT NOT NULL UNIQUE,
			value      TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "secrets",
			column: "created_by",
			apply:  `ALTER TABLE secrets ADD COLUMN created_by TEXT`,
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column).Scan(&exists)
		if err == nil {
			// Column already exists, skip
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Add inserts a document into the collection.
// ServerTimestamp fields are set to the insert time. Returns ErrDuplicate if
// a unique field registered with EnsureUnique already holds the same value.
func (s *SQLiteStore) Add(ctx context.Context, collection string, doc Document) (*Snapshot, error) {
	if err := validateName("collection", collection); err != nil {
		return nil, err
	}

	now := s.now()
	resolved := resolveTimestamps(doc, now)

	data, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	id := uuid.New().String()
	query := `
		INSERT INTO documents (id, collection, data_json, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		id,
		collection,
		string(data),
		now.UTC().Format(createdAtLayout),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("inserting document: %w", err)
	}

	s.logger.Debug("added document", "id", id, "collection", collection)
	return &Snapshot{
		ID:         id,
		Collection: collection,
		Data:       resolved,
		CreateTime: now,
	}, nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// Where returns the documents in collection whose field equals value.
// Results are ordered by insertion time.
func (s *SQLiteStore) Where(ctx context.Context, collection, field string, value any) ([]*Snapshot, error) {
	if err := validateName("collection", collection); err != nil {
		return nil, err
	}
	if err := validateName("field", field); err != nil {
		return nil, err
	}

	query := `
		SELECT id, data_json, created_at
		FROM documents
		WHERE collection = ? AND json_extract(data_json, ?) = ?
		ORDER BY rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, collection, "$."+field, value)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []*Snapshot
	for rows.Next() {
		var (
			snap       Snapshot
			dataJSON   string
			createdStr string
		)
		if err := rows.Scan(&snap.ID, &dataJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal([]byte(dataJSON), &snap.Data); err != nil {
			return nil, fmt.Errorf("decoding document %s: %w", snap.ID, err)
		}
		snap.CreateTime, err = time.Parse(time.RFC3339Nano, createdStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		snap.Collection = collection
		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return snapshots, nil
}

// EnsureUnique creates a partial unique index over field for documents in collection.
// Fails if existing documents already hold duplicate values.
func (s *SQLiteStore) EnsureUnique(ctx context.Context, collection, field string) error {
	if err := validateName("collection", collection); err != nil {
		return err
	}
	if err := validateName("field", field); err != nil {
		return err
	}

	// Names are validated identifiers; index expressions cannot take bound parameters.
	stmt := fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_%s_%s
			ON documents(collection, json_extract(data_json, '$.%s'))
			WHERE collection = '%s'`,
		collection, field, field, collection,
	)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating unique index on %s.%s: %w", collection, field, err)
	}

	s.logger.Debug("ensured unique field", "collection", collection, "field", field)
	return nil
}

// nullString returns nil for empty strings, otherwise the string
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ensure SQLiteStore implements DocumentStore.
var _ DocumentStore = (*SQLiteStore)(nil)
