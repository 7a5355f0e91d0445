// ABOUTME: Secrets store implementation for credential blobs bound to deployment variants
// ABOUTME: Each secret is a named JSON document, created or replaced by key

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Secret is a named credential blob. Value holds JSON text.
type Secret struct {
	ID        string
	Key       string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy *string
}

// SecretsStore defines methods for managing secrets.
type SecretsStore interface {
	SetSecret(ctx context.Context, secret *Secret) error
	GetSecretByKey(ctx context.Context, key string) (*Secret, error)
	ListAllSecrets(ctx context.Context) ([]*Secret, error)
	DeleteSecret(ctx context.Context, key string) error
}

// SetSecret creates the secret or replaces the value of an existing secret with the same key.
// The value must be valid JSON.
func (s *SQLiteStore) SetSecret(ctx context.Context, secret *Secret) error {
	if !json.Valid([]byte(secret.Value)) {
		return fmt.Errorf("secret %q: value is not valid JSON", secret.Key)
	}
	if secret.ID == "" {
		secret.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = now
	}
	secret.UpdatedAt = now

	query := `
		INSERT INTO secrets (id, key, value, created_at, updated_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		secret.ID,
		secret.Key,
		secret.Value,
		secret.CreatedAt.Format(time.RFC3339),
		secret.UpdatedAt.Format(time.RFC3339),
		nullString(ptrToString(secret.CreatedBy)),
	)
	if err != nil {
		return fmt.Errorf("upserting secret: %w", err)
	}

	s.logger.Debug("set secret", "key", secret.Key)
	return nil
}

// GetSecretByKey retrieves a secret by key.
// Returns ErrNotFound if the secret doesn't exist.
func (s *SQLiteStore) GetSecretByKey(ctx context.Context, key string) (*Secret, error) {
	query := `
		SELECT id, key, value, created_at, updated_at, created_by
		FROM secrets
		WHERE key = ?
	`

	secret, err := scanSecret(s.db.QueryRowContext(ctx, query, key))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying secret: %w", err)
	}
	return secret, nil
}

// ListAllSecrets returns all secrets ordered by key.
func (s *SQLiteStore) ListAllSecrets(ctx context.Context) ([]*Secret, error) {
	query := `
		SELECT id, key, value, created_at, updated_at, created_by
		FROM secrets
		ORDER BY key
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying secrets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var secrets []*Secret
	for rows.Next() {
		secret, err := scanSecret(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning secret: %w", err)
		}
		secrets = append(secrets, secret)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating secrets: %w", err)
	}

	return secrets, nil
}

// DeleteSecret removes a secret by key.
// Returns ErrNotFound if the secret doesn't exist.
func (s *SQLiteStore) DeleteSecret(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting secret: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted secret", "key", key)
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSecret(row rowScanner) (*Secret, error) {
	var secret Secret
	var createdBy sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(
		&secret.ID,
		&secret.Key,
		&secret.Value,
		&createdAt,
		&updatedAt,
		&createdBy,
	); err != nil {
		return nil, err
	}

	if parsed, err := time.Parse(time.RFC3339, createdAt); err != nil {
		slog.Warn("failed to parse secret created_at", "id", secret.ID, "error", err)
	} else {
		secret.CreatedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339, updatedAt); err != nil {
		slog.Warn("failed to parse secret updated_at", "id", secret.ID, "error", err)
	} else {
		secret.UpdatedAt = parsed
	}
	if createdBy.Valid {
		secret.CreatedBy = &createdBy.String
	}

	return &secret, nil
}

// ptrToString safely dereferences a string pointer, returning empty string for nil.
func ptrToString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ensure SQLiteStore implements SecretsStore.
var _ SecretsStore = (*SQLiteStore)(nil)
