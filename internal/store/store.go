// ABOUTME: Document store interface and data types for alpha-core persistence
// ABOUTME: Defines Document, Snapshot, the server timestamp sentinel, and DocumentStore

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique field registered
// with EnsureUnique
var ErrDuplicate = errors.New("document already exists")

// ErrInvalidName is returned for collection or field names that are not plain identifiers
var ErrInvalidName = errors.New("invalid collection or field name")

// Document is the field map of a stored record.
type Document map[string]any

// Snapshot is a stored document as returned by the store.
type Snapshot struct {
	ID         string
	Collection string
	Data       Document
	CreateTime time.Time
}

// serverTimestamp marks a field whose value the store assigns at insert time.
type serverTimestamp struct{}

// ServerTimestamp is replaced with the store's clock when a document is added.
// It serializes as {".sv":"timestamp"}, so documents built from JSON keep the
// marker.
var ServerTimestamp = serverTimestamp{}

// MarshalJSON encodes the sentinel form of a pending server timestamp.
func (serverTimestamp) MarshalJSON() ([]byte, error) {
	return []byte(`{".sv":"timestamp"}`), nil
}

// DocumentStore is a minimal collection-oriented document database.
type DocumentStore interface {
	// Add inserts doc into collection, resolving any ServerTimestamp fields,
	// and returns the stored snapshot.
	Add(ctx context.Context, collection string, doc Document) (*Snapshot, error)

	// Where returns every document in collection whose field equals value,
	// oldest first.
	Where(ctx context.Context, collection, field string, value any) ([]*Snapshot, error)

	// EnsureUnique makes later inserts into collection fail with ErrDuplicate
	// when field repeats an existing value.
	EnsureUnique(ctx context.Context, collection, field string) error

	// Ping checks that the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}

// DocumentFrom converts v into a Document through its JSON encoding.
func DocumentFrom(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateName rejects names that cannot be safely embedded in a JSON path or index name.
func validateName(kind, name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: %s %q", ErrInvalidName, kind, name)
	}
	return nil
}

// resolveTimestamps returns a copy of doc with every pending server timestamp,
// at any depth, replaced by now.
func resolveTimestamps(doc Document, now time.Time) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = resolveValue(v, now)
	}
	return out
}

func resolveValue(v any, now time.Time) any {
	switch val := v.(type) {
	case serverTimestamp:
		return now
	case Document:
		if isTimestampSentinel(val) {
			return now
		}
		return resolveTimestamps(val, now)
	case map[string]any:
		if isTimestampSentinel(val) {
			return now
		}
		return map[string]any(resolveTimestamps(val, now))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = resolveValue(item, now)
		}
		return out
	default:
		return v
	}
}

func isTimestampSentinel(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	sv, ok := m[".sv"].(string)
	return ok && sv == "timestamp"
}
