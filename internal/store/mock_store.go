// ABOUTME: Mock DocumentStore and SecretsStore implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject failures and count writes

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory store for testing.
// Documents are copied through JSON on the way in and out, matching SQLiteStore.
type MockStore struct {
	mu       sync.RWMutex
	docs     map[string][]*Snapshot     // keyed by collection, insertion order
	unique   map[string]map[string]bool // collection -> unique fields
	secrets  map[string]*Secret         // keyed by secret key
	adds     int
	failWith error
	now      func() time.Time

	// BeforeAdd, if set, runs before each Add while no lock is held.
	BeforeAdd func()
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		docs:    make(map[string][]*Snapshot),
		unique:  make(map[string]map[string]bool),
		secrets: make(map[string]*Secret),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// FailWith makes every subsequent document operation return err. Pass nil to clear.
func (m *MockStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// AddCount returns the number of successful Add calls.
func (m *MockStore) AddCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adds
}

// Count returns the number of documents in collection.
func (m *MockStore) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[collection])
}

// Add stores a copy of doc.
func (m *MockStore) Add(ctx context.Context, collection string, doc Document) (*Snapshot, error) {
	if err := validateName("collection", collection); err != nil {
		return nil, err
	}
	if m.BeforeAdd != nil {
		m.BeforeAdd()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, m.failWith
	}

	now := m.now()
	data, err := copyDocument(resolveTimestamps(doc, now))
	if err != nil {
		return nil, err
	}

	for field := range m.unique[collection] {
		for _, existing := range m.docs[collection] {
			if equalValues(existing.Data[field], data[field]) {
				return nil, ErrDuplicate
			}
		}
	}

	snap := &Snapshot{
		ID:         uuid.New().String(),
		Collection: collection,
		Data:       data,
		CreateTime: now,
	}
	m.docs[collection] = append(m.docs[collection], snap)
	m.adds++

	out := *snap
	out.Data, _ = copyDocument(snap.Data)
	return &out, nil
}

// Where returns copies of matching documents in insertion order.
func (m *MockStore) Where(ctx context.Context, collection, field string, value any) ([]*Snapshot, error) {
	if err := validateName("collection", collection); err != nil {
		return nil, err
	}
	if err := validateName("field", field); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failWith != nil {
		return nil, m.failWith
	}

	var result []*Snapshot
	for _, snap := range m.docs[collection] {
		if !equalValues(snap.Data[field], value) {
			continue
		}
		out := *snap
		out.Data, _ = copyDocument(snap.Data)
		result = append(result, &out)
	}
	return result, nil
}

// EnsureUnique registers field as unique within collection.
func (m *MockStore) EnsureUnique(ctx context.Context, collection, field string) error {
	if err := validateName("collection", collection); err != nil {
		return err
	}
	if err := validateName("field", field); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return m.failWith
	}
	if m.unique[collection] == nil {
		m.unique[collection] = make(map[string]bool)
	}
	m.unique[collection][field] = true
	return nil
}

// Ping returns the injected failure, if any.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failWith
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// SetSecret creates or replaces a secret by key.
func (m *MockStore) SetSecret(ctx context.Context, secret *Secret) error {
	if !json.Valid([]byte(secret.Value)) {
		return fmt.Errorf("secret %q: value is not valid JSON", secret.Key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.secrets[secret.Key]; ok {
		existing.Value = secret.Value
		existing.UpdatedAt = now
		return nil
	}

	s := *secret
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	m.secrets[s.Key] = &s
	return nil
}

// GetSecretByKey retrieves a secret by key.
func (m *MockStore) GetSecretByKey(ctx context.Context, key string) (*Secret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.secrets[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s
	return &out, nil
}

// ListAllSecrets returns all secrets ordered by key.
func (m *MockStore) ListAllSecrets(ctx context.Context) ([]*Secret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Secret, 0, len(m.secrets))
	for _, s := range m.secrets {
		out := *s
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// DeleteSecret removes a secret by key.
func (m *MockStore) DeleteSecret(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.secrets[key]; !ok {
		return ErrNotFound
	}
	delete(m.secrets, key)
	return nil
}

// copyDocument deep-copies doc through JSON so callers never share maps with the store.
func copyDocument(doc Document) (Document, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return out, nil
}

// equalValues compares a stored JSON value with a query value by their JSON encodings.
func equalValues(stored, want any) bool {
	a, errA := json.Marshal(stored)
	b, errB := json.Marshal(want)
	return errA == nil && errB == nil && string(a) == string(b)
}

var (
	_ DocumentStore = (*MockStore)(nil)
	_ SecretsStore  = (*MockStore)(nil)
)
