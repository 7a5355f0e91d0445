// ABOUTME: Credential providers that resolve variant secret bindings to JSON blobs
// ABOUTME: Backends read from the SQLite secrets table or from environment variables

package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ahi-governance/alpha-core/internal/config"
	"github.com/ahi-governance/alpha-core/internal/store"
)

// ErrNotFound is returned when a binding has no secret behind it.
var ErrNotFound = errors.New("secret not found")

// Provider fetches a named credential blob.
type Provider interface {
	Fetch(ctx context.Context, name string) (json.RawMessage, error)
}

// New returns the provider selected by cfg.Backend.
func New(cfg config.SecretsConfig, st store.SecretsStore) (Provider, error) {
	switch cfg.Backend {
	case "store", "":
		if st == nil {
			return nil, fmt.Errorf("store secrets backend requires a secrets store")
		}
		return NewStoreProvider(st), nil
	case "env":
		return NewEnvProvider(cfg.EnvPrefix), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.Backend)
	}
}

// StoreProvider reads secrets saved with `alpha-core secret set`.
type StoreProvider struct {
	store store.SecretsStore
}

// NewStoreProvider creates a provider backed by st.
func NewStoreProvider(st store.SecretsStore) *StoreProvider {
	return &StoreProvider{store: st}
}

// Fetch returns the JSON value stored under name.
func (p *StoreProvider) Fetch(ctx context.Context, name string) (json.RawMessage, error) {
	secret, err := p.store.GetSecretByKey(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching secret %s: %w", name, err)
	}
	return json.RawMessage(secret.Value), nil
}

// EnvProvider reads secrets from environment variables named prefix+NAME.
type EnvProvider struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvProvider creates a provider reading the process environment.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix, lookup: os.LookupEnv}
}

// EnvName returns the environment variable that holds name.
// Dashes and dots become underscores and letters are upper-cased.
func (p *EnvProvider) EnvName(name string) string {
	r := strings.NewReplacer("-", "_", ".", "_")
	return p.prefix + strings.ToUpper(r.Replace(name))
}

// Fetch returns the JSON value of the variable for name.
func (p *EnvProvider) Fetch(ctx context.Context, name string) (json.RawMessage, error) {
	key := p.EnvName(name)
	value, ok := p.lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s unset)", ErrNotFound, name, key)
	}
	if !json.Valid([]byte(value)) {
		return nil, fmt.Errorf("secret %s: %s is not valid JSON", name, key)
	}
	return json.RawMessage(value), nil
}

// FetchAll fetches every binding, stopping at the first failure.
func FetchAll(ctx context.Context, p Provider, names []string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(names))
	for _, name := range names {
		value, err := p.Fetch(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}

var (
	_ Provider = (*StoreProvider)(nil)
	_ Provider = (*EnvProvider)(nil)
)
