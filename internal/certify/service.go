// ABOUTME: Certification service implementing genesis ignition and prompt certification
// ABOUTME: Audits, hashes, and persists records through a document store

package certify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahi-governance/alpha-core/internal/config"
	"github.com/ahi-governance/alpha-core/internal/integrity"
	"github.com/ahi-governance/alpha-core/internal/notify"
	"github.com/ahi-governance/alpha-core/internal/omega"
	"github.com/ahi-governance/alpha-core/internal/store"
)

// Genesis outcome messages and record status
const (
	MessageIgnited        = "Sovereign Node Ignited."
	MessageAlreadyIgnited = "Alpha Node already ignited."
	StatusIgnited         = "IGNITION_SUCCESSFUL"
	StatusVerified        = "VERIFIED"
)

// Store defines what the service needs from storage
type Store interface {
	Add(ctx context.Context, collection string, doc store.Document) (*store.Snapshot, error)
	Where(ctx context.Context, collection, field string, value any) ([]*store.Snapshot, error)
	EnsureUnique(ctx context.Context, collection, field string) error
}

// Notifier receives genesis and circuit breaker events
type Notifier interface {
	Notify(ctx context.Context, e notify.Event) error
}

// Auditor scores a response. omega.Audit is the production auditor.
type Auditor func(prompt, response string) omega.Result

// Settings are the node constants the service works with.
type Settings struct {
	NodeID                  string
	Manifesto               string
	GenesisCollection       string
	CertificationCollection string
	EmitterID               string
	Version                 string
	EnforceUnique           bool
}

// SettingsFrom extracts service settings from a loaded configuration.
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		NodeID:                  cfg.Node.ID,
		Manifesto:               cfg.Node.Manifesto,
		GenesisCollection:       cfg.Genesis.Collection,
		CertificationCollection: cfg.Certification.Collection,
		EmitterID:               cfg.Certification.EmitterID,
		Version:                 cfg.Certification.Version,
		EnforceUnique:           cfg.EnforceUniqueGenesis(),
	}
}

// Option configures a Service
type Option func(*Service)

// WithAuditor replaces omega.Audit.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.audit = a }
}

// WithNotifier sets where events are sent. The default discards them.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock sets the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs the genesis and certification operations.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	store    Store
	settings Settings
	audit    Auditor
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Service
func New(st Store, settings Settings, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    st,
		settings: settings,
		audit:    omega.Audit,
		notifier: notify.Nop{},
		now:      time.Now,
		logger:   logger.With("component", "certify", "node_id", settings.NodeID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepare installs the storage constraints the service relies on.
// With EnforceUnique the genesis collection rejects a second record for the same node.
func (s *Service) Prepare(ctx context.Context) error {
	if !s.settings.EnforceUnique {
		s.logger.Warn("genesis uniqueness not enforced; concurrent first ignitions may duplicate")
		return nil
	}
	if err := s.store.EnsureUnique(ctx, s.settings.GenesisCollection, "node_id"); err != nil {
		return fmt.Errorf("enforcing unique genesis node_id: %w", err)
	}
	return nil
}

// IgniteResult is the outcome of a genesis request.
type IgniteResult struct {
	Message string
	Log     store.Document
	Created bool
}

// Ignite records the genesis log for this node unless one already exists.
func (s *Service) Ignite(ctx context.Context) (*IgniteResult, error) {
	hash := integrity.Hash(s.settings.Manifesto)

	existing, err := s.findGenesis(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Debug("genesis already recorded", "id", existing.ID)
		return &IgniteResult{Message: MessageAlreadyIgnited, Log: existing.Data}, nil
	}

	entry := store.Document{
		"manifesto":      s.settings.Manifesto,
		"timestamp":      store.ServerTimestamp,
		"integrity_hash": hash,
		"node_id":        s.settings.NodeID,
		"status":         StatusIgnited,
	}

	snap, err := s.store.Add(ctx, s.settings.GenesisCollection, entry)
	if errors.Is(err, store.ErrDuplicate) {
		// Lost the race against a concurrent ignition
		existing, err := s.findGenesis(ctx)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("genesis record reported duplicate but not found")
		}
		return &IgniteResult{Message: MessageAlreadyIgnited, Log: existing.Data}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("recording genesis: %w", err)
	}

	s.logger.Info("node ignited", "id", snap.ID, "integrity_hash", hash)
	s.emit(ctx, notify.Event{
		Kind:   notify.KindGenesisIgnited,
		NodeID: s.settings.NodeID,
		Hash:   hash,
	})

	return &IgniteResult{Message: MessageIgnited, Log: snap.Data, Created: true}, nil
}

func (s *Service) findGenesis(ctx context.Context) (*store.Snapshot, error) {
	snaps, err := s.store.Where(ctx, s.settings.GenesisCollection, "node_id", s.settings.NodeID)
	if err != nil {
		return nil, fmt.Errorf("querying genesis log: %w", err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return snaps[0], nil
}

// Metrics are the audit figures recorded with a certification.
type Metrics struct {
	Stability float64 `json:"stability"`
	Wisdom    float64 `json:"wisdom"`
	Threshold float64 `json:"threshold"`
}

// payload is the hashed part of a certification record. Field order is the
// serialization order and therefore part of the hash.
type payload struct {
	Prompt    string  `json:"prompt"`
	Response  string  `json:"response"`
	Metrics   Metrics `json:"metrics"`
	Timestamp any     `json:"timestamp"`
	EmitterID string  `json:"emitter_id"`
	Version   string  `json:"version"`
}

// Certification is an accepted, persisted prompt/response pair.
type Certification struct {
	ID        string
	Response  string
	Hash      string
	Stability float64
	Status    string
	Metrics   Metrics
}

// Certify answers prompt, audits the answer, and persists a hashed record
// when the audit passes. It returns ErrPromptRequired for an empty prompt and
// a *DegradedStateError when the audit fails; neither writes to the store.
func (s *Service) Certify(ctx context.Context, prompt string) (*Certification, error) {
	if prompt == "" {
		return nil, ErrPromptRequired
	}

	response := Respond(prompt)
	result := s.audit(prompt, response)

	if !result.Verified {
		s.logger.Warn("circuit breaker tripped, silencing output",
			"stability", result.Stability,
			"threshold", omega.Threshold)
		s.emit(ctx, notify.Event{
			Kind:      notify.KindCircuitBreakerTripped,
			NodeID:    s.settings.NodeID,
			Stability: result.Stability,
			Threshold: omega.Threshold,
		})
		return nil, &DegradedStateError{Stability: result.Stability, Threshold: omega.Threshold}
	}

	p := payload{
		Prompt:   prompt,
		Response: response,
		Metrics: Metrics{
			Stability: result.Stability,
			Wisdom:    result.Wisdom,
			Threshold: omega.Threshold,
		},
		Timestamp: store.ServerTimestamp,
		EmitterID: s.settings.EmitterID,
		Version:   s.settings.Version,
	}

	hash, err := integrity.HashJSON(p)
	if err != nil {
		return nil, fmt.Errorf("hashing certification: %w", err)
	}

	doc, err := store.DocumentFrom(p)
	if err != nil {
		return nil, fmt.Errorf("building certification record: %w", err)
	}
	doc["stability"] = result.Stability
	doc["hash"] = hash

	snap, err := s.store.Add(ctx, s.settings.CertificationCollection, doc)
	if err != nil {
		return nil, fmt.Errorf("recording certification: %w", err)
	}

	s.logger.Info("certified response", "id", snap.ID, "hash", hash, "stability", result.Stability)

	return &Certification{
		ID:        snap.ID,
		Response:  response,
		Hash:      hash,
		Stability: result.Stability,
		Status:    StatusVerified,
		Metrics:   p.Metrics,
	}, nil
}

// emit sends e and logs, but never returns, a delivery failure.
func (s *Service) emit(ctx context.Context, e notify.Event) {
	e.Time = s.now().UTC()
	if err := s.notifier.Notify(ctx, e); err != nil {
		s.logger.Warn("failed to queue notification", "kind", e.Kind, "error", err)
	}
}
