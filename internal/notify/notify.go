// ABOUTME: Notification events emitted by the certification service
// ABOUTME: Defines Event, the Notifier interface, and the no-op notifier

package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Kind identifies what happened.
type Kind string

// Event kinds
const (
	KindGenesisIgnited        Kind = "genesis_ignited"
	KindCircuitBreakerTripped Kind = "circuit_breaker_tripped"
)

// Event is a single notification.
type Event struct {
	Kind      Kind
	NodeID    string
	Hash      string  // genesis integrity hash, if any
	Stability float64 // audit score, for circuit breaker events
	Threshold float64
	Time      time.Time
}

// Key groups events that are repeats of each other.
func (e Event) Key() string {
	switch e.Kind {
	case KindCircuitBreakerTripped:
		return string(e.Kind) + ":" + e.NodeID + ":" + strconv.FormatFloat(e.Stability, 'g', -1, 64)
	default:
		return string(e.Kind) + ":" + e.NodeID
	}
}

// Text renders the event as a single human-readable line.
func (e Event) Text() string {
	switch e.Kind {
	case KindGenesisIgnited:
		return fmt.Sprintf("[GENESIS] Node %s ignited. Integrity hash %s", e.NodeID, e.Hash)
	case KindCircuitBreakerTripped:
		return fmt.Sprintf("[CIRCUIT BREAKER] Node %s: stability %s < %s. Output silenced.",
			e.NodeID,
			strconv.FormatFloat(e.Stability, 'g', -1, 64),
			strconv.FormatFloat(e.Threshold, 'g', -1, 64))
	default:
		return fmt.Sprintf("[%s] Node %s", e.Kind, e.NodeID)
	}
}

// Notifier delivers events somewhere outside the process.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, Event) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

var _ Notifier = Nop{}
