// ABOUTME: Matrix notifier posting events to a room via mautrix
// ABOUTME: Sends asynchronously from a bounded queue and drains it on Close

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/ahi-governance/alpha-core/internal/config"
	"github.com/ahi-governance/alpha-core/internal/dedupe"
)

// ErrQueueFull is returned when the send queue has no room for another event.
var ErrQueueFull = errors.New("notification queue full")

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("notifier closed")

const sendTimeout = 10 * time.Second

// Sender posts a text message to a room. *mautrix.Client satisfies it.
type Sender interface {
	SendText(ctx context.Context, roomID id.RoomID, text string) (*mautrix.RespSendEvent, error)
}

// MatrixNotifier posts events to a single Matrix room.
type MatrixNotifier struct {
	sender Sender
	roomID id.RoomID
	window *dedupe.Window
	logger *slog.Logger

	mu     sync.RWMutex
	queue  chan Event
	closed bool
	wg     sync.WaitGroup
}

// NewMatrix creates a notifier logged in with the configured access token.
func NewMatrix(cfg config.MatrixConfig, logger *slog.Logger) (*MatrixNotifier, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	return NewMatrixWithSender(client, cfg.RoomID, cfg.QueueSize, cfg.SuppressWindow, logger), nil
}

// NewMatrixWithSender creates a notifier on top of an existing sender.
// A zero suppress window disables duplicate suppression.
func NewMatrixWithSender(sender Sender, roomID string, queueSize int, suppress time.Duration, logger *slog.Logger) *MatrixNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize < 1 {
		queueSize = config.DefaultMatrixQueueSize
	}

	n := &MatrixNotifier{
		sender: sender,
		roomID: id.RoomID(roomID),
		logger: logger.With("component", "notify", "room_id", roomID),
		queue:  make(chan Event, queueSize),
	}
	if suppress > 0 {
		n.window = dedupe.New(suppress, 1024, suppress)
	}

	n.wg.Add(1)
	go n.run()
	return n
}

// Notify queues e for delivery. It never blocks on the network.
func (n *MatrixNotifier) Notify(ctx context.Context, e Event) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return ErrClosed
	}
	if n.window != nil && n.window.Suppress(e.Key()) {
		n.logger.Debug("suppressed repeated notification", "kind", e.Kind)
		return nil
	}

	select {
	case n.queue <- e:
		return nil
	default:
		// Let a later identical event through
		if n.window != nil {
			n.window.Forget(e.Key())
		}
		return ErrQueueFull
	}
}

func (n *MatrixNotifier) run() {
	defer n.wg.Done()

	for e := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		_, err := n.sender.SendText(ctx, n.roomID, e.Text())
		cancel()
		if err != nil {
			n.logger.Error("failed to send notification", "kind", e.Kind, "error", err)
			continue
		}
		n.logger.Debug("sent notification", "kind", e.Kind)
	}
}

// Close stops accepting events, delivers everything already queued, and
// waits for the sender goroutine to exit.
func (n *MatrixNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	n.wg.Wait()
	if n.window != nil {
		n.window.Close()
	}
	return nil
}

var _ Notifier = (*MatrixNotifier)(nil)
