// ABOUTME: Thread-safe TTL window that remembers recently seen keys
// ABOUTME: Used by notifiers to suppress repeats of the same event inside a window

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry stores when a key was last seen and its position in the eviction list.
type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Window remembers keys for ttl, holding at most maxSize of them.
// The oldest key is evicted first when the window is full.
type Window struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a window and starts a goroutine that sweeps expired keys every
// sweep interval. Close stops it.
func New(ttl time.Duration, maxSize int, sweep time.Duration) *Window {
	if maxSize < 1 {
		maxSize = 1
	}
	w := &Window{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if sweep > 0 {
		go w.sweepLoop(sweep)
	}
	return w
}

// SetClock replaces the time source. Intended for tests.
func (w *Window) SetClock(now func() time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = now
}

// Suppress reports whether key was already seen inside the window.
// A key that was not seen is recorded, so only the first caller gets false.
func (w *Window) Suppress(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if e, ok := w.seen[key]; ok && now.Sub(e.seenAt) < w.ttl {
		return true
	}
	w.recordLocked(key, now)
	return false
}

// Contains reports whether key is inside the window without recording it.
func (w *Window) Contains(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.seen[key]
	return ok && w.now().Sub(e.seenAt) < w.ttl
}

// Forget drops key so the next Suppress call for it returns false.
func (w *Window) Forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.seen[key]; ok {
		w.order.Remove(e.element)
		delete(w.seen, key)
	}
}

// Len returns the number of keys held, expired or not.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// recordLocked must be called with mu held.
func (w *Window) recordLocked(key string, now time.Time) {
	if e, ok := w.seen[key]; ok {
		e.seenAt = now
		w.order.MoveToBack(e.element)
		return
	}

	if len(w.seen) >= w.maxSize {
		if front := w.order.Front(); front != nil {
			oldest, _ := front.Value.(string)
			w.order.Remove(front)
			delete(w.seen, oldest)
		}
	}

	w.seen[key] = &entry{
		seenAt:  now,
		element: w.order.PushBack(key),
	}
}

func (w *Window) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep()
		case <-w.done:
			return
		}
	}
}

// Sweep removes every expired key.
func (w *Window) Sweep() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for key, e := range w.seen {
		if now.Sub(e.seenAt) >= w.ttl {
			w.order.Remove(e.element)
			delete(w.seen, key)
		}
	}
}

// Close stops the sweep goroutine. It is safe to call multiple times.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		close(w.done)
		w.closed = true
	}
}
