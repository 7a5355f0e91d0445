// Package notify delivers genesis and circuit breaker events to operators.
//
// Nop discards events. MatrixNotifier posts them as text messages to one
// Matrix room from a single background goroutine; Notify only enqueues, so a
// slow homeserver never delays an HTTP response. Identical events inside the
// configured suppress window are sent once.
package notify
