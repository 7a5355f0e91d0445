// Package dedupe provides a time window that suppresses repeated keys, so a
// burst of identical events produces a single notification.
package dedupe
