// Package certify implements the two operations of an Alpha node.
//
// Ignite records the genesis log for the configured node exactly once: it
// hashes the manifesto, looks for an existing record with the node id, and
// inserts one if none exists. When the store enforces a unique node_id, a
// concurrent loser sees store.ErrDuplicate and reports the winner's record.
//
// Certify answers a prompt with the node voice, runs the omega audit, and
// either rejects with a *DegradedStateError (nothing persisted) or hashes the
// certification payload and stores it with its hash.
//
// The service is transport-agnostic; the gateway package maps its errors to
// HTTP status codes.
package certify
