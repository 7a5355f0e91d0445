// Package secrets resolves the secret bindings declared on a deployment
// variant. Each secret is a JSON credential blob; the gateway fetches every
// binding before invoking a handler and fails the request if any is missing.
// The certification service itself never reads them.
package secrets
