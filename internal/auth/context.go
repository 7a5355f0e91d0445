// ABOUTME: Invoker identity carried through request handlers
// ABOUTME: Provides WithInvoker/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// Invoker is the authenticated caller of a private variant.
type Invoker struct {
	Subject string // "sub" claim of the bearer token
	Variant string // variant the request was made against
}

// invokerContextKey is the key type for storing Invoker in context.Context.
type invokerContextKey struct{}

// WithInvoker returns a new context with the Invoker attached.
func WithInvoker(ctx context.Context, inv *Invoker) context.Context {
	return context.WithValue(ctx, invokerContextKey{}, inv)
}

// FromContext retrieves the Invoker from the context, returning nil if not present.
// Requests to public variants carry no invoker.
func FromContext(ctx context.Context) *Invoker {
	inv, _ := ctx.Value(invokerContextKey{}).(*Invoker)
	return inv
}
