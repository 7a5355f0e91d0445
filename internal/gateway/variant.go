// ABOUTME: Per-variant middleware chain and route registration
// ABOUTME: Applies region header, CORS, invoker auth, and secret prefetch before the handlers

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/cors"

	"github.com/ahi-governance/alpha-core/internal/auth"
	"github.com/ahi-governance/alpha-core/internal/config"
	"github.com/ahi-governance/alpha-core/internal/secrets"
)

const (
	headerRegion    = "X-Alpha-Region"
	headerIntegrity = "X-Sovereign-Integrity"
	headerStability = "X-Stability-Score"
)

// Route suffixes appended to a variant's path prefix
const (
	routeGenesis = "/igniteGenesis"
	routeCertify = "/processPromptAndCertify"
)

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type secretsKey struct{}

// variantSecrets returns the secret bindings prefetched for the request, if any.
func variantSecrets(ctx context.Context) map[string]json.RawMessage {
	m, _ := ctx.Value(secretsKey{}).(map[string]json.RawMessage)
	return m
}

// registerVariant mounts both handlers for v under its path prefix.
func (g *Gateway) registerVariant(mux *http.ServeMux, v config.VariantConfig) error {
	mws, err := g.variantMiddleware(v)
	if err != nil {
		return err
	}

	prefix := config.NormalizePrefix(v.PathPrefix)
	mux.Handle(prefix+routeGenesis, chain(http.HandlerFunc(g.handleGenesis), mws...))
	mux.Handle(prefix+routeCertify, chain(g.certifyHandler(v), mws...))

	g.logger.Info("registered variant",
		"name", v.Name,
		"prefix", prefix,
		"region", v.Region,
		"invoker", v.Invoker,
		"secrets", len(v.Secrets))
	return nil
}

// variantMiddleware builds the middleware for v, outermost first.
func (g *Gateway) variantMiddleware(v config.VariantConfig) ([]middleware, error) {
	mws := []middleware{regionHeader(v.Region)}

	if len(v.CORS.AllowedOrigins) > 0 {
		mws = append(mws, corsPolicy(v.CORS).Handler)
	}

	if v.Invoker == config.InvokerPrivate {
		if g.verifier == nil {
			return nil, fmt.Errorf("variant %q: private invoker requires auth.jwt_secret", v.Name)
		}
		mws = append(mws, auth.RequireInvoker(g.verifier, v.Name, g.logger))
	}

	if len(v.Secrets) > 0 {
		mws = append(mws, g.prefetchSecrets(v))
	}
	return mws, nil
}

func regionHeader(region string) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(headerRegion, region)
			next.ServeHTTP(w, r)
		})
	}
}

func corsPolicy(c config.CORSConfig) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: c.AllowedOrigins,
		AllowedMethods: c.AllowedMethods,
		AllowedHeaders: c.AllowedHeaders,
		ExposedHeaders: []string{headerIntegrity, headerStability, headerRegion},
		MaxAge:         int(c.MaxAge.Seconds()),
	})
}

// prefetchSecrets loads every binding of v before the handler runs. A missing
// or malformed secret fails the request.
func (g *Gateway) prefetchSecrets(v config.VariantConfig) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			values, err := secrets.FetchAll(r.Context(), g.secrets, v.Secrets)
			if err != nil {
				g.logger.Error("secret prefetch failed", "variant", v.Name, "error", err)
				sendInternalError(w, v.PlainErrors, "Secret binding unavailable.")
				return
			}
			ctx := context.WithValue(r.Context(), secretsKey{}, values)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
