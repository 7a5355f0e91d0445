// ABOUTME: HTTP middleware for JWT authentication on private variants
// ABOUTME: Extracts JWT from Authorization header and adds the invoker to context

package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// RequireInvoker creates an HTTP middleware that admits only requests bearing
// a valid token for variant. Rejections are 401 for bad or missing tokens and
// 403 for tokens issued to other variants.
func RequireInvoker(verifier TokenVerifier, variant string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeAuthError(w, errMsg, http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, ErrExpiredToken) {
					msg = "token expired"
				}
				logger.Debug("rejected invoker token", "variant", variant, "error", err)
				writeAuthError(w, msg, http.StatusUnauthorized)
				return
			}

			if !claims.Allows(variant) {
				logger.Warn("token used against wrong variant", "variant", variant, "subject", claims.Subject)
				writeAuthError(w, ErrWrongAudience.Error(), http.StatusForbidden)
				return
			}

			inv := &Invoker{Subject: claims.Subject, Variant: variant}
			next.ServeHTTP(w, r.WithContext(WithInvoker(r.Context(), inv)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="alpha-core"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
