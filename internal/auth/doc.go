// Package auth authenticates callers of private deployment variants.
//
// # JWT Tokens
//
// Invoker tokens are HS256 JWTs signed with auth.jwt_secret. They carry a
// "sub" claim naming the caller, an "exp" claim (required), and optionally an
// "aud" claim listing the variant names the token may invoke:
//
//	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
//	token, err := verifier.Generate("ops@ahi", 24*time.Hour, "v2")
//
// Tokens are minted with `alpha-core token --subject NAME`.
//
// # HTTP Middleware
//
// RequireInvoker wraps a variant's handlers. Public variants are not wrapped.
// The verified caller is available to handlers through FromContext.
package auth
