// Package gateway serves the genesis and certification handlers over HTTP.
//
// # Overview
//
// A Gateway owns the document store, the certify.Service, the secrets
// provider, the notifier, and a single http.Server. Every configured variant
// mounts the same two handlers under its own path prefix:
//
//	<prefix>/igniteGenesis            any method
//	<prefix>/processPromptAndCertify  prompt from body.prompt, body.data.prompt, or ?prompt=
//
// The default variant is public, mounted at "/", allows any CORS origin, and
// mirrors the certification hash and stability into the X-Sovereign-Integrity
// and X-Stability-Score response headers.
//
// # Variant Middleware
//
// Requests pass through, outermost first:
//
//  1. X-Alpha-Region header
//  2. CORS (github.com/rs/cors), when allowed_origins is set
//  3. bearer JWT check, for private variants
//  4. secret prefetch, when the variant binds secrets
//
// # Status Codes
//
//	200  genesis recorded or already present; certification verified
//	400  missing prompt
//	412  audit below the stability threshold, nothing persisted
//	500  store or secret failure
//
// # Listeners
//
// Without tailscale the server listens on server.http_addr. With tailscale
// enabled it joins the tailnet through tsnet and listens on :80, on :443 with
// tailscale certificates, or on a public funnel.
//
// # Operations
//
//	GET /health        liveness, always "OK"
//	GET /health/ready  store ping, 503 when unreachable
//	GET /manifesto     the node manifesto rendered with goldmark
package gateway
