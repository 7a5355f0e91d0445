// ABOUTME: Gateway orchestrator that serves the certification variants over HTTP
// ABOUTME: Manages the store, notifier, TCP or tailscale listeners, and graceful shutdown

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/ahi-governance/alpha-core/internal/auth"
	"github.com/ahi-governance/alpha-core/internal/certify"
	"github.com/ahi-governance/alpha-core/internal/config"
	"github.com/ahi-governance/alpha-core/internal/notify"
	"github.com/ahi-governance/alpha-core/internal/secrets"
	"github.com/ahi-governance/alpha-core/internal/store"
)

// Store is the persistence the gateway needs: documents for records and
// secrets for variant bindings.
type Store interface {
	store.DocumentStore
	store.SecretsStore
}

// Gateway serves every configured variant of the genesis and certification
// handlers from a single HTTP server.
type Gateway struct {
	config      *config.Config
	store       Store
	service     *certify.Service
	secrets     secrets.Provider
	notifier    notify.Notifier
	verifier    *auth.JWTVerifier
	manifesto   *manifestoPage
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	mu   sync.Mutex
	addr net.Addr
}

// Option customizes a Gateway at construction
type Option func(*options)

type options struct {
	store    Store
	notifier notify.Notifier
	secrets  secrets.Provider
	auditor  certify.Auditor
}

// WithStore uses st instead of opening cfg.Database.Path.
func WithStore(st Store) Option {
	return func(o *options) { o.store = st }
}

// WithNotifier uses n instead of the configured notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithSecrets uses p instead of the configured secrets backend.
func WithSecrets(p secrets.Provider) Option {
	return func(o *options) { o.secrets = p }
}

// WithAuditor replaces the omega audit used by the certification handler.
func WithAuditor(a certify.Auditor) Option {
	return func(o *options) { o.auditor = a }
}

// initStore opens the SQLite store, honoring ALPHA_DB_PATH.
func initStore(cfg *config.Config) (Store, error) {
	s, err := store.NewSQLiteStore(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// initNotifier returns the Matrix notifier when enabled, otherwise a no-op.
func initNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, error) {
	if !cfg.Notify.Matrix.Enabled {
		return notify.Nop{}, nil
	}
	n, err := notify.NewMatrix(cfg.Notify.Matrix, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("matrix notifications enabled", "room_id", cfg.Notify.Matrix.RoomID)
	return n, nil
}

// New creates a new Gateway instance
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := o.store
	if s == nil {
		var err error
		s, err = initStore(cfg)
		if err != nil {
			return nil, err
		}
	}

	// Release the store and notifier if anything below fails
	var notifier notify.Notifier
	ok := false
	defer func() {
		if ok {
			return
		}
		if notifier != nil {
			_ = notifier.Close()
		}
		_ = s.Close()
	}()

	notifier = o.notifier
	if notifier == nil {
		n, err := initNotifier(cfg, logger)
		if err != nil {
			return nil, err
		}
		notifier = n
	}

	provider := o.secrets
	if provider == nil {
		var err error
		provider, err = secrets.New(cfg.Secrets, s)
		if err != nil {
			return nil, fmt.Errorf("creating secrets provider: %w", err)
		}
	}

	svcOpts := []certify.Option{certify.WithNotifier(notifier)}
	if o.auditor != nil {
		svcOpts = append(svcOpts, certify.WithAuditor(o.auditor))
	}
	service := certify.New(s, certify.SettingsFrom(cfg), logger, svcOpts...)
	if err := service.Prepare(context.Background()); err != nil {
		return nil, err
	}

	gw := &Gateway{
		config:    cfg,
		store:     s,
		service:   service,
		secrets:   provider,
		notifier:  notifier,
		manifesto: newManifestoPage(cfg.Node.ID, cfg.Node.Manifesto),
		logger:    logger.With("component", "gateway"),
	}

	if cfg.Auth.JWTSecret != "" {
		verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		gw.verifier = verifier
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)
	mux.HandleFunc("/manifesto", gw.handleManifesto)

	for _, v := range cfg.Variants {
		if err := gw.registerVariant(mux, v); err != nil {
			return nil, err
		}
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	ok = true
	return gw, nil
}

// Handler returns the root HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Service returns the certification service the handlers call.
func (g *Gateway) Service() *certify.Service {
	return g.service
}

// Addr returns the address the HTTP server is listening on, or nil before Run.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addr
}

func (g *Gateway) setupTCPListener() (net.Listener, error) {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// Run starts the HTTP server and blocks until ctx is canceled or the server fails.
// The gateway is shut down before Run returns.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		_ = g.Shutdown(context.Background())
		return err
	}

	g.mu.Lock()
	g.addr = ln.Addr()
	g.mu.Unlock()

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		g.logger.Info("initiating shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.shutdownTimeout())
		defer cancel()
		return g.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (g *Gateway) shutdownTimeout() time.Duration {
	if g.config.Server.ShutdownTimeout > 0 {
		return g.config.Server.ShutdownTimeout
	}
	return 5 * time.Second
}

// resolveTailscaleStateDir returns the configured state dir or a default under the user's home.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "alpha-core", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the configured key or TS_AUTHKEY.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on :80, :443 with
// tailscale certs, or a public funnel on :443.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return g.createTailscaleTLSListener()
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, flushes pending notifications, and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "notifier close", g.notifier.Close())
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK for basic health checks
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 when the store answers a ping, 503 otherwise
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := g.store.Ping(r.Context()); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d variants)", len(g.config.Variants))
}
