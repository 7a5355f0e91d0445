// ABOUTME: Tests for the private invoker HTTP middleware
// ABOUTME: Covers valid tokens, missing and malformed headers, expiry, and audience checks

package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const testSecret = "test-secret-key-for-jwt-signing"

func invokedHandler(t *testing.T, got **Invoker) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireInvoker_ValidToken(t *testing.T) {
	verifier := newTestVerifier(t, testSecret)
	token, err := verifier.Generate("ops@ahi", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var inv *Invoker
	handler := RequireInvoker(verifier, "v2", nil)(invokedHandler(t, &inv))

	req := httptest.NewRequest(http.MethodPost, "/v2/processPromptAndCertify", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if inv == nil || inv.Subject != "ops@ahi" || inv.Variant != "v2" {
		t.Errorf("invoker = %+v, want ops@ahi on v2", inv)
	}
}

func TestRequireInvoker_Rejections(t *testing.T) {
	verifier := newTestVerifier(t, testSecret)

	expired, _ := verifier.Generate("ops@ahi", -time.Minute)
	otherVariant, _ := verifier.Generate("ops@ahi", time.Hour, "v1")
	forged, _ := newTestVerifier(t, "another-secret").Generate("ops@ahi", time.Hour)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing authorization header"},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "invalid authorization header format"},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, "empty token"},
		{"forged token", "Bearer " + forged, http.StatusUnauthorized, "invalid token"},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, "token expired"},
		{"other variant", "Bearer " + otherVariant, http.StatusForbidden, "not valid for this variant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inv *Invoker
			handler := RequireInvoker(verifier, "v2", nil)(invokedHandler(t, &inv))

			req := httptest.NewRequest(http.MethodGet, "/v2/igniteGenesis", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
			if got := rec.Header().Get("WWW-Authenticate"); got == "" {
				t.Error("missing WWW-Authenticate header")
			}
			if inv != nil {
				t.Error("handler should not run for rejected requests")
			}
		})
	}
}

// httpTestLogHandler captures log records for assertions
type httpTestLogHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *httpTestLogHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }
func (h *httpTestLogHandler) WithAttrs(_ []slog.Attr) slog.Handler         { return h }
func (h *httpTestLogHandler) WithGroup(_ string) slog.Handler              { return h }
func (h *httpTestLogHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *httpTestLogHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, r := range h.records {
		out = append(out, r.Message)
	}
	return out
}

func TestRequireInvoker_LogsWrongVariant(t *testing.T) {
	verifier := newTestVerifier(t, testSecret)
	token, _ := verifier.Generate("ops@ahi", time.Hour, "v1")

	logs := &httpTestLogHandler{}
	var inv *Invoker
	handler := RequireInvoker(verifier, "v2", slog.New(logs))(invokedHandler(t, &inv))

	req := httptest.NewRequest(http.MethodGet, "/v2/igniteGenesis", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	msgs := logs.messages()
	if len(msgs) != 1 || msgs[0] != "token used against wrong variant" {
		t.Errorf("log messages = %v, want one wrong-variant warning", msgs)
	}
}
