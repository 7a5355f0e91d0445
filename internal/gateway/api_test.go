// ABOUTME: Tests for the genesis and certification HTTP handlers
// ABOUTME: Verifies status codes, bodies, mirrored headers, and what reaches the store

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahi-governance/alpha-core/internal/auth"
	"github.com/ahi-governance/alpha-core/internal/certify"
	"github.com/ahi-governance/alpha-core/internal/config"
	"github.com/ahi-governance/alpha-core/internal/integrity"
	"github.com/ahi-governance/alpha-core/internal/omega"
	"github.com/ahi-governance/alpha-core/internal/store"
)

func decodeJSON(t *testing.T, r io.Reader, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r).Decode(v))
}

func serve(gw *Gateway, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	return rec
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func v2Token(t *testing.T) string {
	t.Helper()
	v, err := auth.NewJWTVerifier([]byte(testJWTSecret))
	require.NoError(t, err)
	token, err := v.Generate("ops@ahi", time.Hour, "v2")
	require.NoError(t, err)
	return token
}

func TestHandleGenesis_FirstAndRepeat(t *testing.T) {
	gw, ms := newTestGateway(t)

	rec := serve(gw, httptest.NewRequest(http.MethodGet, "/igniteGenesis", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var first GenesisResponse
	decodeJSON(t, rec.Body, &first)
	assert.Equal(t, certify.MessageIgnited, first.Message)
	assert.Equal(t, integrity.Hash(config.DefaultManifesto), first.Log["integrity_hash"])
	assert.Equal(t, config.DefaultNodeID, first.Log["node_id"])
	assert.Equal(t, certify.StatusIgnited, first.Log["status"])
	assert.Equal(t, config.DefaultManifesto, first.Log["manifesto"])
	assert.NotEmpty(t, first.Log["timestamp"])

	// Any method works
	rec = serve(gw, postJSON("/igniteGenesis", `{}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var second GenesisResponse
	decodeJSON(t, rec.Body, &second)
	assert.Equal(t, certify.MessageAlreadyIgnited, second.Message)
	assert.Equal(t, first.Log["integrity_hash"], second.Log["integrity_hash"])

	assert.Equal(t, 1, ms.Count(config.DefaultGenesisCollection))
}

func TestHandleGenesis_StoreFailure(t *testing.T) {
	gw, ms := newTestGateway(t)
	ms.FailWith(errors.New("firestore unavailable"))

	rec := serve(gw, httptest.NewRequest(http.MethodPost, "/igniteGenesis", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Ignition Failed.", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestHandleCertify_Verified(t *testing.T) {
	gw, ms := newTestGateway(t)

	rec := serve(gw, postJSON("/processPromptAndCertify", `{"prompt":"hola"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got CertifyResponse
	decodeJSON(t, strings.NewReader(rec.Body.String()), &got)

	assert.Equal(t, certify.Respond("hola"), got.Response)
	assert.Equal(t, certify.StatusVerified, got.Certification.Status)
	assert.InDelta(t, 0.88895, got.Certification.Stability, 1e-9)
	assert.Equal(t, 0.8889499999999999, got.Certification.Stability)
	assert.Len(t, got.Certification.Hash, 64)

	assert.Equal(t, got.Certification.Hash, rec.Header().Get(headerIntegrity))
	assert.Equal(t, formatScore(got.Certification.Stability), rec.Header().Get(headerStability))
	assert.Equal(t, "us-central1", rec.Header().Get(headerRegion))

	assert.Equal(t, 1, ms.Count(config.DefaultCertifyCollection))
	snaps, err := ms.Where(t.Context(), config.DefaultCertifyCollection, "hash", got.Certification.Hash)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "hola", snaps[0].Data["prompt"])
}

func TestHandleCertify_PromptSources(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
	}{
		{"body prompt", postJSON("/processPromptAndCertify", `{"prompt":"hola"}`)},
		{"callable data envelope", postJSON("/processPromptAndCertify", `{"data":{"prompt":"hola"}}`)},
		{"query string", httptest.NewRequest(http.MethodGet, "/processPromptAndCertify?prompt=hola", nil)},
		{"body wins over query", postJSON("/processPromptAndCertify?prompt=adios", `{"prompt":"hola"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, _ := newTestGateway(t)

			rec := serve(gw, tt.req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var got CertifyResponse
			decodeJSON(t, rec.Body, &got)
			assert.Equal(t, certify.Respond("hola"), got.Response)
		})
	}
}

func TestHandleCertify_MissingPrompt(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
	}{
		{"no body", httptest.NewRequest(http.MethodPost, "/processPromptAndCertify", nil)},
		{"empty prompt", postJSON("/processPromptAndCertify", `{"prompt":""}`)},
		{"numeric prompt", postJSON("/processPromptAndCertify", `{"prompt":42}`)},
		{"malformed json", postJSON("/processPromptAndCertify", `{"prompt":`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, ms := newTestGateway(t)

			rec := serve(gw, tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var got ErrorResponse
			decodeJSON(t, rec.Body, &got)
			assert.Equal(t, "Prompt required.", got.Error)
			assert.Equal(t, 0, ms.AddCount())
		})
	}
}

func TestHandleCertify_Degraded(t *testing.T) {
	gw, ms := newTestGateway(t, WithAuditor(func(prompt, response string) omega.Result {
		return omega.Result{Wisdom: omega.Wisdom, Stability: 0.5}
	}))

	rec := serve(gw, postJSON("/processPromptAndCertify", `{"prompt":"hola"}`))
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)

	var got DegradedResponse
	decodeJSON(t, rec.Body, &got)
	assert.Equal(t, "STATE_DEGRADED", got.Error)
	assert.Equal(t, "Structural Stability Threshold not met. Output silenced to prevent hallucination.", got.Message)
	assert.Equal(t, 0.5, got.Stability)

	assert.Empty(t, rec.Header().Get(headerIntegrity))
	assert.Equal(t, 0, ms.AddCount())
}

func TestHandleCertify_StoreFailure(t *testing.T) {
	gw, ms := newTestGateway(t)
	ms.FailWith(errors.New("disk full"))

	rec := serve(gw, postJSON("/processPromptAndCertify", `{"prompt":"hola"}`))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "disk full")

	var got ErrorResponse
	decodeJSON(t, strings.NewReader(body), &got)
	assert.Equal(t, "INTERNAL", got.Error)
	assert.NotEmpty(t, got.Message)
}

func TestHandleCertify_PlainErrors(t *testing.T) {
	gw, _ := newTestGateway(t)

	req := httptest.NewRequest(http.MethodPost, "/v2/processPromptAndCertify", nil)
	req.Header.Set("Authorization", "Bearer "+v2Token(t))

	rec := serve(gw, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Prompt required.", rec.Body.String())
}

func TestHandleCertify_NoMirrorHeaders(t *testing.T) {
	gw, _ := newTestGateway(t)

	req := postJSON("/v2/processPromptAndCertify", `{"prompt":"hola"}`)
	req.Header.Set("Authorization", "Bearer "+v2Token(t))

	rec := serve(gw, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get(headerIntegrity))
	assert.Empty(t, rec.Header().Get(headerStability))
	assert.Equal(t, "europe-west1", rec.Header().Get(headerRegion))
}

func TestHandleCertify_BodyNotHTMLEscaped(t *testing.T) {
	gw, _ := newTestGateway(t)

	rec := serve(gw, postJSON("/processPromptAndCertify", `{"prompt":"<b>&</b>"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<b>&</b>")
}

func TestHandleCertify_LogsInvoker(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ms := store.NewMockStore()
	require.NoError(t, ms.SetSecret(t.Context(), &store.Secret{Key: "omega-key", Value: `{"k":"v"}`}))
	gw, err := New(testConfig(t), logger, WithStore(ms))
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })

	req := postJSON("/v2/processPromptAndCertify", `{"prompt":"hola"}`)
	req.Header.Set("Authorization", "Bearer "+v2Token(t))
	rec := serve(gw, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, buf.String(), `msg="prompt certified"`)
	assert.Contains(t, buf.String(), "invoker=ops@ahi")

	buf.Reset()
	req = httptest.NewRequest(http.MethodPost, "/v2/processPromptAndCertify", nil)
	req.Header.Set("Authorization", "Bearer "+v2Token(t))
	rec = serve(gw, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, buf.String(), `msg="certification rejected"`)
	assert.Contains(t, buf.String(), "variant=v2")
	assert.Contains(t, buf.String(), "invoker=ops@ahi")
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "0.88895", formatScore(0.88895))
	assert.Equal(t, "1", formatScore(1))
	assert.Equal(t, "0.842", formatScore(omega.Threshold))
}
