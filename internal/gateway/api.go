// ABOUTME: HTTP handlers for genesis ignition and prompt certification
// ABOUTME: Maps certify service outcomes onto status codes, JSON bodies, and integrity headers

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ahi-governance/alpha-core/internal/auth"
	"github.com/ahi-governance/alpha-core/internal/certify"
	"github.com/ahi-governance/alpha-core/internal/config"
	"github.com/ahi-governance/alpha-core/internal/store"
)

// maxBodyBytes caps certification request bodies
const maxBodyBytes = 1 << 20

const (
	msgIgnitionFailed = "Ignition Failed."
	msgPromptRequired = "Prompt required."
	msgDegraded       = "Structural Stability Threshold not met. Output silenced to prevent hallucination."
	msgCertifyFailed  = "Certification failed."
)

// GenesisResponse is the body of a successful genesis request
type GenesisResponse struct {
	Message string         `json:"message"`
	Log     store.Document `json:"log"`
}

// CertificationInfo is the certification block of a certify response
type CertificationInfo struct {
	Hash      string  `json:"hash"`
	Stability float64 `json:"stability"`
	Status    string  `json:"status"`
}

// CertifyResponse is the body of a successful certification request
type CertifyResponse struct {
	Response      string            `json:"response"`
	Certification CertificationInfo `json:"certification"`
}

// DegradedResponse is the body of a 412 certification rejection
type DegradedResponse struct {
	Error     string  `json:"error"`
	Message   string  `json:"message"`
	Stability float64 `json:"stability"`
}

// ErrorResponse is the body of other JSON errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// certifyRequest accepts both the plain and the callable envelope.
type certifyRequest struct {
	Prompt any `json:"prompt"`
	Data   *struct {
		Prompt any `json:"prompt"`
	} `json:"data"`
}

// handleGenesis records the node's genesis log on first call.
func (g *Gateway) handleGenesis(w http.ResponseWriter, r *http.Request) {
	result, err := g.service.Ignite(r.Context())
	if err != nil {
		g.logger.Error("genesis ignition failed", "error", err)
		sendText(w, http.StatusInternalServerError, msgIgnitionFailed)
		return
	}

	writeJSON(w, http.StatusOK, GenesisResponse{Message: result.Message, Log: result.Log})
}

// certifyHandler answers and certifies a prompt for variant v.
func (g *Gateway) certifyHandler(v config.VariantConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prompt := extractPrompt(r)

		cert, err := g.service.Certify(r.Context(), prompt)
		logger := g.logger.With("variant", v.Name)
		if inv := auth.FromContext(r.Context()); inv != nil {
			logger = logger.With("invoker", inv.Subject)
		}
		if certify.IsRejection(err) {
			logger.Info("certification rejected", "reason", err)
		}

		var degraded *certify.DegradedStateError
		switch {
		case errors.Is(err, certify.ErrPromptRequired):
			if v.PlainErrors {
				sendText(w, http.StatusBadRequest, msgPromptRequired)
			} else {
				sendJSONError(w, http.StatusBadRequest, msgPromptRequired)
			}
			return
		case errors.As(err, &degraded):
			writeJSON(w, http.StatusPreconditionFailed, DegradedResponse{
				Error:     "STATE_DEGRADED",
				Message:   msgDegraded,
				Stability: degraded.Stability,
			})
			return
		case err != nil:
			logger.Error("certification failed", "error", err)
			sendInternalError(w, v.PlainErrors, msgCertifyFailed)
			return
		}

		logger.Debug("prompt certified", "hash", cert.Hash)
		if v.MirrorHeaders {
			w.Header().Set(headerIntegrity, cert.Hash)
			w.Header().Set(headerStability, formatScore(cert.Stability))
		}

		writeJSON(w, http.StatusOK, CertifyResponse{
			Response: cert.Response,
			Certification: CertificationInfo{
				Hash:      cert.Hash,
				Stability: cert.Stability,
				Status:    cert.Status,
			},
		})
	})
}

// extractPrompt reads the prompt from body.prompt, body.data.prompt, or the
// query string, in that order. Non-string values count as missing.
func extractPrompt(r *http.Request) string {
	if r.Body != nil && r.Body != http.NoBody {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err == nil && len(body) > 0 {
			var req certifyRequest
			if json.Unmarshal(body, &req) == nil {
				if s, ok := req.Prompt.(string); ok && s != "" {
					return s
				}
				if req.Data != nil {
					if s, ok := req.Data.Prompt.(string); ok && s != "" {
						return s
					}
				}
			}
		}
	}
	return r.URL.Query().Get("prompt")
}

// formatScore renders a score the shortest way that round-trips.
func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func sendJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func sendInternalError(w http.ResponseWriter, plain bool, msg string) {
	if plain {
		sendText(w, http.StatusInternalServerError, msg)
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL", Message: msg})
}

func sendText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
