// ABOUTME: Renders the node manifesto as an HTML page
// ABOUTME: The page is built once at startup and served with its integrity hash header

package gateway

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/ahi-governance/alpha-core/internal/integrity"
)

//go:embed templates/*.html
var templateFS embed.FS

var manifestoTmpl = template.Must(template.ParseFS(templateFS, "templates/manifesto.html"))

type manifestoPage struct {
	html []byte
	hash string
	err  error
}

func newManifestoPage(nodeID, manifesto string) *manifestoPage {
	page := &manifestoPage{hash: integrity.Hash(manifesto)}

	var mdBuf bytes.Buffer
	if err := goldmark.Convert([]byte(manifesto), &mdBuf); err != nil {
		page.err = err
		return page
	}

	data := struct {
		NodeID  string
		Hash    string
		Content template.HTML
	}{
		NodeID:  nodeID,
		Hash:    page.hash,
		Content: template.HTML(mdBuf.String()),
	}

	var out bytes.Buffer
	if err := manifestoTmpl.Execute(&out, data); err != nil {
		page.err = err
		return page
	}
	page.html = out.Bytes()
	return page
}

// handleManifesto serves the rendered manifesto
func (g *Gateway) handleManifesto(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		sendText(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if g.manifesto.err != nil {
		g.logger.Error("failed to render manifesto", "error", g.manifesto.err)
		sendText(w, http.StatusInternalServerError, "Failed to render manifesto.")
		return
	}

	w.Header().Set(headerIntegrity, g.manifesto.hash)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(g.manifesto.html)
}
