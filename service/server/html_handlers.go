package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

const bridgeSocketPath = "/api/v1/wallet/bridge"

// TemplateRenderer renders the embedded pages served next to the API.
type TemplateRenderer struct {
	pages  *template.Template
	logger *slog.Logger
}

func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	pages, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &TemplateRenderer{pages: pages, logger: logger}, nil
}

// Render executes the named page into a buffer first so a template error
// never leaves a half-written response.
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data any) error {
	var buf bytes.Buffer
	if err := tr.pages.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

type bridgePageData struct {
	SocketPath string
}

// handleBridgePage serves the page that relays connect and sign requests to
// the browser wallet extension over the bridge socket.
func handleBridgePage(renderer *TemplateRenderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := renderer.Render(w, "bridge.html", bridgePageData{SocketPath: bridgeSocketPath})
		if err != nil {
			renderer.logger.ErrorContext(r.Context(), "failed to render bridge page", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}
