package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CTAG07/epptmpl/pkg/templating"
	"gopkg.in/yaml.v3"
)

// maxBodyBytes bounds request bodies accepted by the preview endpoints.
const maxBodyBytes = 1 << 20

// TemplateAPI holds the dependencies for the template API handlers.
type TemplateAPI struct {
	tm     *templating.TemplateManager
	fsys   fs.FS
	logger *slog.Logger
}

// renderRequest is the body of a render call. It may be JSON or YAML.
type renderRequest struct {
	Template string         `yaml:"template"`
	Data     map[string]any `yaml:"data"`
}

// testRequest is the body of a test call: template source rendered without
// being saved anywhere.
type testRequest struct {
	Source string         `yaml:"source"`
	Data   map[string]any `yaml:"data"`
}

// NewTemplateAPI creates a new instance of the TemplateAPI.
func NewTemplateAPI(tm *templating.TemplateManager, fsys fs.FS, logger *slog.Logger) *TemplateAPI {
	return &TemplateAPI{
		tm:     tm,
		fsys:   fsys,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/templates and /api/cache endpoints.
func (t *TemplateAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/templates/render", t.handleRender)
	mux.HandleFunc("/api/templates/test", t.handleTest)
	mux.HandleFunc("/api/templates", t.handleList)
	mux.HandleFunc("/api/templates/", t.handleSource)
	mux.HandleFunc("/api/cache/clear", t.handleClearCache)
}

// handleList returns the identifiers of all available templates.
func (t *TemplateAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	ids, err := t.tm.Templates()
	if err != nil {
		t.logger.Error("Failed to list templates", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list templates: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, ids)
}

// handleSource returns the raw source of a single template.
func (t *TemplateAPI) handleSource(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/templates/")
	if name == "" || !fs.ValidPath(name) {
		respondWithError(w, http.StatusBadRequest, "Invalid template name")
		return
	}
	content, err := fs.ReadFile(t.fsys, name)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Template not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(content)
}

// handleRender renders a stored template with the data in the request body.
func (t *TemplateAPI) handleRender(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req renderRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Template == "" {
		respondWithError(w, http.StatusBadRequest, "Field 'template' is required")
		return
	}

	out, err := t.tm.RenderContext(r.Context(), req.Template, req.Data)
	if err != nil {
		t.logger.Debug("Preview render failed", "template", req.Template, "error", err)
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	writeXML(w, out)
}

// handleTest renders template source from the request body without saving it.
func (t *TemplateAPI) handleTest(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req testRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := t.tm.RenderString(req.Source, req.Data)
	if err != nil {
		respondWithError(w, statusFor(err), fmt.Sprintf("Template execution failed: %v", err))
		return
	}
	writeXML(w, out)
}

// handleClearCache drops every compiled template.
func (t *TemplateAPI) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := t.tm.ClearCacheContext(r.Context()); err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to clear cache: %v", err))
		return
	}
	t.logger.Info("Compiled templates cleared via API")
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody reads a JSON or YAML request body into v.
func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if err = yaml.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps a render error to the HTTP status reported for it.
func statusFor(err error) int {
	var (
		lookupErr *templating.LookupError
		exprErr   *templating.ExpressionError
		docErr    *templating.DocumentFormatError
	)
	switch {
	case errors.As(err, &lookupErr):
		return http.StatusNotFound
	case errors.As(err, &exprErr), errors.As(err, &docErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeXML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = io.WriteString(w, doc)
}
