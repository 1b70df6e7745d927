// Package handler serves the generated documents for preview: an index of
// the output directory, the files themselves and the run history.
package handler

import (
	"cmp"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/feedback/internal/config"
	"github.com/pavelanni/feedback/internal/i18n"
	"github.com/pavelanni/feedback/internal/model"
	"github.com/pavelanni/feedback/internal/store"
	"github.com/pavelanni/feedback/internal/views"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	dir     string
	store   *store.Store
	catalog *i18n.Catalog
	config  config.ServeConfig
}

// New creates a new Handler serving dir. s may be nil when no history
// database is configured.
func New(dir string, s *store.Store, cat *i18n.Catalog, cfg config.ServeConfig) *Handler {
	cfg.BasePath = strings.TrimRight(cfg.BasePath, "/")
	return &Handler{dir: dir, store: s, catalog: cat, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.requireAuth)
	r.Use(h.catalog.Middleware)

	r.Get("/", h.handleIndex)
	r.Get("/files/{name}", h.handleFile)
	r.Get("/api/runs", h.handleRuns)
	r.Get("/api/runs/{runID}", h.handleRun)
}

func (h *Handler) listFiles() ([]views.File, error) {
	entries, err := os.ReadDir(h.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var files []views.File
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, views.File{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	// Class documents start with 00 and sort first.
	slices.SortFunc(files, func(a, b views.File) int { return cmp.Compare(a.Name, b.Name) })
	return files, nil
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	files, err := h.listFiles()
	if err != nil {
		slog.Error("failed to list output directory", "dir", h.dir, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var runs []model.RunSummary
	if h.store != nil {
		runs, err = h.store.ListRuns(r.Context())
		if err != nil {
			slog.Error("failed to list runs", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.IndexPage(h.config.BasePath, files, runs).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(h.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	// LaTeX sources and plot data are shown inline as text.
	switch filepath.Ext(name) {
	case ".tex", ".log":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	http.ServeFile(w, r, path)
}
