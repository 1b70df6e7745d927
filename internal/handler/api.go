package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/pavelanni/feedback/internal/model"
)

// apiError is the JSON body of a failed API call.
type apiError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, apiError{Status: status, Error: msg})
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		renderError(w, r, http.StatusNotFound, "no history database configured")
		return
	}
	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []model.RunSummary{}
	}
	render.JSON(w, r, runs)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		renderError(w, r, http.StatusNotFound, "no history database configured")
		return
	}
	id := chi.URLParam(r, "runID")
	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		slog.Error("failed to get run", "run_id", id, "error", err)
		renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		renderError(w, r, http.StatusNotFound, "run not found")
		return
	}
	render.JSON(w, r, run)
}
