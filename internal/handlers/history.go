package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"rizzmate-gateway/internal/counters"
	"rizzmate-gateway/internal/generation"
	"rizzmate-gateway/internal/history"
	"rizzmate-gateway/internal/trending"
	"rizzmate-gateway/pkg/logging/logging"
)

// HistoryHandler exposes saved replies. Saving a reply also counts as a
// save event for its text.
type HistoryHandler struct {
	Store    *history.Store
	Counters counters.Store
}

func NewHistoryHandler(store *history.Store, counterStore counters.Store) *HistoryHandler {
	return &HistoryHandler{Store: store, Counters: counterStore}
}

type historyResponse struct {
	Items []history.Item `json:"items"`
}

type addHistoryRequest struct {
	Text string `json:"text"`
	Tone string `json:"tone"`
}

// List handles GET /v1/history.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.List(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Items: items})
}

// Add handles POST /v1/history.
func (h *HistoryHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addHistoryRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if strings.TrimSpace(req.Tone) != "" {
		tone, err := generation.ParseTone(req.Tone)
		if err != nil {
			badRequest(w, r, err)
			return
		}
		req.Tone = string(tone)
	}

	item, err := h.Store.Add(ctx, req.Text, req.Tone)
	if errors.Is(err, history.ErrEmptyText) {
		badRequest(w, r, err)
		return
	}
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	if _, err := counters.Bump(ctx, h.Counters, trending.LineID(item.Text), counters.Saves); err != nil {
		logging.L(ctx).Warn("counter_bump_error", zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, item)
}

// Delete handles DELETE /v1/history/{id}.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /v1/history.
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Clear(r.Context()); err != nil {
		h.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HistoryHandler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	logging.L(r.Context()).Error("history_store_error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "storage_error", "Could not reach saved replies. Try again.")
}
