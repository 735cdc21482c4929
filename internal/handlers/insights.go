package handlers

import (
	"context"
	"errors"
	"net/http"

	"rizzmate-gateway/internal/insights"
)

type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (insights.Result, error)
}

type InsightsHandler struct {
	Analyzer Analyzer
}

func NewInsightsHandler(a Analyzer) *InsightsHandler {
	return &InsightsHandler{Analyzer: a}
}

type compatibilityRequest struct {
	Transcript string `json:"transcript"`
}

// Compatibility handles POST /v1/insights/compatibility.
func (h *InsightsHandler) Compatibility(w http.ResponseWriter, r *http.Request) {
	var req compatibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	res, err := h.Analyzer.Analyze(r.Context(), req.Transcript)
	if errors.Is(err, insights.ErrEmptyTranscript) {
		badRequest(w, r, err)
		return
	}
	if err != nil {
		writeGenerationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
