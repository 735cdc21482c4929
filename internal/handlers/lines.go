package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"rizzmate-gateway/internal/counters"
	"rizzmate-gateway/internal/library"
	"rizzmate-gateway/internal/trending"
	"rizzmate-gateway/pkg/logging/logging"
)

// LinesHandler serves the stock line library and records engagement on it.
type LinesHandler struct {
	Lines    []library.Line
	Counters counters.Store
	Now      func() time.Time
}

func NewLinesHandler(lines []library.Line, store counters.Store) *LinesHandler {
	return &LinesHandler{Lines: lines, Counters: store, Now: time.Now}
}

type rankedLine struct {
	library.Line
	Score float64 `json:"score"`
}

type linesResponse struct {
	Category library.Category `json:"category"`
	Lines    []rankedLine     `json:"lines"`
}

// List handles GET /v1/lines?category=. Lines come back in trending order.
func (h *LinesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	category, err := library.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		badRequest(w, r, err)
		return
	}

	metrics, err := h.Counters.Read(ctx)
	if err != nil {
		logging.L(ctx).Warn("counters_read_error", zap.Error(err))
		metrics = map[string]trending.LineMetric{}
	}

	now := h.Now()
	ranked := trending.Rank(library.Filter(h.Lines, category),
		func(l library.Line) string { return l.ID }, metrics, now)

	resp := linesResponse{Category: category, Lines: make([]rankedLine, 0, len(ranked))}
	for _, l := range ranked {
		var score float64
		if m, ok := metrics[l.ID]; ok {
			score = trending.Score(m, now)
		}
		resp.Lines = append(resp.Lines, rankedLine{Line: l, Score: score})
	}
	writeJSON(w, http.StatusOK, resp)
}

type lineEvent struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (e lineEvent) lineID() (string, error) {
	if id := strings.TrimSpace(e.ID); id != "" {
		return id, nil
	}
	if strings.TrimSpace(e.Text) == "" {
		return "", errors.New("id or text is required")
	}
	return trending.LineID(e.Text), nil
}

// Copy handles POST /v1/lines/copy.
func (h *LinesHandler) Copy(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, counters.Copies)
}

// Save handles POST /v1/lines/save.
func (h *LinesHandler) Save(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, counters.Saves)
}

// record bumps a counter. Store failures are logged and not surfaced, the
// event is fire-and-forget for clients.
func (h *LinesHandler) record(w http.ResponseWriter, r *http.Request, field counters.Field) {
	var ev lineEvent
	if err := decodeJSON(r, &ev); err != nil {
		badRequest(w, r, err)
		return
	}
	id, err := ev.lineID()
	if err != nil {
		badRequest(w, r, err)
		return
	}

	if _, err := counters.Bump(r.Context(), h.Counters, id, field); err != nil {
		logging.L(r.Context()).Warn("counter_bump_error",
			zap.String("id", id),
			zap.String("field", string(field)),
			zap.Error(err),
		)
	}
	w.WriteHeader(http.StatusNoContent)
}
