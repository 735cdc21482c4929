package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"rizzmate-gateway/internal/generation"
	"rizzmate-gateway/pkg/logging/logging"
)

// seedRuneLimit bounds the seed text forwarded to the provider.
const seedRuneLimit = 4000

// maxBatchCount caps the count a caller can request per tone.
const maxBatchCount = 10

type ReplyGenerator interface {
	GenerateOne(ctx context.Context, seed string, tone generation.Tone) (string, error)
	GenerateBatch(ctx context.Context, seed string, tone generation.Tone, count int) ([]string, error)
	GenerateAllTones(ctx context.Context, seed string, count int) (map[generation.Tone][]string, error)
}

// ReplyHandler holds dependencies for the /v1/replies endpoints.
type ReplyHandler struct {
	Generator ReplyGenerator
	VersionID string
}

func NewReplyHandler(gen ReplyGenerator, versionID string) *ReplyHandler {
	return &ReplyHandler{Generator: gen, VersionID: versionID}
}

type replyRequest struct {
	Seed  string `json:"seed"`
	Tone  string `json:"tone"`
	Count int    `json:"count"`
}

func (req *replyRequest) validate(needTone bool) (generation.Tone, error) {
	req.Seed = generation.Seed(req.Seed, seedRuneLimit)
	if req.Seed == "" {
		return "", fmt.Errorf("seed is required")
	}
	if req.Count < 0 || req.Count > maxBatchCount {
		return "", fmt.Errorf("count must be within [0, %d]", maxBatchCount)
	}
	if !needTone {
		return "", nil
	}
	return generation.ParseTone(req.Tone)
}

type oneResponse struct {
	Tone      generation.Tone `json:"tone"`
	Reply     string          `json:"reply"`
	VersionID string          `json:"version_id"`
}

type batchResponse struct {
	Tone      generation.Tone `json:"tone"`
	Replies   []string        `json:"replies"`
	VersionID string          `json:"version_id"`
}

type toneReplies struct {
	Tone    generation.Tone `json:"tone"`
	Replies []string        `json:"replies"`
}

type allResponse struct {
	Tones     []toneReplies `json:"tones"`
	VersionID string        `json:"version_id"`
}

// One handles POST /v1/replies/one.
func (h *ReplyHandler) One(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	tone, err := req.validate(true)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	r = r.WithContext(logging.WithFields(r.Context(), zap.String("tone", string(tone))))
	start := time.Now()
	reply, err := h.Generator.GenerateOne(r.Context(), req.Seed, tone)
	if err != nil {
		writeGenerationError(w, r, err)
		return
	}

	logging.L(r.Context()).Info("reply_generated",
		zap.String("mode", "one"),
		zap.Duration("latency", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, oneResponse{Tone: tone, Reply: reply, VersionID: h.VersionID})
}

// Batch handles POST /v1/replies/batch.
func (h *ReplyHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	tone, err := req.validate(true)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	r = r.WithContext(logging.WithFields(r.Context(), zap.String("tone", string(tone))))
	start := time.Now()
	replies, err := h.Generator.GenerateBatch(r.Context(), req.Seed, tone, req.Count)
	if err != nil {
		writeGenerationError(w, r, err)
		return
	}

	logging.L(r.Context()).Info("reply_generated",
		zap.String("mode", "batch"),
		zap.Int("replies", len(replies)),
		zap.Duration("latency", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, batchResponse{Tone: tone, Replies: replies, VersionID: h.VersionID})
}

// All handles POST /v1/replies/all. Tones are listed in generation order;
// a tone in the body is ignored.
func (h *ReplyHandler) All(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if _, err := req.validate(false); err != nil {
		badRequest(w, r, err)
		return
	}

	start := time.Now()
	byTone, err := h.Generator.GenerateAllTones(r.Context(), req.Seed, req.Count)
	if err != nil {
		writeGenerationError(w, r, err)
		return
	}

	resp := allResponse{Tones: make([]toneReplies, 0, len(generation.Tones)), VersionID: h.VersionID}
	for _, tone := range generation.Tones {
		replies := byTone[tone]
		if replies == nil {
			replies = []string{}
		}
		resp.Tones = append(resp.Tones, toneReplies{Tone: tone, Replies: replies})
	}

	logging.L(r.Context()).Info("reply_generated",
		zap.String("mode", "all"),
		zap.Duration("latency", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, resp)
}
