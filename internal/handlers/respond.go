package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"rizzmate-gateway/internal/llm"
	"rizzmate-gateway/pkg/logging/logging"
)

// statusClientClosedRequest is returned when the caller went away first.
const statusClientClosedRequest = 499

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON is a small helper to send JSON responses consistently.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// decodeJSON reads a single JSON object from the body.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}
		return err
	}
	return nil
}

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	logging.L(r.Context()).Warn("invalid request", zap.Error(err))
	writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
}

// writeGenerationError maps provider failures to a status and a short
// user-facing message.
func writeGenerationError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.L(r.Context())

	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("client went away", zap.Error(err))
		writeError(w, statusClientClosedRequest, "canceled", "Request canceled.")
		return
	case errors.Is(err, context.DeadlineExceeded) && llm.KindOf(err) == "":
		logger.Warn("generation deadline exceeded", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, string(llm.KindTimeout), "The request timed out. Try again.")
		return
	}

	code := llm.Code(err)
	status, message := http.StatusInternalServerError, "Something went wrong. Try again."

	switch llm.KindOf(err) {
	case llm.KindRateLimited:
		status, message = http.StatusTooManyRequests, "Too many requests. Try again in a few seconds."
	case llm.KindTimeout:
		status, message = http.StatusGatewayTimeout, "The request timed out. Try again."
	case llm.KindHTTP, llm.KindNetwork:
		status, message = http.StatusBadGateway, "The reply service is having trouble. Try again."
	case llm.KindEmptyResult:
		status, message = http.StatusBadGateway, "No replies came back. Try again."
	case llm.KindMissingCredentials:
		status, message = http.StatusServiceUnavailable, "Reply generation is not configured."
	default:
		code = "internal_error"
	}

	logger.Warn("generation failed",
		zap.String("code", code),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeError(w, status, code, message)
}
