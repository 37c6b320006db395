// Package handlers exposes the engine over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/apperrors"
	"github.com/groundline-ai/groundline-engine/pkg/services"
)

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	DatabaseID string `json:"database_id"`
	Question   string `json:"question"`
}

// QueryErrorResponse is the failure surface. Store and sidecar messages
// never appear here; only the kind, recoverability, and hint do.
type QueryErrorResponse struct {
	ErrorKind   string `json:"error_kind"`
	Recoverable bool   `json:"recoverable"`
	Hint        string `json:"hint,omitempty"`
}

// Answerer is the slice of the pipeline the handler needs.
type Answerer interface {
	Answer(ctx context.Context, databaseID, question string) (*services.Answer, error)
	InvalidateCache(ctx context.Context, databaseID string)
}

// QueryHandler serves question answering and cache invalidation.
type QueryHandler struct {
	pipeline Answerer
	logger   *zap.Logger
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(pipeline Answerer, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{pipeline: pipeline, logger: logger.Named("query_handler")}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /query", h.Query)
	mux.HandleFunc("POST /invalidate_cache", h.InvalidateCache)
}

// Query handles POST /query.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.New(apperrors.KindInvalidInput, false, "body must be JSON with a question field"))
		return
	}

	answer, err := h.pipeline.Answer(r.Context(), req.DatabaseID, req.Question)
	if err != nil {
		h.logger.Warn("query failed",
			zap.String("database_id", req.DatabaseID),
			zap.String("kind", string(apperrors.KindOf(err))),
			zap.Error(err))
		writeError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, answer); err != nil {
		h.logger.Error("failed to encode answer", zap.Error(err))
	}
}

// InvalidateCache handles POST /invalidate_cache.
func (h *QueryHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.New(apperrors.KindInvalidInput, false, "body must be JSON with a database_id field"))
		return
	}
	h.pipeline.InvalidateCache(r.Context(), req.DatabaseID)
	w.WriteHeader(http.StatusAccepted)
}

// writeError maps an error kind to an HTTP status and the closed error
// surface.
func writeError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperrors.KindInvalidInput:
		status = http.StatusBadRequest
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindTimeout:
		status = http.StatusGatewayTimeout
	case apperrors.KindUnavailable:
		status = http.StatusServiceUnavailable
	case apperrors.KindCancelled:
		status = 499 // client closed request
	case apperrors.KindValidationFailed, apperrors.KindGenerationFailed:
		status = http.StatusUnprocessableEntity
	}

	resp := QueryErrorResponse{
		ErrorKind:   string(kind),
		Recoverable: apperrors.IsRecoverable(err),
	}
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		resp.Hint = ae.Hint
	}
	_ = WriteJSON(w, status, resp)
}
