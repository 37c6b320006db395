package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/apperrors"
	"github.com/groundline-ai/groundline-engine/pkg/services"
)

type fakePipeline struct {
	answer      *services.Answer
	err         error
	invalidated []string
}

func (p *fakePipeline) Answer(_ context.Context, _, _ string) (*services.Answer, error) {
	return p.answer, p.err
}

func (p *fakePipeline) InvalidateCache(_ context.Context, databaseID string) {
	p.invalidated = append(p.invalidated, databaseID)
}

func newMux(p *fakePipeline) *http.ServeMux {
	mux := http.NewServeMux()
	NewQueryHandler(p, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func postJSON(t *testing.T, mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestQuery_Success(t *testing.T) {
	p := &fakePipeline{answer: &services.Answer{
		SQL:   "SELECT COUNT(*) FROM employees LIMIT 1000;",
		Trace: &services.Trace{QueryID: "q-1", Intent: "count"},
	}}

	rec := postJSON(t, newMux(p), "/query",
		`{"database_id":"erp-main","question":"How many employees are there?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got services.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "SELECT COUNT(*) FROM employees LIMIT 1000;", got.SQL)
	assert.Equal(t, "q-1", got.Trace.QueryID)
}

func TestQuery_MalformedBody(t *testing.T) {
	rec := postJSON(t, newMux(&fakePipeline{}), "/query", "{not json")

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp QueryErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_input", resp.ErrorKind)
	assert.False(t, resp.Recoverable)
}

func TestQuery_ErrorKindStatusMapping(t *testing.T) {
	tests := []struct {
		kind       apperrors.Kind
		wantStatus int
	}{
		{apperrors.KindInvalidInput, http.StatusBadRequest},
		{apperrors.KindNotFound, http.StatusNotFound},
		{apperrors.KindTimeout, http.StatusGatewayTimeout},
		{apperrors.KindUnavailable, http.StatusServiceUnavailable},
		{apperrors.KindCancelled, 499},
		{apperrors.KindValidationFailed, http.StatusUnprocessableEntity},
		{apperrors.KindGenerationFailed, http.StatusUnprocessableEntity},
		{apperrors.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			p := &fakePipeline{err: apperrors.New(tt.kind, true, "try again")}

			rec := postJSON(t, newMux(p), "/query",
				`{"database_id":"erp-main","question":"q"}`)

			require.Equal(t, tt.wantStatus, rec.Code)
			var resp QueryErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, string(tt.kind), resp.ErrorKind)
			assert.True(t, resp.Recoverable)
			assert.Equal(t, "try again", resp.Hint)
		})
	}
}

func TestQuery_OpaqueErrorIsInternal(t *testing.T) {
	p := &fakePipeline{err: assert.AnError}

	rec := postJSON(t, newMux(p), "/query", `{"question":"q"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	// The underlying message must not leak.
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestInvalidateCache(t *testing.T) {
	p := &fakePipeline{}

	rec := postJSON(t, newMux(p), "/invalidate_cache", `{"database_id":"erp-main"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"erp-main"}, p.invalidated)
}

func TestInvalidateCache_MalformedBody(t *testing.T) {
	p := &fakePipeline{}

	rec := postJSON(t, newMux(p), "/invalidate_cache", "not json")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, p.invalidated)
}
