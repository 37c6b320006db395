package sidecar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/apperrors"
	"github.com/groundline-ai/groundline-engine/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{BaseURL: server.URL, EmbedModel: "nomic-embed-text"}, zap.NewNop())
	require.NoError(t, err)
	return client, server
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(&Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestEmbed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "average salary", req.Text)
		assert.Equal(t, "nomic-embed-text", req.Model)
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2}})
	})

	embedding, err := client.Embed(context.Background(), "average salary")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, embedding)
	assert.True(t, client.Healthy())
}

func TestEmbed_EmptyEmbeddingIsGenerationFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{})
	})

	_, err := client.Embed(context.Background(), "q")

	require.Error(t, err)
	assert.Equal(t, apperrors.KindGenerationFailed, apperrors.KindOf(err))
}

func TestGenerateSQL(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate_sql", r.URL.Path)
		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "how many employees", req.Question)
		_ = json.NewEncoder(w).Encode(GenerateResponse{
			SQLCandidates: []RawCandidate{{SQL: "SELECT COUNT(*) FROM employees;", Index: 0, Score: 0.9}},
			Trace:         "model=sqlcoder",
		})
	})

	resp, err := client.GenerateSQL(context.Background(), &GenerateRequest{
		Question:      "how many employees",
		SchemaContext: &models.SchemaContextPacket{},
	})

	require.NoError(t, err)
	require.Len(t, resp.SQLCandidates, 1)
	assert.Equal(t, "model=sqlcoder", resp.Trace)
}

func TestGenerateSQL_NoCandidates(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(GenerateResponse{})
	})

	_, err := client.GenerateSQL(context.Background(), &GenerateRequest{})

	require.Error(t, err)
	assert.Equal(t, apperrors.KindGenerationFailed, apperrors.KindOf(err))
	assert.True(t, apperrors.IsRecoverable(err))
}

func TestPost_ServerErrorIsRecoverable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	})

	_, err := client.GenerateSQL(context.Background(), &GenerateRequest{})

	require.Error(t, err)
	assert.Equal(t, apperrors.KindGenerationFailed, apperrors.KindOf(err))
	assert.True(t, apperrors.IsRecoverable(err))
}

func TestPost_ClientErrorIsNotRecoverable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	})

	_, err := client.GenerateSQL(context.Background(), &GenerateRequest{})

	require.Error(t, err)
	assert.False(t, apperrors.IsRecoverable(err))
}

func TestPost_BreakerTripsOnConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client, err := NewClient(&Config{
		BaseURL: server.URL,
		Breaker: BreakerConfig{Threshold: 2},
	}, zap.NewNop())
	require.NoError(t, err)
	server.Close() // every request now fails at the TCP level

	for i := 0; i < 2; i++ {
		_, err := client.Embed(context.Background(), "q")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))
	}
	assert.False(t, client.Healthy())

	// The open circuit rejects without dialing.
	_, err = client.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))
}

func TestHealth_ClosesBreaker(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	for i := 0; i < 5; i++ {
		client.breaker.RecordFailure()
	}
	require.False(t, client.Healthy())

	require.NoError(t, client.Health(context.Background()))
	assert.True(t, client.Healthy())
}

func TestInvalidateCache_NeverPropagatesFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})

	// Fire-and-forget: the call must swallow the server error.
	client.InvalidateCache(context.Background(), "erp-main")
}
