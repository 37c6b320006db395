// Package sidecar is the HTTP/JSON client for the generation sidecar.
package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/apperrors"
	"github.com/groundline-ai/groundline-engine/pkg/models"
)

// Config holds sidecar client settings.
type Config struct {
	BaseURL         string
	EmbedModel      string
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
	Breaker         BreakerConfig
}

// Client talks to the generation sidecar. All calls respect the request
// context and are guarded by a shared circuit breaker.
type Client struct {
	baseURL    string
	embedModel string
	http       *http.Client
	embedTO    time.Duration
	generateTO time.Duration
	breaker    *Breaker
	logger     *zap.Logger
}

// NewClient creates a sidecar client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("sidecar base URL is required")
	}
	embedTO := cfg.EmbedTimeout
	if embedTO == 0 {
		embedTO = 30 * time.Second
	}
	generateTO := cfg.GenerateTimeout
	if generateTO == 0 {
		generateTO = 2 * time.Minute
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		embedModel: cfg.EmbedModel,
		http:       &http.Client{},
		embedTO:    embedTO,
		generateTO: generateTO,
		breaker:    NewBreaker(cfg.Breaker),
		logger:     logger.Named("sidecar"),
	}, nil
}

// GenerateRequest is the payload of POST /generate_sql.
type GenerateRequest struct {
	Question      string                      `json:"question"`
	SchemaContext *models.SchemaContextPacket `json:"schema_context"`
	LinkedBundle  *models.SchemaLinkBundle    `json:"linked_bundle,omitempty"`
	JoinPlan      *models.JoinPlan            `json:"join_plan,omitempty"`
	Prompt        string                      `json:"prompt,omitempty"`
}

// RawCandidate is one SQL alternative as produced by the sidecar.
type RawCandidate struct {
	SQL       string  `json:"sql"`
	Index     int     `json:"index"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale,omitempty"`
}

// GenerateResponse is the payload returned by /generate_sql and /repair_sql.
type GenerateResponse struct {
	SQLCandidates []RawCandidate `json:"sql_candidates"`
	Trace         string         `json:"trace,omitempty"`
}

// RepairRequest is the payload of POST /repair_sql.
type RepairRequest struct {
	SQL           string                      `json:"sql"`
	Errors        []string                    `json:"errors"`
	SchemaContext *models.SchemaContextPacket `json:"schema_context"`
}

type embedRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type embedResponse struct {
	Embedding  []float32 `json:"embedding"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
}

type embedBatchRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type embedBatchResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Count      int         `json:"count"`
}

// GenerateSQL asks the sidecar for N SQL candidates from the assembled
// grounding context.
func (c *Client) GenerateSQL(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.post(ctx, "/generate_sql", req, &resp, c.generateTO); err != nil {
		return nil, err
	}
	if len(resp.SQLCandidates) == 0 {
		return nil, apperrors.New(apperrors.KindGenerationFailed, true, "sidecar returned no candidates")
	}
	return &resp, nil
}

// RepairSQL asks the sidecar to repair a rejected candidate given the
// compressed validator instructions.
func (c *Client) RepairSQL(ctx context.Context, req *RepairRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.post(ctx, "/repair_sql", req, &resp, c.generateTO); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Embed returns the dense embedding of one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	err := c.post(ctx, "/embed", &embedRequest{Text: text, Model: c.embedModel}, &resp, c.embedTO)
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, apperrors.New(apperrors.KindGenerationFailed, true, "sidecar returned empty embedding")
	}
	return resp.Embedding, nil
}

// EmbedBatch returns embeddings for several texts in one call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embedBatchResponse
	err := c.post(ctx, "/embed_batch", &embedBatchRequest{Texts: texts, Model: c.embedModel}, &resp, c.embedTO)
	if err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

// Health probes GET /health. A success closes the circuit breaker.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, false)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return apperrors.Wrap(err, apperrors.KindUnavailable, true)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperrors.New(apperrors.KindUnavailable, true,
			fmt.Sprintf("sidecar health returned %d", resp.StatusCode))
	}
	c.breaker.RecordSuccess()
	return nil
}

// InvalidateCache tells the sidecar to drop cached state for a database.
// Fire-and-forget: failures are logged, never propagated.
func (c *Client) InvalidateCache(ctx context.Context, databaseID string) {
	body := map[string]string{"database_id": databaseID}
	if err := c.post(ctx, "/invalidate_cache", body, nil, 10*time.Second); err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("database_id", databaseID), zap.Error(err))
	}
}

// Healthy reports whether the circuit breaker currently admits requests.
func (c *Client) Healthy() bool {
	return c.breaker.State() == BreakerClosed
}

func (c *Client) post(ctx context.Context, path string, payload any, out any, timeout time.Duration) error {
	if err := c.breaker.Allow(); err != nil {
		return apperrors.Wrap(err, apperrors.KindUnavailable, true)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, false)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return apperrors.Wrap(err, apperrors.KindCancelled, false)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.Wrap(err, apperrors.KindTimeout, true).WithContext("path", path)
		}
		// TCP/DNS level failure opens the circuit.
		var netErr net.Error
		if errors.As(err, &netErr) || isConnError(err) {
			c.breaker.RecordFailure()
		}
		return apperrors.Wrap(err, apperrors.KindUnavailable, true).WithContext("path", path)
	}
	defer resp.Body.Close()

	c.logger.Debug("sidecar call completed",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		recoverable := resp.StatusCode >= 500
		return apperrors.New(apperrors.KindGenerationFailed, recoverable,
			fmt.Sprintf("sidecar %s returned %d", path, resp.StatusCode)).
			WithContext("body", string(data))
	}

	c.breaker.RecordSuccess()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(err, apperrors.KindGenerationFailed, true).WithContext("path", path)
	}
	return nil
}

func isConnError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
