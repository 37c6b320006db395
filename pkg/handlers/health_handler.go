package handlers

import (
	"net/http"
	"runtime"

	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/config"
)

// HealthResponse contains service status and version information.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Environment string `json:"environment"`
	Sidecar     string `json:"sidecar"`
}

// SidecarStatus reports whether the generation sidecar is reachable.
type SidecarStatus interface {
	Healthy() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	cfg     *config.Config
	sidecar SidecarStatus
	logger  *zap.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, sidecar SidecarStatus, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, sidecar: sidecar, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
}

// Healthz handles GET /healthz. The engine reports ok as long as it is
// serving; sidecar reachability is informational because the breaker
// recovers on its own.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	sidecarState := "up"
	if h.sidecar != nil && !h.sidecar.Healthy() {
		sidecarState = "down"
	}
	response := HealthResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "groundline-engine",
		GoVersion:   runtime.Version(),
		Environment: h.cfg.Env,
		Sidecar:     sidecarState,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("failed to encode health response", zap.Error(err))
	}
}
