package handler

import (
	"log/slog"
	"net/http"

	"repairchat/internal/capabilities"
	"repairchat/internal/httputil"
)

// ModelsHandler handles HTTP requests for the model catalogue
type ModelsHandler struct {
	provider    string
	activeModel string
	logger      *slog.Logger
	registry    *capabilities.Registry
}

// NewModelsHandler creates a new models handler for the provider in use
func NewModelsHandler(provider, activeModel string, logger *slog.Logger, registry *capabilities.Registry) *ModelsHandler {
	return &ModelsHandler{
		provider:    provider,
		activeModel: activeModel,
		logger:      logger,
		registry:    registry,
	}
}

// ModelsResponse lists the configured provider's models
type ModelsResponse struct {
	Provider string                           `json:"provider"`
	Active   string                           `json:"active_model"`
	Models   []capabilities.ModelCapabilities `json:"models"`
}

// ListModels returns the catalogue of the configured provider
// GET /api/models
func (h *ModelsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.registry.ListProviderModels(h.provider)
	if err != nil {
		h.logger.Error("failed to list models", "provider", h.provider, "error", err)
		handleError(w, err)
		return
	}

	httputil.RespondSuccess(w, http.StatusOK, "models retrieved", ModelsResponse{
		Provider: h.provider,
		Active:   h.activeModel,
		Models:   models,
	})
}
