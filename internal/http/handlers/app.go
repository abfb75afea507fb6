// Package handlers contains the HTTP endpoints. Handlers translate between
// wire DTOs and the domain services; business rules live below this layer.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"studio/internal/credits"
	"studio/internal/domain"
	"studio/internal/history"
	"studio/internal/infra"
	"studio/internal/prompts"
	"studio/internal/providers/image"
	"studio/internal/providers/prompt"
	"studio/internal/studio"
)

type App struct {
	Logger    infra.Logger
	JWTSecret string

	Credits  *credits.Manager
	History  *history.Manager
	Prompts  *prompts.Manager
	Enhancer *prompt.Service
	Studio   *studio.Workflow
	Provider image.Generator

	// HTTPClient fetches remote artifacts for download and export.
	HTTPClient *http.Client
}

func (a *App) client() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{
		"error":   slug,
		"message": message,
	})
}

// domainError maps domain sentinel errors onto HTTP responses.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "not allowed")
	case errors.Is(err, domain.ErrNoCredits):
		a.error(w, http.StatusPaymentRequired, "no_credits", "daily credits exhausted")
	case errors.Is(err, domain.ErrRateLimited):
		a.error(w, http.StatusTooManyRequests, "rate_limited", "image engine is busy, try again shortly")
	case errors.Is(err, domain.ErrTimeout):
		a.error(w, http.StatusGatewayTimeout, "timeout", "image engine did not respond in time")
	case errors.Is(err, domain.ErrNotConfigured):
		a.error(w, http.StatusServiceUnavailable, "not_configured", "image provider is not configured")
	case errors.Is(err, domain.ErrEmptyResponse):
		a.error(w, http.StatusBadGateway, "empty_response", "image engine returned no image")
	case errors.Is(err, domain.ErrProviderFault):
		a.error(w, http.StatusBadGateway, "provider_error", "image engine failed")
	case errors.Is(err, domain.ErrAlreadyHiRes):
		a.error(w, http.StatusConflict, "already_upscaled", "image is already high resolution")
	case errors.Is(err, domain.ErrStorageQuota):
		a.error(w, http.StatusInsufficientStorage, "storage_quota", "storage quota exceeded")
	default:
		a.Logger.Error().Err(err).Msg("unhandled error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
