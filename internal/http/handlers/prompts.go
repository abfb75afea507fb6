package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"studio/internal/middleware"
)

type enhanceRequest struct {
	Prompt string `json:"prompt"`
}

type enhanceResponse struct {
	Prompt   string `json:"prompt"`
	Enhanced string `json:"enhanced"`
	Source   string `json:"source"`
}

type savePromptRequest struct {
	Prompt string `json:"prompt"`
	Seed   int64  `json:"seed"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// PromptsEnhance rewrites the prompt with the configured model, degrading
// to the static rewrite when the model is unavailable. It never fails.
func (a *App) PromptsEnhance(w http.ResponseWriter, r *http.Request) {
	var req enhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt required")
		return
	}
	enhanced, source := a.Enhancer.Enhance(r.Context(), req.Prompt)
	a.json(w, http.StatusOK, enhanceResponse{
		Prompt:   req.Prompt,
		Enhanced: enhanced,
		Source:   source,
	})
}

func (a *App) PromptsList(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	saved, err := a.Prompts.List(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"prompts": saved})
}

func (a *App) PromptsSave(w http.ResponseWriter, r *http.Request) {
	var req savePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt required")
		return
	}
	userID := middleware.UserIDFromContext(r.Context())
	saved, err := a.Prompts.Save(r.Context(), userID, req.Prompt, req.Seed, req.Width, req.Height)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, saved)
}

func (a *App) PromptsDelete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if err := a.Prompts.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
