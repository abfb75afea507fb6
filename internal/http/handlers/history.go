package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/middleware"
	zippkg "studio/pkg/zip"
)

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type setCurrentRequest struct {
	ID string `json:"id"`
}

// HistoryList returns the caller's history grouped for display: favorites
// pinned first, then today's renders, then everything older. The q
// parameter filters by prompt substring.
func (a *App) HistoryList(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	grouped, err := a.History.GroupByPinned(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, grouped)
}

func (a *App) HistoryDelete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if err := a.History.Remove(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) HistoryBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if len(req.IDs) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "ids required")
		return
	}
	userID := middleware.UserIDFromContext(r.Context())
	if err := a.History.Remove(r.Context(), userID, req.IDs...); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) HistoryClear(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if err := a.History.Clear(r.Context(), userID); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) HistoryToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	item, err := a.History.ToggleFavorite(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, item)
}

func (a *App) HistoryCurrent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	item, err := a.History.Current(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, item)
}

func (a *App) HistorySetCurrent(w http.ResponseWriter, r *http.Request) {
	var req setCurrentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	userID := middleware.UserIDFromContext(r.Context())
	if err := a.History.SetCurrent(r.Context(), userID, req.ID); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HistoryExport bundles every artifact plus a metadata manifest into one
// zip download. Items whose artifacts cannot be fetched are listed in the
// manifest but omitted from the archive.
func (a *App) HistoryExport(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	items, err := a.History.List(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if len(items) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "history is empty")
		return
	}

	assets := make([]zippkg.Asset, 0, len(items)+1)
	skipped := make([]string, 0)
	for _, item := range items {
		data, mime, err := a.fetchArtifact(r, item.ImageURL)
		if err != nil {
			a.Logger.Warn().Err(err).Str("item_id", item.ID).Msg("export: artifact fetch failed")
			skipped = append(skipped, item.ID)
			continue
		}
		assets = append(assets, zippkg.Asset{
			Filename: artifactFilename(item, mime),
			MIME:     mime,
			Data:     data,
		})
	}

	manifest, err := json.MarshalIndent(exportManifest{Items: items, Skipped: skipped}, "", "  ")
	if err != nil {
		a.domainError(w, err)
		return
	}
	assets = append(assets, zippkg.Asset{Filename: "manifest.json", MIME: "application/json", Data: manifest})

	archive := zippkg.ArchiveAssets(assets)
	if len(archive) == 0 {
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "studio-history.zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

type exportManifest struct {
	Items   []domain.HistoryItem `json:"items"`
	Skipped []string             `json:"skipped,omitempty"`
}
