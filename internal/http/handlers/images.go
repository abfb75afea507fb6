package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/middleware"
	"studio/internal/studio"
)

// downloadLimit caps how many bytes a proxied artifact fetch may read.
const downloadLimit = 64 << 20

type generateRequest struct {
	Prompt string `json:"prompt"`
	Seed   *int64 `json:"seed,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// Enhance runs the prompt through the enhancer before rendering.
	Enhance bool `json:"enhance,omitempty"`
}

type renderResponse struct {
	Item    domain.HistoryItem `json:"item"`
	Credits int                `json:"credits"`
	Stale   bool               `json:"stale,omitempty"`
}

type variationsResponse struct {
	Items   []domain.HistoryItem `json:"items"`
	Failed  int                  `json:"failed"`
	Credits int                  `json:"credits"`
	Stale   bool                 `json:"stale,omitempty"`
}

type shareResponse struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url"`
	Seed     int64  `json:"seed"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Text     string `json:"text"`
}

func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt required")
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "width and height must be positive")
		return
	}
	if req.Seed != nil && (*req.Seed < 0 || *req.Seed > domain.SeedMax) {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("seed must be in [0, %d]", domain.SeedMax))
		return
	}

	prompt := req.Prompt
	if req.Enhance {
		prompt, _ = a.Enhancer.Enhance(r.Context(), prompt)
	}

	userID := middleware.UserIDFromContext(r.Context())
	out, err := a.Studio.Generate(r.Context(), userID, studio.GenerateInput{
		Prompt: prompt,
		Seed:   req.Seed,
		Width:  req.Width,
		Height: req.Height,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, renderResponse{Item: out.Item, Credits: out.Credits, Stale: out.Stale})
}

func (a *App) ImagesVariations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	out, err := a.Studio.Variations(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, variationsResponse{
		Items:   out.Items,
		Failed:  out.Failed,
		Credits: out.Credits,
		Stale:   out.Stale,
	})
}

func (a *App) ImagesUpscale(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	out, err := a.Studio.Upscale(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, renderResponse{Item: out.Item, Credits: out.Credits, Stale: out.Stale})
}

// ImagesDownload streams the artifact bytes with an attachment disposition,
// resolving remote URLs and inline data URIs alike.
func (a *App) ImagesDownload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	item, err := a.History.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}

	data, mime, err := a.fetchArtifact(r, item.ImageURL)
	if err != nil {
		a.Logger.Warn().Err(err).Str("item_id", item.ID).Msg("artifact fetch failed")
		a.error(w, http.StatusBadGateway, "fetch_failed", "could not fetch image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifactFilename(item, mime)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ImagesShare returns a ready-to-post share payload for an item.
func (a *App) ImagesShare(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	item, err := a.History.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, shareResponse{
		Prompt:   item.Prompt,
		ImageURL: item.ImageURL,
		Seed:     item.Seed,
		Width:    item.Width,
		Height:   item.Height,
		Text:     fmt.Sprintf("%q", item.Prompt),
	})
}

// fetchArtifact resolves an artifact reference into raw bytes. Data URIs
// decode locally; anything else is fetched over HTTP with a bounded read.
func (a *App) fetchArtifact(r *http.Request, ref string) ([]byte, string, error) {
	if strings.HasPrefix(ref, "data:") {
		rest := strings.TrimPrefix(ref, "data:")
		meta, payload, ok := strings.Cut(rest, ",")
		if !ok {
			return nil, "", fmt.Errorf("malformed data uri")
		}
		mime := strings.TrimSuffix(meta, ";base64")
		if mime == "" {
			mime = "application/octet-stream"
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decode data uri: %w", err)
		}
		return data, mime, nil
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	resp, err := a.client().Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("artifact status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, downloadLimit))
	if err != nil {
		return nil, "", fmt.Errorf("read artifact: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return data, mime, nil
}

func artifactFilename(item domain.HistoryItem, mime string) string {
	ext := ".jpg"
	switch {
	case strings.Contains(mime, "png"):
		ext = ".png"
	case strings.Contains(mime, "webp"):
		ext = ".webp"
	}
	stamp := time.UnixMilli(item.Timestamp).UTC().Format("20060102-150405")
	return "studio-" + stamp + "-" + item.ID + ext
}
