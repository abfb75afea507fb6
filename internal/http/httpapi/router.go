package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"studio/internal/http/handlers"
	"studio/internal/middleware"
)

// RouterOptions tunes the middleware chain around the handlers.
type RouterOptions struct {
	AllowedOrigins []string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	// RateLimitPerMin bounds requests per client IP; 0 disables the
	// transport limiter.
	RateLimitPerMin int
}

// NewRouter assembles the public route tree.
func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.Locale(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Post("/auth/login", app.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(app.JWTSecret))

			r.Get("/session", app.Session)
			r.Get("/credits", app.CreditsBalance)
			r.Post("/credits/refill", app.CreditsRefill)

			r.Route("/images", func(r chi.Router) {
				r.Post("/generate", app.ImagesGenerate)
				r.Post("/{id}/variations", app.ImagesVariations)
				r.Post("/{id}/upscale", app.ImagesUpscale)
				r.Get("/{id}/download", app.ImagesDownload)
				r.Get("/{id}/share", app.ImagesShare)
			})

			r.Route("/history", func(r chi.Router) {
				r.Get("/", app.HistoryList)
				r.Delete("/", app.HistoryClear)
				r.Get("/export", app.HistoryExport)
				r.Post("/bulk-delete", app.HistoryBulkDelete)
				r.Get("/current", app.HistoryCurrent)
				r.Put("/current", app.HistorySetCurrent)
				r.Delete("/{id}", app.HistoryDelete)
				r.Post("/{id}/favorite", app.HistoryToggleFavorite)
			})

			r.Route("/prompts", func(r chi.Router) {
				r.Post("/enhance", app.PromptsEnhance)
				r.Get("/", app.PromptsList)
				r.Post("/", app.PromptsSave)
				r.Delete("/{id}", app.PromptsDelete)
			})
		})
	})

	return r
}
