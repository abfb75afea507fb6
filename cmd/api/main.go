package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"studio/internal/credits"
	"studio/internal/history"
	"studio/internal/http/handlers"
	httpapi "studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/infra/geoip"
	"studio/internal/middleware"
	"studio/internal/prompts"
	imageprovider "studio/internal/providers/image"
	promptprovider "studio/internal/providers/prompt"
	"studio/internal/store"
	"studio/internal/studio"
)

func main() {
	// .env is optional.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	st, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open store")
	}
	defer cleanup()

	generator := newGenerator(cfg)
	enhancer := newEnhancer(cfg, logger)

	creditMgr := credits.NewManager(st, cfg.DailyCredits)
	historyMgr := history.NewManager(st, cfg.HistoryLimit)
	workflow := studio.NewWorkflow(creditMgr, historyMgr, generator, studio.Config{
		VerifyTimeout:        cfg.VerifyTimeout,
		UpscaleVerifyTimeout: cfg.UpscaleVerifyTimeout,
		VariationBatch:       cfg.VariationBatch,
		UpscaleSize:          cfg.UpscaleSize,
	}, logger)

	app := &handlers.App{
		Logger:    logger,
		JWTSecret: cfg.JWTSecret,
		Credits:   creditMgr,
		History:   historyMgr,
		Prompts:   prompts.NewManager(st),
		Enhancer:  enhancer,
		Studio:    workflow,
		Provider:  generator,
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		AllowedOrigins:  cfg.AllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   newCountryLookup(cfg, logger),
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("provider", generator.Name()).
			Str("store", cfg.StoreBackend).
			Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// newStore selects the persistence backend. The returned cleanup releases
// any pooled connections.
func newStore(ctx context.Context, cfg *infra.Config) (store.Store, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemory(cfg.StoreMaxBytes), noop, nil
	case "file":
		st, err := store.NewFile(cfg.StorePath, cfg.StoreMaxBytes)
		return st, noop, err
	case "postgres":
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		st, err := store.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		return st, pool.Close, nil
	case "redis":
		return store.NewRedis(cfg.RedisAddr, cfg.RedisPassword), noop, nil
	default:
		st, err := store.NewFile(cfg.StorePath, cfg.StoreMaxBytes)
		return st, noop, err
	}
}

func newGenerator(cfg *infra.Config) imageprovider.Generator {
	switch cfg.ImageProvider {
	case "gemini":
		return imageprovider.NewGemini(imageprovider.GeminiOptions{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
		})
	default:
		return imageprovider.NewPollinations(imageprovider.PollinationsOptions{
			BaseURL:       cfg.PollinationsBaseURL,
			Model:         cfg.PollinationsModel,
			VerifyTimeout: cfg.VerifyTimeout,
		})
	}
}

func newEnhancer(cfg *infra.Config, logger infra.Logger) *promptprovider.Service {
	if cfg.GeminiAPIKey == "" {
		return promptprovider.NewService(nil)
	}
	remote, err := promptprovider.NewGeminiEnhancer(promptprovider.GeminiOptions{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("prompt enhancer unavailable, using static rewrite")
		return promptprovider.NewService(nil)
	}
	return promptprovider.NewService(remote)
}

func newCountryLookup(cfg *infra.Config, logger infra.Logger) middleware.CountryLookup {
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, country resolution disabled")
		return nil
	}
	if resolver == nil {
		return nil
	}
	return resolver.CountryCode
}
