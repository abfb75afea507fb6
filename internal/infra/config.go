package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	JWTSecret   string
	GeoIPDBPath string

	StoreBackend  string
	StorePath     string
	StoreMaxBytes int
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	ImageProvider        string
	PollinationsBaseURL  string
	PollinationsModel    string
	GeminiAPIKey         string
	GeminiModel          string
	GeminiBaseURL        string
	VerifyTimeout        time.Duration
	UpscaleVerifyTimeout time.Duration

	DailyCredits   int
	HistoryLimit   int
	VariationBatch int
	UpscaleSize    int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	AllowedOrigins []string
	DefaultLocale  string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		StoreBackend:  getEnv("STORE_BACKEND", "file"),
		StorePath:     getEnv("STORE_PATH", "./data"),
		StoreMaxBytes: getEnvInt("STORE_MAX_VALUE_BYTES", 256*1024),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		ImageProvider:        getEnv("IMAGE_PROVIDER", "pollinations"),
		PollinationsBaseURL:  getEnv("POLLINATIONS_BASE_URL", "https://image.pollinations.ai"),
		PollinationsModel:    getEnv("POLLINATIONS_MODEL", "flux"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:        getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VerifyTimeout:        time.Second * time.Duration(getEnvInt("VERIFY_TIMEOUT_SECONDS", 40)),
		UpscaleVerifyTimeout: time.Second * time.Duration(getEnvInt("UPSCALE_VERIFY_TIMEOUT_SECONDS", 60)),

		DailyCredits:   getEnvInt("DAILY_CREDITS", 10),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", 50),
		VariationBatch: getEnvInt("VARIATION_BATCH", 4),
		UpscaleSize:    getEnvInt("UPSCALE_SIZE", 2048),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		DefaultLocale:  getEnv("DEFAULT_LOCALE", "en"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.StoreBackend == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
	}

	if cfg.DailyCredits <= 0 {
		return nil, fmt.Errorf("DAILY_CREDITS must be positive")
	}

	if cfg.VariationBatch <= 0 {
		cfg.VariationBatch = 4
	}

	return cfg, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
