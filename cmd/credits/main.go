// Command credits is an operator tool for inspecting and topping up a
// user's daily credit balance against the configured store backend.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"studio/internal/credits"
	"studio/internal/infra"
	"studio/internal/store"
)

func main() {
	var (
		userFlag   string
		refillFlag bool
	)

	flag.StringVar(&userFlag, "user", "", "user identifier to inspect")
	flag.BoolVar(&refillFlag, "refill", false, "restore the user's balance to the daily maximum")
	flag.Parse()

	userID := strings.ToLower(strings.TrimSpace(userFlag))
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}

	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		exitWithError(err)
	}
	defer cleanup()

	manager := credits.NewManager(st, cfg.DailyCredits)

	if refillFlag {
		balance, err := manager.Refill(ctx, userID)
		if err != nil {
			exitWithError(err)
		}
		printJSON(map[string]any{"user": userID, "credits": balance, "refilled": true})
		return
	}

	balance, refreshed, err := manager.Initialize(ctx, userID)
	if err != nil {
		exitWithError(err)
	}
	printJSON(map[string]any{
		"user":      userID,
		"credits":   balance,
		"max":       cfg.DailyCredits,
		"refreshed": refreshed,
	})
}

func newStore(ctx context.Context, cfg *infra.Config) (store.Store, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case "memory":
		return nil, noop, errors.New("memory store holds no persisted balances")
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

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
