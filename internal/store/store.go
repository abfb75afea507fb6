// Package store provides namespaced per-user key-value persistence. Every
// logical record (history list, credit balance, saved prompts) is one JSON
// value under a (user, key) pair, mirroring the single-writer storage model
// of the studio client.
package store

import "context"

// Store is the persistence contract shared by all backends. Values are
// opaque JSON payloads; Get returns domain.ErrNotFound for absent keys and
// Set returns domain.ErrStorageQuota when a backend rejects a payload for
// size reasons.
type Store interface {
	Get(ctx context.Context, userID, key string) ([]byte, error)
	Set(ctx context.Context, userID, key string, value []byte) error
	Delete(ctx context.Context, userID, key string) error
}

// Well-known record keys. Callers outside this package should use these
// constants instead of ad hoc key strings.
const (
	KeyHistory      = "history"
	KeyCurrent      = "current"
	KeyCredits      = "credits"
	KeyLastRefresh  = "last_refresh"
	KeySavedPrompts = "saved_prompts"
)
