// Package history maintains the ordered, capacity-bounded collection of
// generated images per user, including favorites, search and the currently
// displayed selection.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/store"
)

// Manager persists and queries a user's generation history. The list is
// kept newest-first; every mutation persists the full (capped) collection.
type Manager struct {
	store store.Store
	limit int
	now   func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager retaining at most limit records per user.
func NewManager(s store.Store, limit int, opts ...Option) *Manager {
	if limit <= 0 {
		limit = 50
	}
	m := &Manager{store: s, limit: limit, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Grouped is the display partition of a history list: favorites first, the
// remainder split into records created today versus earlier. The grouping is
// derived at read time, never stored.
type Grouped struct {
	Favorites []domain.HistoryItem `json:"favorites"`
	Today     []domain.HistoryItem `json:"today"`
	Earlier   []domain.HistoryItem `json:"earlier"`
}

// List returns the user's history, newest-first. A missing record is an
// empty list, not an error.
func (m *Manager) List(ctx context.Context, userID string) ([]domain.HistoryItem, error) {
	raw, err := m.store.Get(ctx, userID, store.KeyHistory)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: load: %w", err)
	}
	var items []domain.HistoryItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("history: decode: %w", err)
	}
	return items, nil
}

// Get returns a single record by id.
func (m *Manager) Get(ctx context.Context, userID, id string) (domain.HistoryItem, error) {
	items, err := m.List(ctx, userID)
	if err != nil {
		return domain.HistoryItem{}, err
	}
	for _, item := range items {
		if item.ID == id {
			return item, nil
		}
	}
	return domain.HistoryItem{}, domain.ErrNotFound
}

// Add prepends the given records and persists the capped collection. The
// first argument ends up newest. Oldest entries beyond the retention limit
// are dropped silently; a storage quota rejection shrinks the persisted list
// further and retries instead of failing the write.
func (m *Manager) Add(ctx context.Context, userID string, newItems ...domain.HistoryItem) error {
	if len(newItems) == 0 {
		return nil
	}
	items, err := m.List(ctx, userID)
	if err != nil {
		return err
	}
	items = append(append([]domain.HistoryItem{}, newItems...), items...)
	return m.persist(ctx, userID, items)
}

// Remove deletes the records with the given ids. When the currently
// displayed record is among them, the selection is cleared as well.
func (m *Manager) Remove(ctx context.Context, userID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	items, err := m.List(ctx, userID)
	if err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := items[:0]
	for _, item := range items {
		if _, gone := drop[item.ID]; !gone {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return nil
	}
	if err := m.persist(ctx, userID, kept); err != nil {
		return err
	}

	if current, err := m.currentID(ctx, userID); err == nil {
		if _, gone := drop[current]; gone {
			return m.clearCurrent(ctx, userID)
		}
	}
	return nil
}

// ToggleFavorite flips the favorite flag in place and returns the updated
// record. The current selection is resolved by id, so no stale copy exists.
func (m *Manager) ToggleFavorite(ctx context.Context, userID, id string) (domain.HistoryItem, error) {
	items, err := m.List(ctx, userID)
	if err != nil {
		return domain.HistoryItem{}, err
	}
	var updated *domain.HistoryItem
	for i := range items {
		if items[i].ID == id {
			items[i].IsFavorite = !items[i].IsFavorite
			updated = &items[i]
			break
		}
	}
	if updated == nil {
		return domain.HistoryItem{}, domain.ErrNotFound
	}
	if err := m.persist(ctx, userID, items); err != nil {
		return domain.HistoryItem{}, err
	}
	return *updated, nil
}

// Search returns an order-preserving view of records whose prompt contains
// the query, case-insensitively. An empty query matches everything. The
// underlying collection is never mutated.
func (m *Manager) Search(ctx context.Context, userID, query string) ([]domain.HistoryItem, error) {
	items, err := m.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return items, nil
	}
	var matched []domain.HistoryItem
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Prompt), query) {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

// GroupByPinned partitions the (optionally filtered) history into favorites
// and the rest, with the rest split by calendar day.
func (m *Manager) GroupByPinned(ctx context.Context, userID, query string) (Grouped, error) {
	items, err := m.Search(ctx, userID, query)
	if err != nil {
		return Grouped{}, err
	}
	var g Grouped
	today := m.now().UTC().Format("2006-01-02")
	for _, item := range items {
		switch {
		case item.IsFavorite:
			g.Favorites = append(g.Favorites, item)
		case item.CreatedAt().UTC().Format("2006-01-02") == today:
			g.Today = append(g.Today, item)
		default:
			g.Earlier = append(g.Earlier, item)
		}
	}
	return g, nil
}

// Clear empties the collection and erases the persisted records.
func (m *Manager) Clear(ctx context.Context, userID string) error {
	if err := m.store.Delete(ctx, userID, store.KeyHistory); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return m.clearCurrent(ctx, userID)
}

// Current resolves the displayed selection to its record.
func (m *Manager) Current(ctx context.Context, userID string) (domain.HistoryItem, error) {
	id, err := m.currentID(ctx, userID)
	if err != nil {
		return domain.HistoryItem{}, err
	}
	return m.Get(ctx, userID, id)
}

// SetCurrent marks the record with the given id as the displayed selection.
func (m *Manager) SetCurrent(ctx context.Context, userID, id string) error {
	if _, err := m.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := m.store.Set(ctx, userID, store.KeyCurrent, []byte(fmt.Sprintf("%q", id))); err != nil {
		return fmt.Errorf("history: set current: %w", err)
	}
	return nil
}

func (m *Manager) currentID(ctx context.Context, userID string) (string, error) {
	raw, err := m.store.Get(ctx, userID, store.KeyCurrent)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("history: load current: %w", err)
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("history: decode current: %w", err)
	}
	return id, nil
}

func (m *Manager) clearCurrent(ctx context.Context, userID string) error {
	if err := m.store.Delete(ctx, userID, store.KeyCurrent); err != nil {
		return fmt.Errorf("history: clear current: %w", err)
	}
	return nil
}

// persist writes the list capped at the retention limit. When the store
// rejects the payload for size reasons, the retained length is halved and
// the write retried until it fits.
func (m *Manager) persist(ctx context.Context, userID string, items []domain.HistoryItem) error {
	retain := m.limit
	if len(items) < retain {
		retain = len(items)
	}
	for {
		payload, err := json.Marshal(items[:retain])
		if err != nil {
			return fmt.Errorf("history: encode: %w", err)
		}
		err = m.store.Set(ctx, userID, store.KeyHistory, payload)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrStorageQuota) || retain == 0 {
			return fmt.Errorf("history: persist: %w", err)
		}
		retain /= 2
	}
}
