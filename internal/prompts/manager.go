// Package prompts stores user-authored prompt templates, independent from
// generation history.
package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/store"
)

// Manager persists saved prompts in their own store namespace.
type Manager struct {
	store store.Store
	now   func() time.Time
}

// NewManager builds a saved-prompt Manager.
func NewManager(s store.Store) *Manager {
	return &Manager{store: s, now: time.Now}
}

// List returns the user's saved prompts, newest-first.
func (m *Manager) List(ctx context.Context, userID string) ([]domain.SavedPrompt, error) {
	raw, err := m.store.Get(ctx, userID, store.KeySavedPrompts)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("prompts: load: %w", err)
	}
	var saved []domain.SavedPrompt
	if err := json.Unmarshal(raw, &saved); err != nil {
		return nil, fmt.Errorf("prompts: decode: %w", err)
	}
	return saved, nil
}

// Save stores a new template and returns it with its generated id.
func (m *Manager) Save(ctx context.Context, userID, prompt string, seed int64, width, height int) (domain.SavedPrompt, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.SavedPrompt{}, fmt.Errorf("prompts: empty prompt")
	}
	saved, err := m.List(ctx, userID)
	if err != nil {
		return domain.SavedPrompt{}, err
	}
	entry := domain.SavedPrompt{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Seed:      seed,
		Width:     width,
		Height:    height,
		CreatedAt: m.now().UnixMilli(),
	}
	saved = append([]domain.SavedPrompt{entry}, saved...)
	if err := m.persist(ctx, userID, saved); err != nil {
		return domain.SavedPrompt{}, err
	}
	return entry, nil
}

// Delete removes a template by id.
func (m *Manager) Delete(ctx context.Context, userID, id string) error {
	saved, err := m.List(ctx, userID)
	if err != nil {
		return err
	}
	kept := saved[:0]
	for _, entry := range saved {
		if entry.ID != id {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(saved) {
		return domain.ErrNotFound
	}
	return m.persist(ctx, userID, kept)
}

func (m *Manager) persist(ctx context.Context, userID string, saved []domain.SavedPrompt) error {
	payload, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("prompts: encode: %w", err)
	}
	if err := m.store.Set(ctx, userID, store.KeySavedPrompts, payload); err != nil {
		return fmt.Errorf("prompts: persist: %w", err)
	}
	return nil
}
