// Package credits tracks the per-user daily credit balance gating billable
// actions. Balances persist across sessions and reset to the configured
// maximum once per calendar day.
package credits

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/store"
)

// Manager loads, decrements and refills credit balances through the Store.
type Manager struct {
	store store.Store
	max   int
	now   func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager with the given daily maximum.
func NewManager(s store.Store, max int, opts ...Option) *Manager {
	m := &Manager{store: s, max: max, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Max returns the configured daily maximum.
func (m *Manager) Max() int { return m.max }

// Initialize loads the persisted balance for the user. When there is no
// record, or the stored refresh date is not today, the balance resets to the
// daily maximum and today's date is stamped. Returns the effective balance
// and whether a reset happened.
func (m *Manager) Initialize(ctx context.Context, userID string) (int, bool, error) {
	today := m.today()
	stored, err := m.store.Get(ctx, userID, store.KeyLastRefresh)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return m.reset(ctx, userID, today)
	case err != nil:
		return 0, false, fmt.Errorf("credits: load refresh date: %w", err)
	}

	if strings.Trim(string(stored), `"`) != today {
		return m.reset(ctx, userID, today)
	}

	balance, err := m.Balance(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return m.reset(ctx, userID, today)
		}
		return 0, false, err
	}
	return balance, false, nil
}

// Balance returns the persisted balance for the user.
func (m *Manager) Balance(ctx context.Context, userID string) (int, error) {
	raw, err := m.store.Get(ctx, userID, store.KeyCredits)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("credits: load balance: %w", err)
	}
	balance, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("credits: corrupt balance %q: %w", raw, err)
	}
	if balance < 0 {
		balance = 0
	}
	return balance, nil
}

// HasCapacity reports whether at least one credit remains.
func (m *Manager) HasCapacity(ctx context.Context, userID string) (bool, error) {
	balance, err := m.Balance(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return balance > 0, nil
}

// Consume decrements the balance by n, floored at zero, and persists the
// result immediately. Returns the new balance.
func (m *Manager) Consume(ctx context.Context, userID string, n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("credits: negative consume amount %d", n)
	}
	balance, err := m.Balance(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}
	balance -= n
	if balance < 0 {
		balance = 0
	}
	if err := m.persist(ctx, userID, balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// Refill restores the balance to the daily maximum. This is the simulated
// top-up, not a payment flow.
func (m *Manager) Refill(ctx context.Context, userID string) (int, error) {
	if err := m.persist(ctx, userID, m.max); err != nil {
		return 0, err
	}
	return m.max, nil
}

func (m *Manager) reset(ctx context.Context, userID, today string) (int, bool, error) {
	if err := m.store.Set(ctx, userID, store.KeyLastRefresh, []byte(strconv.Quote(today))); err != nil {
		return 0, false, fmt.Errorf("credits: stamp refresh date: %w", err)
	}
	if err := m.persist(ctx, userID, m.max); err != nil {
		return 0, false, err
	}
	return m.max, true, nil
}

func (m *Manager) persist(ctx context.Context, userID string, balance int) error {
	if err := m.store.Set(ctx, userID, store.KeyCredits, []byte(strconv.Itoa(balance))); err != nil {
		return fmt.Errorf("credits: persist balance: %w", err)
	}
	return nil
}

func (m *Manager) today() string {
	return m.now().UTC().Format("2006-01-02")
}
