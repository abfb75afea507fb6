package credits

import (
	"context"
	"testing"
	"time"

	"studio/internal/store"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestInitializeResetsOncePerDay(t *testing.T) {
	s := store.NewMemory(0)
	day1 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	m := NewManager(s, 10, WithClock(fixedClock(day1)))
	ctx := context.Background()

	balance, refreshed, err := m.Initialize(ctx, "alice")
	if err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if balance != 10 || !refreshed {
		t.Fatalf("first Initialize = (%d, %v), want (10, true)", balance, refreshed)
	}

	if _, err := m.Consume(ctx, "alice", 3); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}

	// Same calendar day: the drained balance survives.
	balance, refreshed, err = m.Initialize(ctx, "alice")
	if err != nil {
		t.Fatalf("second Initialize returned error: %v", err)
	}
	if balance != 7 || refreshed {
		t.Fatalf("same-day Initialize = (%d, %v), want (7, false)", balance, refreshed)
	}

	// Next day: exactly one reset back to the maximum.
	day2 := day1.Add(24 * time.Hour)
	m2 := NewManager(s, 10, WithClock(fixedClock(day2)))
	balance, refreshed, err = m2.Initialize(ctx, "alice")
	if err != nil {
		t.Fatalf("next-day Initialize returned error: %v", err)
	}
	if balance != 10 || !refreshed {
		t.Fatalf("next-day Initialize = (%d, %v), want (10, true)", balance, refreshed)
	}
}

func TestConsumeNeverGoesNegative(t *testing.T) {
	s := store.NewMemory(0)
	m := NewManager(s, 5)
	ctx := context.Background()
	if _, _, err := m.Initialize(ctx, "alice"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	for _, n := range []int{2, 2, 2, 100, 1} {
		balance, err := m.Consume(ctx, "alice", n)
		if err != nil {
			t.Fatalf("Consume(%d) returned error: %v", n, err)
		}
		if balance < 0 {
			t.Fatalf("Consume(%d) drove balance negative: %d", n, balance)
		}
	}

	balance, err := m.Balance(ctx, "alice")
	if err != nil {
		t.Fatalf("Balance returned error: %v", err)
	}
	if balance != 0 {
		t.Fatalf("final balance = %d, want 0", balance)
	}

	ok, err := m.HasCapacity(ctx, "alice")
	if err != nil {
		t.Fatalf("HasCapacity returned error: %v", err)
	}
	if ok {
		t.Fatal("HasCapacity = true with zero balance")
	}
}

func TestRefillRestoresMaximum(t *testing.T) {
	s := store.NewMemory(0)
	m := NewManager(s, 10)
	ctx := context.Background()
	if _, _, err := m.Initialize(ctx, "alice"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if _, err := m.Consume(ctx, "alice", 9); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	balance, err := m.Refill(ctx, "alice")
	if err != nil {
		t.Fatalf("Refill returned error: %v", err)
	}
	if balance != 10 {
		t.Fatalf("Refill = %d, want 10", balance)
	}
}

func TestBalancesAreIndependentPerUser(t *testing.T) {
	s := store.NewMemory(0)
	m := NewManager(s, 10)
	ctx := context.Background()
	if _, _, err := m.Initialize(ctx, "alice"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if _, _, err := m.Initialize(ctx, "bob"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if _, err := m.Consume(ctx, "alice", 4); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	balance, err := m.Balance(ctx, "bob")
	if err != nil {
		t.Fatalf("Balance returned error: %v", err)
	}
	if balance != 10 {
		t.Fatalf("bob balance = %d, want 10", balance)
	}
}
