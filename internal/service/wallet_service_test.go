package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/musichub/api/internal/model"
	"github.com/musichub/api/internal/store"
)

func newTestWalletService(t *testing.T) (*WalletService, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	svc := NewWalletService(store.NewMemoryStore())
	svc.now = clock.Now
	return svc, clock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// assertLedgerInvariant checks points == sum of ledger amounts.
func assertLedgerInvariant(t *testing.T, svc *WalletService, userID string) {
	t.Helper()
	w, err := svc.GetWallet(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to load wallet: %v", err)
	}
	if w.Points != w.LedgerSum() {
		t.Errorf("invariant broken: points=%d, ledger sum=%d", w.Points, w.LedgerSum())
	}
}

func TestGetWalletCreatesLazily(t *testing.T) {
	svc, _ := newTestWalletService(t)

	w, err := svc.GetWallet(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if w.UserID != "user-1" || w.Points != 0 || len(w.Ledger) != 0 {
		t.Errorf("unexpected fresh wallet: %+v", w)
	}
}

func TestEarnGrantsPoints(t *testing.T) {
	svc, _ := newTestWalletService(t)

	snap, err := svc.Earn(context.Background(), "user-1", "signup", "evt-signup-1", nil)
	if err != nil {
		t.Fatalf("Earn failed: %v", err)
	}
	if snap.Points != 100 {
		t.Errorf("expected 100 points, got %d", snap.Points)
	}
	assertLedgerInvariant(t, svc, "user-1")
}

func TestEarnIdempotentReplay(t *testing.T) {
	svc, _ := newTestWalletService(t)
	ctx := context.Background()

	first, err := svc.Earn(ctx, "user-1", "signup", "evt-signup-1", nil)
	if err != nil {
		t.Fatalf("Earn failed: %v", err)
	}

	// Replaying the same clientEventId must not change anything,
	// even though the signup rule is once-only.
	replay, err := svc.Earn(ctx, "user-1", "signup", "evt-signup-1", nil)
	if err != nil {
		t.Fatalf("replay returned error: %v", err)
	}
	if replay.Points != first.Points {
		t.Errorf("replay changed points: %d -> %d", first.Points, replay.Points)
	}

	w, _ := svc.GetWallet(ctx, "user-1")
	if len(w.Ledger) != 1 {
		t.Errorf("replay appended a ledger entry: %d entries", len(w.Ledger))
	}
	assertLedgerInvariant(t, svc, "user-1")
}

func TestOnceRuleGrantsExactlyOnce(t *testing.T) {
	svc, _ := newTestWalletService(t)
	ctx := context.Background()

	if _, err := svc.Earn(ctx, "user-1", "signup", "evt-signup-1", nil); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}

	_, err := svc.Earn(ctx, "user-1", "signup", "evt-signup-2", nil)
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}

	w, _ := svc.GetWallet(ctx, "user-1")
	if w.Points != 100 {
		t.Errorf("points changed by rejected earn: %d", w.Points)
	}
}

func TestCooldownRule(t *testing.T) {
	svc, clock := newTestWalletService(t)
	ctx := context.Background()

	if _, err := svc.Earn(ctx, "user-1", "watch_video", "evt-watch-1", nil); err != nil {
		t.Fatalf("first earn failed: %v", err)
	}

	// Within the 60s window
	clock.Advance(30 * time.Second)
	_, err := svc.Earn(ctx, "user-1", "watch_video", "evt-watch-2", nil)
	var cooldown *CooldownActiveError
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected CooldownActiveError, got %v", err)
	}
	if cooldown.Remaining <= 0 || cooldown.Remaining > 30*time.Second {
		t.Errorf("unexpected remaining cooldown: %v", cooldown.Remaining)
	}

	// After the window
	clock.Advance(31 * time.Second)
	snap, err := svc.Earn(ctx, "user-1", "watch_video", "evt-watch-3", nil)
	if err != nil {
		t.Fatalf("earn after cooldown failed: %v", err)
	}
	if snap.Points != 20 {
		t.Errorf("expected 20 points after two earns, got %d", snap.Points)
	}
	assertLedgerInvariant(t, svc, "user-1")
}

func TestSpendInsufficientPoints(t *testing.T) {
	svc, _ := newTestWalletService(t)
	ctx := context.Background()

	// signup (100) + daily_login (50) = 150
	if _, err := svc.Earn(ctx, "user-1", "signup", "evt-signup-1", nil); err != nil {
		t.Fatalf("earn failed: %v", err)
	}
	if _, err := svc.Earn(ctx, "user-1", "daily_login", "evt-login-1", nil); err != nil {
		t.Fatalf("earn failed: %v", err)
	}

	_, err := svc.Spend(ctx, "user-1", "pack_01", "evt-spend-1", nil)
	var insufficient *InsufficientPointsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientPointsError, got %v", err)
	}
	if insufficient.Required != 200 || insufficient.Have != 150 {
		t.Errorf("unexpected remediation data: %+v", insufficient)
	}

	w, _ := svc.GetWallet(ctx, "user-1")
	if w.Points != 150 {
		t.Errorf("rejected spend changed points: %d", w.Points)
	}
	assertLedgerInvariant(t, svc, "user-1")
}

func TestSpendSuccess(t *testing.T) {
	svc, _ := newTestWalletService(t)
	ctx := context.Background()

	svc.rules["bonus"] = EarnRule{Points: 500}
	if _, err := svc.Earn(ctx, "user-1", "bonus", "evt-bonus-1", nil); err != nil {
		t.Fatalf("earn failed: %v", err)
	}

	snap, err := svc.Spend(ctx, "user-1", "pack_01", "evt-spend-1", nil)
	if err != nil {
		t.Fatalf("Spend failed: %v", err)
	}
	if snap.Points != 300 {
		t.Errorf("expected 300 points after spend, got %d", snap.Points)
	}

	w, _ := svc.GetWallet(ctx, "user-1")
	last := w.Ledger[len(w.Ledger)-1]
	if last.Type != model.TxSpend || last.Amount != -200 || last.Reason != "pack_01" {
		t.Errorf("unexpected spend entry: %+v", last)
	}
	assertLedgerInvariant(t, svc, "user-1")
}

func TestSpendIdempotentReplay(t *testing.T) {
	svc, _ := newTestWalletService(t)
	ctx := context.Background()

	svc.rules["bonus"] = EarnRule{Points: 500}
	if _, err := svc.Earn(ctx, "user-1", "bonus", "evt-bonus-1", nil); err != nil {
		t.Fatalf("earn failed: %v", err)
	}
	if _, err := svc.Spend(ctx, "user-1", "pack_01", "evt-spend-1", nil); err != nil {
		t.Fatalf("Spend failed: %v", err)
	}

	replay, err := svc.Spend(ctx, "user-1", "pack_01", "evt-spend-1", nil)
	if err != nil {
		t.Fatalf("replay returned error: %v", err)
	}
	if replay.Points != 300 {
		t.Errorf("replay changed points: %d", replay.Points)
	}
	assertLedgerInvariant(t, svc, "user-1")
}

func TestEarnValidation(t *testing.T) {
	svc, _ := newTestWalletService(t)
	ctx := context.Background()

	if _, err := svc.Earn(ctx, "user-1", "not_a_rule", "evt-12345678", nil); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
	if _, err := svc.Earn(ctx, "user-1", "signup", "short", nil); !errors.Is(err, ErrInvalidEventID) {
		t.Errorf("expected ErrInvalidEventID, got %v", err)
	}
	if _, err := svc.Spend(ctx, "user-1", "not_an_item", "evt-12345678", nil); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got %v", err)
	}
}

func TestConcurrentSpendsSerialized(t *testing.T) {
	svc, _ := newTestWalletService(t)
	ctx := context.Background()

	svc.rules["bonus"] = EarnRule{Points: 200}
	if _, err := svc.Earn(ctx, "user-1", "bonus", "evt-bonus-1", nil); err != nil {
		t.Fatalf("earn failed: %v", err)
	}

	// Two concurrent spends of 200 against a 200-point balance: exactly
	// one may pass the balance check.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eventID := []string{"evt-spend-a1", "evt-spend-b1"}[i]
			_, results[i] = svc.Spend(ctx, "user-1", "pack_01", eventID, nil)
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range results {
		var insufficient *InsufficientPointsError
		if errors.As(err, &insufficient) {
			failures++
		} else if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if failures != 1 {
		t.Errorf("expected exactly one rejected spend, got %d", failures)
	}

	w, _ := svc.GetWallet(ctx, "user-1")
	if w.Points != 0 {
		t.Errorf("expected 0 points after one successful spend, got %d", w.Points)
	}
	assertLedgerInvariant(t, svc, "user-1")
}
