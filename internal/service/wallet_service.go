package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/musichub/api/internal/model"
	"github.com/musichub/api/internal/store"
)

const minEventIDLen = 8

// WalletService is the single mutation path for wallets. Every earn and
// spend runs as one serialized read-evaluate-write cycle per user, so two
// concurrent spends can never both pass the balance check on a stale read.
type WalletService struct {
	store store.Store
	rules map[string]EarnRule
	items map[string]StoreItem
	locks *keyMutex
	now   func() time.Time
}

func NewWalletService(recordStore store.Store) *WalletService {
	return &WalletService{
		store: recordStore,
		rules: DefaultEarnRules(),
		items: DefaultStoreItems(),
		locks: newKeyMutex(),
		now:   time.Now,
	}
}

func walletKey(userID string) string {
	return "wallet:" + userID
}

// GetWallet returns the user's wallet, creating an empty one on first access.
func (s *WalletService) GetWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	unlock := s.locks.Lock(walletKey(userID))
	defer unlock()

	return s.getOrCreate(ctx, userID)
}

// Earn grants points for an action, subject to idempotency, once-only and
// cooldown rules.
func (s *WalletService) Earn(ctx context.Context, userID, action, clientEventID string, meta map[string]interface{}) (*model.WalletSnapshot, error) {
	rule, ok := s.rules[action]
	if !ok {
		return nil, ErrUnknownAction
	}
	if len(clientEventID) < minEventIDLen {
		return nil, ErrInvalidEventID
	}

	unlock := s.locks.Lock(walletKey(userID))
	defer unlock()

	w, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Replays of a timed-out request must be side-effect free.
	if w.HasEvent(clientEventID) {
		return snapshot(w), nil
	}

	if rule.Once && w.HasEarned(action) {
		return nil, ErrAlreadyClaimed
	}
	if rule.Cooldown > 0 {
		if last := w.LastEarn(action); last != nil {
			remaining := rule.Cooldown - s.now().Sub(last.CreatedAt)
			if remaining > 0 {
				return nil, &CooldownActiveError{Remaining: remaining}
			}
		}
	}

	s.append(w, model.LedgerTx{
		ID:            "tx_" + uuid.NewString(),
		ClientEventID: clientEventID,
		Type:          model.TxEarn,
		Reason:        action,
		Amount:        rule.Points,
		CreatedAt:     s.now(),
		Meta:          meta,
	})

	if err := s.saveWallet(ctx, w); err != nil {
		return nil, err
	}
	return snapshot(w), nil
}

// Spend deducts an item's cost, subject to idempotency and the balance check.
func (s *WalletService) Spend(ctx context.Context, userID, itemID, clientEventID string, meta map[string]interface{}) (*model.WalletSnapshot, error) {
	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrUnknownItem
	}
	if len(clientEventID) < minEventIDLen {
		return nil, ErrInvalidEventID
	}

	unlock := s.locks.Lock(walletKey(userID))
	defer unlock()

	w, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if w.HasEvent(clientEventID) {
		return snapshot(w), nil
	}

	if w.Points < item.Cost {
		return nil, &InsufficientPointsError{Required: item.Cost, Have: w.Points}
	}

	s.append(w, model.LedgerTx{
		ID:            "tx_" + uuid.NewString(),
		ClientEventID: clientEventID,
		Type:          model.TxSpend,
		Reason:        itemID,
		Amount:        -item.Cost,
		CreatedAt:     s.now(),
		Meta:          meta,
	})

	if err := s.saveWallet(ctx, w); err != nil {
		return nil, err
	}
	return snapshot(w), nil
}

// append applies a ledger entry, keeping points equal to the ledger sum.
func (s *WalletService) append(w *model.Wallet, tx model.LedgerTx) {
	w.Ledger = append(w.Ledger, tx)
	w.Points += tx.Amount
	w.UpdatedAt = tx.CreatedAt
}

// getOrCreate must be called with the user's wallet lock held.
func (s *WalletService) getOrCreate(ctx context.Context, userID string) (*model.Wallet, error) {
	data, err := s.store.Get(ctx, walletKey(userID))
	if err != nil {
		if err == store.ErrNotFound {
			w := &model.Wallet{
				UserID:    userID,
				Points:    0,
				UpdatedAt: s.now(),
				Ledger:    []model.LedgerTx{},
			}
			if err := s.saveWallet(ctx, w); err != nil {
				return nil, err
			}
			return w, nil
		}
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	var w model.Wallet
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode wallet: %w", err)
	}
	return &w, nil
}

func (s *WalletService) saveWallet(ctx context.Context, w *model.Wallet) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to encode wallet: %w", err)
	}
	if err := s.store.Put(ctx, walletKey(w.UserID), data); err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	return nil
}

func snapshot(w *model.Wallet) *model.WalletSnapshot {
	return &model.WalletSnapshot{
		UserID:    w.UserID,
		Points:    w.Points,
		UpdatedAt: w.UpdatedAt,
	}
}
