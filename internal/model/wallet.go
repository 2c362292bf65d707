package model

import "time"

// TxType is the direction of a ledger transaction
type TxType string

const (
	TxEarn  TxType = "earn"
	TxSpend TxType = "spend"
)

// LedgerTx is a single entry in a wallet's append-only ledger.
// Entries are never edited or removed; corrections would be new entries.
type LedgerTx struct {
	ID            string                 `json:"id"`
	ClientEventID string                 `json:"clientEventId"`
	Type          TxType                 `json:"type"`
	Reason        string                 `json:"reason"` // earn action or store item id
	Amount        int                    `json:"amount"` // positive for earn, negative for spend
	CreatedAt     time.Time              `json:"createdAt"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
}

// Wallet holds a user's point balance and full transaction history.
// Invariant: Points == sum of all ledger amounts.
type Wallet struct {
	UserID    string     `json:"userId"`
	Points    int        `json:"points"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Ledger    []LedgerTx `json:"ledger"`
}

// HasEvent reports whether a transaction with the given idempotency key exists.
func (w *Wallet) HasEvent(clientEventID string) bool {
	for _, tx := range w.Ledger {
		if tx.ClientEventID == clientEventID {
			return true
		}
	}
	return false
}

// HasEarned reports whether the wallet ever earned for the given reason.
func (w *Wallet) HasEarned(reason string) bool {
	for _, tx := range w.Ledger {
		if tx.Type == TxEarn && tx.Reason == reason {
			return true
		}
	}
	return false
}

// LastEarn returns the most recent earn entry for the given reason, or nil.
func (w *Wallet) LastEarn(reason string) *LedgerTx {
	for i := len(w.Ledger) - 1; i >= 0; i-- {
		if w.Ledger[i].Type == TxEarn && w.Ledger[i].Reason == reason {
			return &w.Ledger[i]
		}
	}
	return nil
}

// LedgerSum recomputes the balance from the full ledger.
func (w *Wallet) LedgerSum() int {
	sum := 0
	for _, tx := range w.Ledger {
		sum += tx.Amount
	}
	return sum
}

// TailLedger returns the last n ledger entries in chronological order.
func (w *Wallet) TailLedger(n int) []LedgerTx {
	if len(w.Ledger) <= n {
		return w.Ledger
	}
	return w.Ledger[len(w.Ledger)-n:]
}

// WalletSnapshot is the mutation response: balance without history.
type WalletSnapshot struct {
	UserID    string    `json:"userId"`
	Points    int       `json:"points"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WalletView is the read response with the recent ledger tail.
type WalletView struct {
	UserID    string     `json:"userId"`
	Points    int        `json:"points"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Ledger    []LedgerTx `json:"ledger"`
}

// EarnRequest is the body of POST /wallet/earn
type EarnRequest struct {
	Action        string                 `json:"action" validate:"required"`
	ClientEventID string                 `json:"clientEventId" validate:"required,min=8"`
	Meta          map[string]interface{} `json:"meta"`
}

// SpendRequest is the body of POST /wallet/spend
type SpendRequest struct {
	ItemID        string                 `json:"itemId" validate:"required"`
	ClientEventID string                 `json:"clientEventId" validate:"required,min=8"`
	Meta          map[string]interface{} `json:"meta"`
}
