// Package ledger defines the fund-movement gateway used by bet creation
// (inbound escrow) and settlement (outbound payout). In production the host
// chain implements it; MemoryLedger backs tests and local development.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrInsufficientFunds is returned when the source account cannot
	// cover the transfer amount.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrUnknownAccount is returned when querying an account the ledger
	// has never seen.
	ErrUnknownAccount = errors.New("ledger: unknown account")
)

// Ledger moves funds between accounts. A Transfer either completes in full
// or leaves both balances untouched.
type Ledger interface {
	Transfer(ctx context.Context, from, to string, amount uint64) error
	Balance(ctx context.Context, account string) (uint64, error)
}

// Entry is an immutable record of one executed transfer.
type Entry struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Amount uint64    `json:"amount"`
	At     time.Time `json:"at"`
}

// MemoryLedger implements Ledger with in-memory balances and an append-only
// entry log. Accounts are created lazily with the configured opening balance.
type MemoryLedger struct {
	mu       sync.Mutex
	opening  uint64
	balances map[string]uint64
	entries  []Entry
}

// NewMemoryLedger creates a ledger where unseen accounts start with the
// given opening balance. Tests use 0 and fund accounts via Deposit.
func NewMemoryLedger(opening uint64) *MemoryLedger {
	return &MemoryLedger{
		opening:  opening,
		balances: make(map[string]uint64),
	}
}

// Deposit credits an account outside the transfer flow (dev faucet).
func (l *MemoryLedger) Deposit(account string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] = l.balance(account) + amount
}

func (l *MemoryLedger) Transfer(_ context.Context, from, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	fromBal := l.balance(from)
	if fromBal < amount {
		return ErrInsufficientFunds
	}

	l.balances[from] = fromBal - amount
	l.balances[to] = l.balance(to) + amount
	l.entries = append(l.entries, Entry{
		From:   from,
		To:     to,
		Amount: amount,
		At:     time.Now().UTC(),
	})
	return nil
}

func (l *MemoryLedger) Balance(_ context.Context, account string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.balances[account]; !ok && l.opening == 0 {
		return 0, ErrUnknownAccount
	}
	return l.balance(account), nil
}

// Entries returns a copy of the transfer log.
func (l *MemoryLedger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// balance resolves an account's balance, applying the lazy opening balance.
// Caller must hold l.mu.
func (l *MemoryLedger) balance(account string) uint64 {
	if bal, ok := l.balances[account]; ok {
		return bal
	}
	return l.opening
}
