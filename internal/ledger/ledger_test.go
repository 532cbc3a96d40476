package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/moonflip/settlement-engine/internal/ledger"
)

func TestTransfer(t *testing.T) {
	l := ledger.NewMemoryLedger(0)
	l.Deposit("alice", 1000)

	if err := l.Transfer(context.Background(), "alice", "bob", 400); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if bal, _ := l.Balance(context.Background(), "alice"); bal != 600 {
		t.Errorf("alice = %d, want 600", bal)
	}
	if bal, _ := l.Balance(context.Background(), "bob"); bal != 400 {
		t.Errorf("bob = %d, want 400", bal)
	}

	entries := l.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].From != "alice" || entries[0].To != "bob" || entries[0].Amount != 400 {
		t.Errorf("entry mismatch: %+v", entries[0])
	}
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	l := ledger.NewMemoryLedger(0)
	l.Deposit("alice", 100)

	err := l.Transfer(context.Background(), "alice", "bob", 101)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Both balances untouched, nothing logged.
	if bal, _ := l.Balance(context.Background(), "alice"); bal != 100 {
		t.Errorf("alice = %d, want 100", bal)
	}
	if len(l.Entries()) != 0 {
		t.Error("failed transfer was logged")
	}
}

func TestBalance_UnknownAccount(t *testing.T) {
	l := ledger.NewMemoryLedger(0)

	_, err := l.Balance(context.Background(), "nobody")
	if !errors.Is(err, ledger.ErrUnknownAccount) {
		t.Errorf("expected ErrUnknownAccount, got %v", err)
	}
}

func TestOpeningBalance(t *testing.T) {
	l := ledger.NewMemoryLedger(5000)

	// Unseen accounts start with the opening balance.
	if bal, err := l.Balance(context.Background(), "fresh"); err != nil || bal != 5000 {
		t.Errorf("fresh account = %d (%v), want 5000", bal, err)
	}

	if err := l.Transfer(context.Background(), "fresh", "sink", 5000); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal, _ := l.Balance(context.Background(), "fresh"); bal != 0 {
		t.Errorf("fresh drained = %d, want 0", bal)
	}
	// The sink held the opening balance before receiving.
	if bal, _ := l.Balance(context.Background(), "sink"); bal != 10_000 {
		t.Errorf("sink = %d, want 10000", bal)
	}
}
