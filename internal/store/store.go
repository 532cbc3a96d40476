// Package store defines the persistence interface for the settlement engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache over the byte-exact record layout), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/moonflip/settlement-engine/internal/model"
)

var (
	// ErrNotFound is returned when a platform or bet record does not exist.
	ErrNotFound = errors.New("store: record not found")

	// ErrAlreadyExists is returned when creating a record whose slot is
	// already occupied (the platform singleton, or a duplicate bet ID).
	ErrAlreadyExists = errors.New("store: record already exists")

	// ErrAlreadySettled is returned when settling a bet that is settled.
	ErrAlreadySettled = errors.New("store: bet already settled")

	// ErrPriceAlreadySet is returned when writing a start price over one
	// already recorded.
	ErrPriceAlreadySet = errors.New("store: start price already set")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Platform singleton ---

	// CreatePlatform persists the platform record. There is exactly one;
	// a second create fails with ErrAlreadyExists.
	CreatePlatform(ctx context.Context, p *model.Platform) error

	// GetPlatform retrieves the platform record.
	GetPlatform(ctx context.Context) (*model.Platform, error)

	// SetPlatformActive flips the activity gate.
	SetPlatformActive(ctx context.Context, active bool) error

	// --- Bet records ---

	// CreateBet persists a new bet and increments the platform counters
	// (total_bets +1, total_volume +amount) in the same atomic unit.
	CreateBet(ctx context.Context, b *model.Bet) error

	// GetBet retrieves a bet by ID.
	GetBet(ctx context.Context, id string) (*model.Bet, error)

	// ListBets returns all bets, newest first.
	ListBets(ctx context.Context) ([]model.Bet, error)

	// ListUnsettledBets returns bets still awaiting settlement.
	ListUnsettledBets(ctx context.Context) ([]model.Bet, error)

	// SetBetStartPrice records the start price. The write-once guard is
	// enforced here, at the source of truth: a second write fails with
	// ErrPriceAlreadySet even if the caller read a stale copy of the bet.
	SetBetStartPrice(ctx context.Context, id string, price uint64) error

	// SettleBet writes the settlement outcome and flips the bet to
	// settled. The one-way transition is enforced here: settling a
	// settled bet fails with ErrAlreadySettled regardless of what the
	// caller read.
	SettleBet(ctx context.Context, id string, endPrice uint64, winner bool, payout uint64) error
}
