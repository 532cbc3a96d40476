// Package model defines the core domain types shared across the settlement
// engine. All monetary amounts and prices are unsigned base units (lamport
// scale for stakes, micro-dollars for prices), never float64.
package model

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Identity is an opaque 32-byte account identity (a chain public key).
// The engine never interprets it beyond equality checks; signature
// verification belongs to the host ledger.
type Identity [32]byte

// ParseIdentity decodes a 64-character hex string into an Identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("model: invalid identity %q: %w", s, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("model: identity must be %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// String returns the hex encoding of the identity.
func (id Identity) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether the identity is the all-zero value.
func (id Identity) IsZero() bool { return id == Identity{} }

func (id Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *Identity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseIdentity(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Platform is the process-wide configuration singleton. Created exactly once;
// only the counters and the active flag change after initialization.
type Platform struct {
	Admin       Identity `json:"admin"`
	HouseWallet Identity `json:"house_wallet"`
	HouseFeeBps uint16   `json:"house_fee_bps"`
	MinBet      uint64   `json:"min_bet"`
	MaxBet      uint64   `json:"max_bet"`
	TotalBets   uint64   `json:"total_bets"`
	TotalVolume uint64   `json:"total_volume"`
	IsActive    bool     `json:"is_active"`
}

// MaxFeeBps is the upper bound for the house fee rate (100%).
const MaxFeeBps = 10000

// Bet lifecycle states. The transition is one-way: open → settled.
const (
	StatusOpen    = "open"
	StatusSettled = "settled"
)

// Bet represents one wager: a staked prediction on whether a tracked price
// rises or falls over a fixed window. Player, amount, prediction, mint and
// the window bounds are immutable after creation; the settlement fields are
// written exactly once by the oracle authority.
type Bet struct {
	ID         string   `json:"id"`
	Player     Identity `json:"player"`
	Amount     uint64   `json:"amount"`
	Prediction bool     `json:"prediction"` // true = price will rise
	TokenMint  Identity `json:"token_mint"`
	StartTime  int64    `json:"start_time"`
	EndTime    int64    `json:"end_time"`
	StartPrice uint64   `json:"start_price"` // 0 = unset
	EndPrice   uint64   `json:"end_price"`
	Status     string   `json:"status"` // "open" or "settled"
	IsWinner   bool     `json:"is_winner"`
	Payout     uint64   `json:"payout"`
}

// Settled reports whether the bet has been finalized.
func (b *Bet) Settled() bool { return b.Status == StatusSettled }

// StartPriceSet reports whether the oracle has recorded the start price.
// Zero is the unset sentinel, matching the persisted layout.
func (b *Bet) StartPriceSet() bool { return b.StartPrice != 0 }

// EscrowAccount is the ledger account holding this bet's staked funds.
func (b *Bet) EscrowAccount() string { return "escrow:" + b.ID }
