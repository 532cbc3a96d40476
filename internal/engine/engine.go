// Package engine implements the bet lifecycle state machine: platform
// initialization, bet creation with fund escrow, oracle price recording,
// and settlement with payout release.
//
// Every operation is an all-or-nothing transition: preconditions are checked
// before any mutation, and a failed check aborts with zero observable state
// change. This is the only place money moves.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moonflip/settlement-engine/internal/event"
	"github.com/moonflip/settlement-engine/internal/ledger"
	"github.com/moonflip/settlement-engine/internal/metrics"
	"github.com/moonflip/settlement-engine/internal/model"
	"github.com/moonflip/settlement-engine/internal/store"
)

var (
	ErrPlatformExists    = errors.New("engine: platform already initialized")
	ErrPlatformNotFound  = errors.New("engine: platform not initialized")
	ErrPlatformInactive  = errors.New("engine: platform is inactive")
	ErrBetTooSmall       = errors.New("engine: bet amount below minimum")
	ErrBetTooLarge       = errors.New("engine: bet amount above maximum")
	ErrBetNotFound       = errors.New("engine: bet not found")
	ErrBetAlreadySettled = errors.New("engine: bet already settled")
	ErrBetNotExpired     = errors.New("engine: bet not expired")
	ErrPriceAlreadySet   = errors.New("engine: start price already set")
	ErrInvalidFee        = errors.New("engine: house fee exceeds 10000 bps")
	ErrInvalidBounds     = errors.New("engine: min bet exceeds max bet")
	ErrInvalidDuration   = errors.New("engine: duration must be positive")
	ErrUnauthorized      = errors.New("engine: caller lacks required capability")
)

// Engine executes lifecycle transitions against the store and the escrow
// ledger. Uses a mutex for serialized mutation (single-instance); the
// write-once settled/start-price guards are the defense of record. For
// horizontal scaling, replace with database-level optimistic concurrency.
type Engine struct {
	store  store.Store
	ledger ledger.Ledger
	sink   event.Sink
	oracle model.Identity // authority allowed to record prices and settle
	now    func() time.Time
	mu     sync.Mutex
}

// Option configures optional engine behavior.
type Option func(*Engine)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. The oracle identity is the only caller allowed to
// record prices and settle bets; sink may be nil to drop events.
func New(st store.Store, lg ledger.Ledger, oracle model.Identity, sink event.Sink, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		ledger: lg,
		sink:   sink,
		oracle: oracle,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InitializePlatform creates the platform singleton. All bounds must be
// supplied explicitly; there are no defaults. Fails with ErrPlatformExists
// on a second invocation.
func (e *Engine) InitializePlatform(ctx context.Context, admin, houseWallet model.Identity, houseFeeBps uint16, minBet, maxBet uint64) (*model.Platform, error) {
	if houseFeeBps > model.MaxFeeBps {
		return nil, ErrInvalidFee
	}
	if minBet > maxBet {
		return nil, ErrInvalidBounds
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := &model.Platform{
		Admin:       admin,
		HouseWallet: houseWallet,
		HouseFeeBps: houseFeeBps,
		MinBet:      minBet,
		MaxBet:      maxBet,
		TotalBets:   0,
		TotalVolume: 0,
		IsActive:    true,
	}

	if err := e.store.CreatePlatform(ctx, p); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrPlatformExists
		}
		return nil, fmt.Errorf("initialize platform: %w", err)
	}

	e.emit(ctx, event.Event{
		Kind:        event.KindPlatformInitialized,
		Admin:       admin.String(),
		HouseWallet: houseWallet.String(),
		HouseFeeBps: houseFeeBps,
		MinBet:      minBet,
		MaxBet:      maxBet,
	})

	slog.Info("platform initialized",
		"admin", admin.String(),
		"house_fee_bps", houseFeeBps,
		"min_bet", minBet,
		"max_bet", maxBet,
	)

	return p, nil
}

// SetActive flips the platform activity gate. Admin capability required.
func (e *Engine) SetActive(ctx context.Context, actor model.Identity, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.loadPlatform(ctx)
	if err != nil {
		return err
	}
	if actor != p.Admin {
		return ErrUnauthorized
	}

	if err := e.store.SetPlatformActive(ctx, active); err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	e.emit(ctx, event.Event{
		Kind:     event.KindPlatformStatusChanged,
		Admin:    actor.String(),
		IsActive: active,
	})

	slog.Info("platform status changed", "is_active", active)
	return nil
}

// CreateBet escrows the stake and records a new open bet. The escrow
// transfer and the platform counter increments form one atomic unit: if
// the transfer fails nothing persists, and if persistence fails the
// transfer is reversed.
func (e *Engine) CreateBet(ctx context.Context, player model.Identity, amount uint64, prediction bool, duration int64, tokenMint model.Identity) (*model.Bet, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.loadPlatform(ctx)
	if err != nil {
		return nil, err
	}

	// Precondition order matters: first failure aborts, no state change.
	if !p.IsActive {
		return nil, ErrPlatformInactive
	}
	if amount < p.MinBet {
		return nil, ErrBetTooSmall
	}
	if amount > p.MaxBet {
		return nil, ErrBetTooLarge
	}

	now := e.now().Unix()
	bet := &model.Bet{
		ID:         uuid.New().String(),
		Player:     player,
		Amount:     amount,
		Prediction: prediction,
		TokenMint:  tokenMint,
		StartTime:  now,
		EndTime:    now + duration,
		Status:     model.StatusOpen,
	}

	if err := e.ledger.Transfer(ctx, player.String(), bet.EscrowAccount(), amount); err != nil {
		return nil, fmt.Errorf("escrow stake: %w", err)
	}

	if err := e.store.CreateBet(ctx, bet); err != nil {
		// Undo the escrow so a persistence failure leaves no trace.
		if rerr := e.ledger.Transfer(ctx, bet.EscrowAccount(), player.String(), amount); rerr != nil {
			slog.Error("escrow refund failed after persist error",
				"bet_id", bet.ID, "amount", amount, "err", rerr)
		}
		return nil, fmt.Errorf("persist bet: %w", err)
	}

	metrics.BetsCreatedTotal.Inc()
	metrics.BetVolumeTotal.Add(float64(amount))
	metrics.OpenBets.Inc()

	e.emit(ctx, event.Event{
		Kind:       event.KindBetCreated,
		BetID:      bet.ID,
		Player:     player.String(),
		Amount:     amount,
		Prediction: prediction,
		Duration:   duration,
		TokenMint:  tokenMint.String(),
	})

	slog.Info("bet created",
		"bet_id", bet.ID,
		"player", player.String(),
		"amount", amount,
		"prediction", prediction,
		"end_time", bet.EndTime,
	)

	return bet, nil
}

// RecordStartPrice stamps the write-once start price onto an open bet.
// Oracle capability required. The price value itself is trusted input;
// no bound is enforced here.
func (e *Engine) RecordStartPrice(ctx context.Context, actor model.Identity, betID string, startPrice uint64) (*model.Bet, error) {
	if actor != e.oracle {
		return nil, ErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	bet, err := e.loadBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if bet.Settled() {
		return nil, ErrBetAlreadySettled
	}
	if bet.StartPriceSet() {
		return nil, ErrPriceAlreadySet
	}

	// The store re-checks the guard on the write itself, so a stale read
	// (a cache serving a pre-write copy) cannot slip a second price in.
	if err := e.store.SetBetStartPrice(ctx, betID, startPrice); err != nil {
		if errors.Is(err, store.ErrPriceAlreadySet) {
			return nil, ErrPriceAlreadySet
		}
		return nil, fmt.Errorf("record start price: %w", err)
	}
	bet.StartPrice = startPrice

	e.emit(ctx, event.Event{
		Kind:       event.KindBetPriceUpdated,
		BetID:      betID,
		StartPrice: startPrice,
	})

	slog.Info("start price recorded", "bet_id", betID, "start_price", startPrice)
	return bet, nil
}

// SettleBet finalizes an expired bet: records the end price, decides the
// outcome, and releases the payout on a win. The settled flip and the fund
// release happen under the same critical section, so a concurrent second
// attempt always observes the settled state. Settlement happens even when
// the bet loses; the losing stake stays at rest in the bet's escrow.
func (e *Engine) SettleBet(ctx context.Context, actor model.Identity, betID string, endPrice uint64) (*model.Bet, error) {
	if actor != e.oracle {
		return nil, ErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	bet, err := e.loadBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if bet.Settled() {
		return nil, ErrBetAlreadySettled
	}
	if e.now().Unix() < bet.EndTime {
		return nil, ErrBetNotExpired
	}

	// Equality resolves to "not winner" under either prediction.
	winner := false
	if bet.Prediction {
		winner = endPrice > bet.StartPrice
	} else {
		winner = endPrice < bet.StartPrice
	}

	// Fixed 90% redemption, integer truncation. Independent of the
	// configured house fee bps; the fee field is bookkeeping only.
	var payout uint64
	if winner {
		payout = bet.Amount * 90 / 100
		if err := e.ledger.Transfer(ctx, bet.EscrowAccount(), bet.Player.String(), payout); err != nil {
			return nil, fmt.Errorf("release payout: %w", err)
		}
	}

	// The persist is conditional on the bet still being open at the source
	// of truth. If another settlement won the race (or this bet was read
	// through a stale cache entry), the write is rejected there and the
	// payout is pulled back, so the finalized record and the escrow stay
	// exactly as the first settlement left them.
	if err := e.store.SettleBet(ctx, betID, endPrice, winner, payout); err != nil {
		if winner {
			// Pull the payout back so the failed settlement leaves no trace.
			if rerr := e.ledger.Transfer(ctx, bet.Player.String(), bet.EscrowAccount(), payout); rerr != nil {
				slog.Error("payout reversal failed after persist error",
					"bet_id", betID, "payout", payout, "err", rerr)
			}
		}
		if errors.Is(err, store.ErrAlreadySettled) {
			return nil, ErrBetAlreadySettled
		}
		return nil, fmt.Errorf("persist settlement: %w", err)
	}

	bet.EndPrice = endPrice
	bet.Status = model.StatusSettled
	bet.IsWinner = winner
	bet.Payout = payout

	outcome := "lost"
	if winner {
		outcome = "won"
		metrics.PayoutUnitsTotal.Add(float64(payout))
	}
	metrics.SettlementsTotal.WithLabelValues(outcome).Inc()
	metrics.OpenBets.Dec()

	e.emit(ctx, event.Event{
		Kind:     event.KindBetSettled,
		BetID:    betID,
		Player:   bet.Player.String(),
		EndPrice: endPrice,
		IsWinner: winner,
		Payout:   payout,
	})

	slog.Info("bet settled",
		"bet_id", betID,
		"end_price", endPrice,
		"is_winner", winner,
		"payout", payout,
	)

	return bet, nil
}

// Platform returns the platform record.
func (e *Engine) Platform(ctx context.Context) (*model.Platform, error) {
	return e.loadPlatform(ctx)
}

// Bet returns one bet record.
func (e *Engine) Bet(ctx context.Context, id string) (*model.Bet, error) {
	return e.loadBet(ctx, id)
}

// Bets returns all bet records, newest first.
func (e *Engine) Bets(ctx context.Context) ([]model.Bet, error) {
	return e.store.ListBets(ctx)
}

// UnsettledBets returns bets still awaiting settlement, oldest first.
func (e *Engine) UnsettledBets(ctx context.Context) ([]model.Bet, error) {
	return e.store.ListUnsettledBets(ctx)
}

func (e *Engine) loadPlatform(ctx context.Context) (*model.Platform, error) {
	p, err := e.store.GetPlatform(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPlatformNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load platform: %w", err)
	}
	return p, nil
}

func (e *Engine) loadBet(ctx context.Context, id string) (*model.Bet, error) {
	b, err := e.store.GetBet(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load bet %s: %w", id, err)
	}
	return b, nil
}

func (e *Engine) emit(ctx context.Context, ev event.Event) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(ctx, event.Stamp(ev))
}
