package oracle

import (
	"context"
	"log/slog"
	"time"

	"github.com/moonflip/settlement-engine/internal/engine"
	"github.com/moonflip/settlement-engine/internal/model"
)

// PriceSource abstracts the feed for the authority (tests inject fakes).
type PriceSource interface {
	Price(ctx context.Context, mint string) (uint64, error)
}

// Authority drives the oracle side of the bet lifecycle: it polls unsettled
// bets, records a start price for fresh ones, and settles the ones whose
// window has closed. It holds the oracle identity the engine authorizes.
type Authority struct {
	engine *engine.Engine
	feed   PriceSource
	id     model.Identity
	now    func() time.Time
}

// NewAuthority creates an oracle authority worker.
func NewAuthority(eng *engine.Engine, feed PriceSource, id model.Identity) *Authority {
	return &Authority{
		engine: eng,
		feed:   feed,
		id:     id,
		now:    time.Now,
	}
}

// Run polls on the given interval until the context is cancelled.
// Must be called in a goroutine.
func (a *Authority) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("oracle authority started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("oracle authority stopped")
			return
		case <-ticker.C:
			a.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over the unsettled bets. Per-bet failures are logged
// and skipped; the next sweep retries them.
func (a *Authority) Sweep(ctx context.Context) {
	bets, err := a.engine.UnsettledBets(ctx)
	if err != nil {
		slog.Error("oracle sweep: list unsettled bets", "err", err)
		return
	}

	now := a.now().Unix()
	for i := range bets {
		bet := &bets[i]
		switch {
		case !bet.StartPriceSet():
			a.recordStart(ctx, bet)
		case now >= bet.EndTime:
			a.settle(ctx, bet)
		}
	}
}

func (a *Authority) recordStart(ctx context.Context, bet *model.Bet) {
	price, err := a.feed.Price(ctx, bet.TokenMint.String())
	if err != nil {
		slog.Error("oracle: start price fetch failed", "bet_id", bet.ID, "err", err)
		return
	}
	if price == 0 {
		// Zero is the unset sentinel; a zero observation would re-arm the
		// write-once guard, so it cannot be recorded.
		slog.Warn("oracle: feed returned zero start price, skipping", "bet_id", bet.ID)
		return
	}
	if _, err := a.engine.RecordStartPrice(ctx, a.id, bet.ID, price); err != nil {
		slog.Error("oracle: record start price failed", "bet_id", bet.ID, "err", err)
	}
}

func (a *Authority) settle(ctx context.Context, bet *model.Bet) {
	price, err := a.feed.Price(ctx, bet.TokenMint.String())
	if err != nil {
		slog.Error("oracle: end price fetch failed", "bet_id", bet.ID, "err", err)
		return
	}
	if _, err := a.engine.SettleBet(ctx, a.id, bet.ID, price); err != nil {
		slog.Error("oracle: settle failed", "bet_id", bet.ID, "err", err)
	}
}
