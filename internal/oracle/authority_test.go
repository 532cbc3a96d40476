package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/moonflip/settlement-engine/internal/engine"
	"github.com/moonflip/settlement-engine/internal/event"
	"github.com/moonflip/settlement-engine/internal/ledger"
	"github.com/moonflip/settlement-engine/internal/model"
	"github.com/moonflip/settlement-engine/internal/store"
)

// stubFeed returns a fixed price per mint, or a forced error.
type stubFeed struct {
	prices map[string]uint64
	err    error
}

func (f *stubFeed) Price(_ context.Context, mint string) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.prices[mint], nil
}

type authorityEnv struct {
	authority *Authority
	engine    *engine.Engine
	ledger    *ledger.MemoryLedger
	feed      *stubFeed
	now       time.Time
}

// advance moves both the engine clock and the authority clock.
func (env *authorityEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func newAuthorityEnv(t *testing.T) *authorityEnv {
	t.Helper()

	var oracleID, adminID, houseID model.Identity
	oracleID[0] = 0x0A
	adminID[0] = 0x0B
	houseID[0] = 0x0C

	env := &authorityEnv{
		feed: &stubFeed{prices: map[string]uint64{}},
		now:  time.Unix(1_700_000_000, 0),
	}
	env.ledger = ledger.NewMemoryLedger(0)
	env.engine = engine.New(store.NewMemoryStore(), env.ledger, oracleID, &event.Recorder{},
		engine.WithClock(func() time.Time { return env.now }))

	env.authority = NewAuthority(env.engine, env.feed, oracleID)
	env.authority.now = func() time.Time { return env.now }

	if _, err := env.engine.InitializePlatform(context.Background(), adminID, houseID, 100, 1000, 1_000_000); err != nil {
		t.Fatalf("initialize platform: %v", err)
	}
	return env
}

func (env *authorityEnv) createBet(t *testing.T) *model.Bet {
	t.Helper()
	var player, mint model.Identity
	player[0] = 0x0D
	mint[0] = 0x0E

	env.ledger.Deposit(player.String(), 10_000)
	bet, err := env.engine.CreateBet(context.Background(), player, 5000, true, 60, mint)
	if err != nil {
		t.Fatalf("create bet: %v", err)
	}
	env.feed.prices[mint.String()] = 100
	return bet
}

func TestSweep_RecordsStartPrice(t *testing.T) {
	env := newAuthorityEnv(t)
	bet := env.createBet(t)

	env.authority.Sweep(context.Background())

	stored, _ := env.engine.Bet(context.Background(), bet.ID)
	if stored.StartPrice != 100 {
		t.Errorf("start price = %d, want 100", stored.StartPrice)
	}
	if stored.Settled() {
		t.Error("bet must not settle before expiry")
	}
}

func TestSweep_SettlesExpiredBet(t *testing.T) {
	env := newAuthorityEnv(t)
	bet := env.createBet(t)

	env.authority.Sweep(context.Background()) // stamps start price 100

	env.feed.prices[bet.TokenMint.String()] = 150
	env.advance(61 * time.Second)
	env.authority.Sweep(context.Background())

	stored, _ := env.engine.Bet(context.Background(), bet.ID)
	if !stored.Settled() {
		t.Fatal("expired bet not settled")
	}
	if !stored.IsWinner || stored.EndPrice != 150 || stored.Payout != 4500 {
		t.Errorf("settlement wrong: %+v", stored)
	}
}

func TestSweep_SkipsZeroStartPrice(t *testing.T) {
	env := newAuthorityEnv(t)
	bet := env.createBet(t)
	env.feed.prices[bet.TokenMint.String()] = 0

	env.authority.Sweep(context.Background())

	stored, _ := env.engine.Bet(context.Background(), bet.ID)
	if stored.StartPriceSet() {
		t.Error("zero observation must not be recorded as a start price")
	}

	// The next sweep picks the bet up once the feed recovers.
	env.feed.prices[bet.TokenMint.String()] = 100
	env.authority.Sweep(context.Background())

	stored, _ = env.engine.Bet(context.Background(), bet.ID)
	if stored.StartPrice != 100 {
		t.Errorf("start price = %d after recovery, want 100", stored.StartPrice)
	}
}

func TestSweep_RetriesAfterFeedError(t *testing.T) {
	env := newAuthorityEnv(t)
	bet := env.createBet(t)
	env.authority.Sweep(context.Background())

	env.advance(61 * time.Second)
	env.feed.err = errors.New("feed down")
	env.authority.Sweep(context.Background())

	stored, _ := env.engine.Bet(context.Background(), bet.ID)
	if stored.Settled() {
		t.Fatal("bet settled despite feed failure")
	}

	env.feed.err = nil
	env.feed.prices[bet.TokenMint.String()] = 90
	env.authority.Sweep(context.Background())

	stored, _ = env.engine.Bet(context.Background(), bet.ID)
	if !stored.Settled() {
		t.Fatal("bet not settled after feed recovery")
	}
	if stored.IsWinner {
		t.Error("90 < 100 with an up prediction must lose")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	env := newAuthorityEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.authority.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
