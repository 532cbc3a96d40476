package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/moonflip/settlement-engine/internal/model"
	"github.com/moonflip/settlement-engine/internal/store"
)

func newPlatform() *model.Platform {
	return &model.Platform{
		HouseFeeBps: 100,
		MinBet:      1000,
		MaxBet:      1_000_000,
		IsActive:    true,
	}
}

func newBet(id string, startTime int64) *model.Bet {
	return &model.Bet{
		ID:        id,
		Amount:    5000,
		StartTime: startTime,
		EndTime:   startTime + 60,
		Status:    model.StatusOpen,
	}
}

func TestCreatePlatform_Singleton(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetPlatform(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound before create, got %v", err)
	}

	if err := s.CreatePlatform(ctx, newPlatform()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreatePlatform(ctx, newPlatform()); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists on second create, got %v", err)
	}
}

func TestCreateBet_IncrementsCounters(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	s.CreatePlatform(ctx, newPlatform())

	if err := s.CreateBet(ctx, newBet("a", 100)); err != nil {
		t.Fatalf("create bet: %v", err)
	}
	if err := s.CreateBet(ctx, newBet("b", 200)); err != nil {
		t.Fatalf("create bet: %v", err)
	}

	p, _ := s.GetPlatform(ctx)
	if p.TotalBets != 2 || p.TotalVolume != 10_000 {
		t.Errorf("counters = %d/%d, want 2/10000", p.TotalBets, p.TotalVolume)
	}

	if err := s.CreateBet(ctx, newBet("a", 300)); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("duplicate id: expected ErrAlreadyExists, got %v", err)
	}
	p, _ = s.GetPlatform(ctx)
	if p.TotalBets != 2 {
		t.Error("counters moved on failed create")
	}
}

func TestListBets_NewestFirst(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	s.CreatePlatform(ctx, newPlatform())
	s.CreateBet(ctx, newBet("old", 100))
	s.CreateBet(ctx, newBet("new", 200))

	bets, err := s.ListBets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bets) != 2 || bets[0].ID != "new" || bets[1].ID != "old" {
		t.Errorf("order wrong: %+v", bets)
	}
}

func TestListUnsettledBets(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	s.CreatePlatform(ctx, newPlatform())
	s.CreateBet(ctx, newBet("a", 100))
	s.CreateBet(ctx, newBet("b", 200))

	if err := s.SettleBet(ctx, "a", 150, true, 4500); err != nil {
		t.Fatalf("settle: %v", err)
	}

	open, err := s.ListUnsettledBets(ctx)
	if err != nil {
		t.Fatalf("list unsettled: %v", err)
	}
	if len(open) != 1 || open[0].ID != "b" {
		t.Errorf("unsettled list wrong: %+v", open)
	}

	settled, _ := s.GetBet(ctx, "a")
	if !settled.Settled() || settled.EndPrice != 150 || settled.Payout != 4500 {
		t.Errorf("settlement fields wrong: %+v", settled)
	}
}

func TestSetBetStartPrice(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	s.CreatePlatform(ctx, newPlatform())
	s.CreateBet(ctx, newBet("a", 100))

	if err := s.SetBetStartPrice(ctx, "a", 123); err != nil {
		t.Fatalf("set start price: %v", err)
	}
	b, _ := s.GetBet(ctx, "a")
	if b.StartPrice != 123 {
		t.Errorf("start price = %d, want 123", b.StartPrice)
	}

	if err := s.SetBetStartPrice(ctx, "missing", 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetBet_ReturnsCopy(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	s.CreatePlatform(ctx, newPlatform())
	s.CreateBet(ctx, newBet("a", 100))

	b, _ := s.GetBet(ctx, "a")
	b.Amount = 999_999

	again, _ := s.GetBet(ctx, "a")
	if again.Amount != 5000 {
		t.Error("mutating a returned bet leaked into the store")
	}
}

func TestSettleBet_OneWay(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	s.CreatePlatform(ctx, newPlatform())
	s.CreateBet(ctx, newBet("a", 100))

	if err := s.SettleBet(ctx, "a", 150, true, 4500); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// The transition is enforced by the store itself, independent of any
	// caller-side check against a possibly stale read.
	if err := s.SettleBet(ctx, "a", 50, false, 0); !errors.Is(err, store.ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}

	b, _ := s.GetBet(ctx, "a")
	if b.EndPrice != 150 || !b.IsWinner || b.Payout != 4500 {
		t.Errorf("second settle mutated the record: %+v", b)
	}
}

func TestSetBetStartPrice_WriteOnce(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	s.CreatePlatform(ctx, newPlatform())
	s.CreateBet(ctx, newBet("a", 100))

	if err := s.SetBetStartPrice(ctx, "a", 123); err != nil {
		t.Fatalf("set start price: %v", err)
	}
	if err := s.SetBetStartPrice(ctx, "a", 456); !errors.Is(err, store.ErrPriceAlreadySet) {
		t.Fatalf("expected ErrPriceAlreadySet, got %v", err)
	}

	b, _ := s.GetBet(ctx, "a")
	if b.StartPrice != 123 {
		t.Errorf("start price = %d, want 123", b.StartPrice)
	}
}
