package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/moonflip/settlement-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	platform *model.Platform
	bets     map[string]*model.Bet
	order    []string // creation order of bet IDs
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bets: make(map[string]*model.Bet),
	}
}

func (s *MemoryStore) CreatePlatform(_ context.Context, p *model.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.platform != nil {
		return fmt.Errorf("create platform: %w", ErrAlreadyExists)
	}

	// Store a copy to avoid external mutation.
	cp := *p
	s.platform = &cp
	return nil
}

func (s *MemoryStore) GetPlatform(_ context.Context) (*model.Platform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.platform == nil {
		return nil, fmt.Errorf("get platform: %w", ErrNotFound)
	}
	cp := *s.platform
	return &cp, nil
}

func (s *MemoryStore) SetPlatformActive(_ context.Context, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.platform == nil {
		return fmt.Errorf("set platform active: %w", ErrNotFound)
	}
	s.platform.IsActive = active
	return nil
}

func (s *MemoryStore) CreateBet(_ context.Context, b *model.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.platform == nil {
		return fmt.Errorf("create bet: %w", ErrNotFound)
	}
	if _, ok := s.bets[b.ID]; ok {
		return fmt.Errorf("create bet %s: %w", b.ID, ErrAlreadyExists)
	}

	cp := *b
	s.bets[b.ID] = &cp
	s.order = append(s.order, b.ID)
	s.platform.TotalBets++
	s.platform.TotalVolume += b.Amount
	return nil
}

func (s *MemoryStore) GetBet(_ context.Context, id string) (*model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bets[id]
	if !ok {
		return nil, fmt.Errorf("get bet %s: %w", id, ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) ListBets(_ context.Context) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bets := make([]model.Bet, 0, len(s.order))
	for _, id := range s.order {
		bets = append(bets, *s.bets[id])
	}
	// Newest first, matching the Postgres ordering.
	sort.SliceStable(bets, func(i, j int) bool { return bets[i].StartTime > bets[j].StartTime })
	return bets, nil
}

func (s *MemoryStore) ListUnsettledBets(_ context.Context) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bets []model.Bet
	for _, id := range s.order {
		if b := s.bets[id]; !b.Settled() {
			bets = append(bets, *b)
		}
	}
	return bets, nil
}

func (s *MemoryStore) SetBetStartPrice(_ context.Context, id string, price uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bets[id]
	if !ok {
		return fmt.Errorf("set start price %s: %w", id, ErrNotFound)
	}
	if b.StartPrice != 0 || b.Settled() {
		return fmt.Errorf("set start price %s: %w", id, ErrPriceAlreadySet)
	}
	b.StartPrice = price
	return nil
}

func (s *MemoryStore) SettleBet(_ context.Context, id string, endPrice uint64, winner bool, payout uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bets[id]
	if !ok {
		return fmt.Errorf("settle bet %s: %w", id, ErrNotFound)
	}
	if b.Settled() {
		return fmt.Errorf("settle bet %s: %w", id, ErrAlreadySettled)
	}
	b.EndPrice = endPrice
	b.Status = model.StatusSettled
	b.IsWinner = winner
	b.Payout = payout
	return nil
}
