package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moonflip/settlement-engine/internal/model"
	"github.com/moonflip/settlement-engine/internal/record"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Records are cached in their byte-exact persisted layout, so cache
// entries stay compatible with the on-chain account data. Writes go to the
// primary store and refresh or invalidate the cache; reads check Redis
// first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh cache) ---

func (s *CachedStore) CreatePlatform(ctx context.Context, p *model.Platform) error {
	if err := s.primary.CreatePlatform(ctx, p); err != nil {
		return err
	}
	s.rdb.Set(ctx, platformKey, record.MarshalPlatform(p), s.ttl)
	return nil
}

func (s *CachedStore) SetPlatformActive(ctx context.Context, active bool) error {
	if err := s.primary.SetPlatformActive(ctx, active); err != nil {
		return err
	}
	// Invalidate; next read re-populates from the primary.
	s.rdb.Del(ctx, platformKey)
	return nil
}

func (s *CachedStore) CreateBet(ctx context.Context, b *model.Bet) error {
	if err := s.primary.CreateBet(ctx, b); err != nil {
		return err
	}
	s.rdb.Set(ctx, betKey(b.ID), record.MarshalBet(b), s.ttl)
	// Counters moved with the insert.
	s.rdb.Del(ctx, platformKey)
	return nil
}

func (s *CachedStore) SetBetStartPrice(ctx context.Context, id string, price uint64) error {
	if err := s.primary.SetBetStartPrice(ctx, id, price); err != nil {
		return err
	}
	s.rdb.Del(ctx, betKey(id))
	return nil
}

func (s *CachedStore) SettleBet(ctx context.Context, id string, endPrice uint64, winner bool, payout uint64) error {
	if err := s.primary.SettleBet(ctx, id, endPrice, winner, payout); err != nil {
		return err
	}
	s.rdb.Del(ctx, betKey(id))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetPlatform(ctx context.Context) (*model.Platform, error) {
	data, err := s.rdb.Get(ctx, platformKey).Bytes()
	if err == nil {
		if p, err := record.UnmarshalPlatform(data); err == nil {
			return p, nil
		}
	}

	p, err := s.primary.GetPlatform(ctx)
	if err != nil {
		return nil, err
	}

	s.rdb.Set(ctx, platformKey, record.MarshalPlatform(p), s.ttl)
	return p, nil
}

func (s *CachedStore) GetBet(ctx context.Context, id string) (*model.Bet, error) {
	data, err := s.rdb.Get(ctx, betKey(id)).Bytes()
	if err == nil {
		if b, err := record.UnmarshalBet(id, data); err == nil {
			return b, nil
		}
	}

	b, err := s.primary.GetBet(ctx, id)
	if err != nil {
		return nil, err
	}

	s.rdb.Set(ctx, betKey(id), record.MarshalBet(b), s.ttl)
	return b, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListBets(ctx context.Context) ([]model.Bet, error) {
	return s.primary.ListBets(ctx)
}

func (s *CachedStore) ListUnsettledBets(ctx context.Context) ([]model.Bet, error) {
	return s.primary.ListUnsettledBets(ctx)
}

const platformKey = "platform"

func betKey(id string) string { return "bet:" + id }
