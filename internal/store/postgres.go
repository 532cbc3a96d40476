package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moonflip/settlement-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Unsigned 64-bit amounts are stored as NUMERIC and round-tripped as text
// to avoid BIGINT overflow on the upper half of the uint64 range.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreatePlatform(ctx context.Context, p *model.Platform) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO platform (id, admin, house_wallet, house_fee_bps, min_bet, max_bet, total_bets, total_volume, is_active)
		 VALUES (1, $1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)
		 ON CONFLICT (id) DO NOTHING`,
		p.Admin[:], p.HouseWallet[:], int32(p.HouseFeeBps),
		u64(p.MinBet), u64(p.MaxBet), u64(p.TotalBets), u64(p.TotalVolume),
		p.IsActive,
	)
	if err != nil {
		return fmt.Errorf("create platform: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create platform: %w", ErrAlreadyExists)
	}
	return nil
}

func (s *PostgresStore) GetPlatform(ctx context.Context) (*model.Platform, error) {
	var p model.Platform
	var admin, houseWallet []byte
	var feeBps int32
	var minBet, maxBet, totalBets, totalVolume string

	err := s.pool.QueryRow(ctx,
		`SELECT admin, house_wallet, house_fee_bps,
		        min_bet::TEXT, max_bet::TEXT, total_bets::TEXT, total_volume::TEXT,
		        is_active
		 FROM platform WHERE id = 1`).
		Scan(&admin, &houseWallet, &feeBps,
			&minBet, &maxBet, &totalBets, &totalVolume,
			&p.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get platform: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get platform: %w", err)
	}

	copy(p.Admin[:], admin)
	copy(p.HouseWallet[:], houseWallet)
	p.HouseFeeBps = uint16(feeBps)
	p.MinBet, _ = strconv.ParseUint(minBet, 10, 64)
	p.MaxBet, _ = strconv.ParseUint(maxBet, 10, 64)
	p.TotalBets, _ = strconv.ParseUint(totalBets, 10, 64)
	p.TotalVolume, _ = strconv.ParseUint(totalVolume, 10, 64)

	return &p, nil
}

func (s *PostgresStore) SetPlatformActive(ctx context.Context, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE platform SET is_active = $1 WHERE id = 1`, active)
	if err != nil {
		return fmt.Errorf("set platform active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set platform active: %w", ErrNotFound)
	}
	return nil
}

// CreateBet inserts the bet row and bumps the platform counters in one
// transaction, so a failed insert never moves the counters.
func (s *PostgresStore) CreateBet(ctx context.Context, b *model.Bet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("create bet: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO bets (id, player, amount, prediction, token_mint, start_time, end_time,
		                   start_price, end_price, is_settled, is_winner, payout)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7, $8::NUMERIC, $9::NUMERIC, $10, $11, $12::NUMERIC)`,
		b.ID, b.Player[:], u64(b.Amount), b.Prediction, b.TokenMint[:],
		b.StartTime, b.EndTime,
		u64(b.StartPrice), u64(b.EndPrice),
		b.Settled(), b.IsWinner, u64(b.Payout),
	)
	if err != nil {
		return fmt.Errorf("create bet %s: %w", b.ID, err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE platform
		 SET total_bets = total_bets + 1, total_volume = total_volume + $1::NUMERIC
		 WHERE id = 1`,
		u64(b.Amount),
	)
	if err != nil {
		return fmt.Errorf("create bet %s: update totals: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create bet %s: %w", b.ID, ErrNotFound)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetBet(ctx context.Context, id string) (*model.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, player, amount::TEXT, prediction, token_mint, start_time, end_time,
		        start_price::TEXT, end_price::TEXT, is_settled, is_winner, payout::TEXT
		 FROM bets WHERE id = $1`, id)

	b, err := scanBet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get bet %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get bet %s: %w", id, err)
	}
	return b, nil
}

func (s *PostgresStore) ListBets(ctx context.Context) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, player, amount::TEXT, prediction, token_mint, start_time, end_time,
		        start_price::TEXT, end_price::TEXT, is_settled, is_winner, payout::TEXT
		 FROM bets ORDER BY start_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBets(rows)
}

func (s *PostgresStore) ListUnsettledBets(ctx context.Context) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, player, amount::TEXT, prediction, token_mint, start_time, end_time,
		        start_price::TEXT, end_price::TEXT, is_settled, is_winner, payout::TEXT
		 FROM bets WHERE NOT is_settled ORDER BY start_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBets(rows)
}

// SetBetStartPrice writes the start price only if none is recorded yet.
// The condition rides on the UPDATE itself so a caller holding a stale
// copy of the bet cannot overwrite a recorded price.
func (s *PostgresStore) SetBetStartPrice(ctx context.Context, id string, price uint64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bets SET start_price = $2::NUMERIC
		 WHERE id = $1 AND start_price = 0 AND NOT is_settled`,
		id, u64(price))
	if err != nil {
		return fmt.Errorf("set start price %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set start price %s: %w", id, s.betUpdateConflict(ctx, id, ErrPriceAlreadySet))
	}
	return nil
}

// SettleBet finalizes the bet only if it is still open. The one-way
// transition is enforced by the WHERE clause, not by the caller's view
// of the record.
func (s *PostgresStore) SettleBet(ctx context.Context, id string, endPrice uint64, winner bool, payout uint64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bets
		 SET end_price = $2::NUMERIC, is_settled = TRUE, is_winner = $3, payout = $4::NUMERIC
		 WHERE id = $1 AND NOT is_settled`,
		id, u64(endPrice), winner, u64(payout))
	if err != nil {
		return fmt.Errorf("settle bet %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("settle bet %s: %w", id, s.betUpdateConflict(ctx, id, ErrAlreadySettled))
	}
	return nil
}

// betUpdateConflict disambiguates a zero-row conditional update: the row
// is either missing (ErrNotFound) or its guard column blocked the write.
func (s *PostgresStore) betUpdateConflict(ctx context.Context, id string, conflict error) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bets WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return conflict
}

// u64 formats an unsigned amount for a NUMERIC parameter.
func u64(v uint64) string { return strconv.FormatUint(v, 10) }

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanBet(row scannable) (*model.Bet, error) {
	var b model.Bet
	var player, mint []byte
	var amount, startPrice, endPrice, payout string
	var settled bool

	if err := row.Scan(&b.ID, &player, &amount, &b.Prediction, &mint,
		&b.StartTime, &b.EndTime,
		&startPrice, &endPrice, &settled, &b.IsWinner, &payout); err != nil {
		return nil, err
	}

	copy(b.Player[:], player)
	copy(b.TokenMint[:], mint)
	b.Amount, _ = strconv.ParseUint(amount, 10, 64)
	b.StartPrice, _ = strconv.ParseUint(startPrice, 10, 64)
	b.EndPrice, _ = strconv.ParseUint(endPrice, 10, 64)
	b.Payout, _ = strconv.ParseUint(payout, 10, 64)
	b.Status = model.StatusOpen
	if settled {
		b.Status = model.StatusSettled
	}

	return &b, nil
}

func scanBets(rows pgx.Rows) ([]model.Bet, error) {
	var bets []model.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}
