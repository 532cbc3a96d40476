// Package event defines the structured notifications emitted by the
// settlement engine on every state transition. The engine only yields event
// values; delivery (logging, Kafka, WebSocket fan-out) is a sink's concern.
package event

import (
	"context"
	"log/slog"
	"time"
)

// Kind identifies a lifecycle transition.
type Kind string

const (
	KindPlatformInitialized   Kind = "platform_initialized"
	KindPlatformStatusChanged Kind = "platform_status_changed"
	KindBetCreated            Kind = "bet_created"
	KindBetPriceUpdated       Kind = "bet_price_updated"
	KindBetSettled            Kind = "bet_settled"
)

// Event is a flat lifecycle notification. Only the fields relevant to the
// kind are populated; the payloads mirror the engine's emitted values.
type Event struct {
	Kind        Kind   `json:"kind"`
	BetID       string `json:"bet_id,omitempty"`
	Player      string `json:"player,omitempty"`
	Admin       string `json:"admin,omitempty"`
	HouseWallet string `json:"house_wallet,omitempty"`
	HouseFeeBps uint16 `json:"house_fee_bps,omitempty"`
	MinBet      uint64 `json:"min_bet,omitempty"`
	MaxBet      uint64 `json:"max_bet,omitempty"`
	Amount      uint64 `json:"amount,omitempty"`
	Prediction  bool   `json:"prediction,omitempty"`
	Duration    int64  `json:"duration,omitempty"`
	TokenMint   string `json:"token_mint,omitempty"`
	StartPrice  uint64 `json:"start_price,omitempty"`
	EndPrice    uint64 `json:"end_price,omitempty"`
	IsWinner    bool   `json:"is_winner,omitempty"`
	Payout      uint64 `json:"payout,omitempty"`
	IsActive    bool   `json:"is_active,omitempty"`
	TsUnixMs    int64  `json:"ts_unix_ms,omitempty"`
}

// Sink consumes emitted events. Implementations must not block the caller
// for long; delivery failures are the sink's problem, not the engine's.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// Multi fans an event out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		s.Emit(ctx, e)
	}
}

// LogSink writes events to a structured logger.
type LogSink struct {
	Log *slog.Logger
}

func (s LogSink) Emit(_ context.Context, e Event) {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("event emitted",
		"kind", string(e.Kind),
		"bet_id", e.BetID,
		"player", e.Player,
		"amount", e.Amount,
		"payout", e.Payout,
	)
}

// Stamp sets the emission timestamp if the caller did not.
func Stamp(e Event) Event {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	return e
}

// Recorder collects events in memory for tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(_ context.Context, e Event) {
	r.Events = append(r.Events, e)
}
