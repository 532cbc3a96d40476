// Package oracle supplies the price observations the settlement engine
// consumes: a feed client over a Jupiter-style JSON price API, and the
// authority worker that stamps start prices and settles expired bets.
//
// The engine treats feed output as trusted input; this package only fetches
// and scales it.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moonflip/settlement-engine/internal/metrics"
)

// PriceScale converts USD prices to the engine's fixed-point unit:
// one price unit is a micro-dollar.
const PriceScale = 1_000_000

// Feed fetches token prices from a price API shaped like Jupiter's
// /price/v3: GET {base}?ids={mint} → {"{mint}": {"usdPrice": 1.23}}.
type Feed struct {
	baseURL string
	client  *http.Client
}

// NewFeed creates a feed client for the given base URL.
func NewFeed(baseURL string) *Feed {
	return &Feed{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type feedEntry struct {
	UsdPrice decimal.Decimal `json:"usdPrice"`
}

// Price returns the current price of the given token mint in micro-dollars,
// truncated toward zero. Decimal arithmetic end to end; the float never
// touches the money path.
func (f *Feed) Price(ctx context.Context, mint string) (uint64, error) {
	start := time.Now()
	defer func() {
		metrics.OracleFeedLatency.Observe(time.Since(start).Seconds())
	}()

	u := f.baseURL + "?ids=" + url.QueryEscape(mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("oracle: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("oracle: fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("oracle: feed returned status %d", resp.StatusCode)
	}

	var payload map[string]feedEntry
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("oracle: decode feed response: %w", err)
	}

	entry, ok := payload[mint]
	if !ok {
		return 0, fmt.Errorf("oracle: feed has no price for mint %s", mint)
	}
	if entry.UsdPrice.IsNegative() {
		return 0, fmt.Errorf("oracle: negative price %s for mint %s", entry.UsdPrice, mint)
	}

	scaled := entry.UsdPrice.Mul(decimal.NewFromInt(PriceScale)).Truncate(0)
	big := scaled.BigInt()
	if !big.IsUint64() {
		return 0, fmt.Errorf("oracle: scaled price %s overflows uint64", scaled)
	}
	return big.Uint64(), nil
}
