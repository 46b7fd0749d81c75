package coinpaprika

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/timmy/cryptoetl/internal/drift"
	"github.com/timmy/cryptoetl/internal/fetch"
	"github.com/timmy/cryptoetl/internal/source"
)

const (
	SourceID       = "coinpaprika"
	DefaultBaseURL = "https://api.coinpaprika.com/v1"
	DefaultLimit   = 100
)

// Doer performs one HTTP attempt.
type Doer interface {
	Do(ctx context.Context, req fetch.Request) (*fetch.Response, error)
}

// Config holds CoinPaprika settings.
type Config struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	Limit             int
}

// Adapter implements source.Source for the CoinPaprika tickers endpoint.
type Adapter struct {
	client Doer
	cfg    Config
}

// NewAdapter creates a new CoinPaprika adapter.
// Parameters:
//   - client: HTTP client used for each attempt.
//   - cfg: endpoint, key, rate cap and result limit.
//
// Returns:
//   - *Adapter: initialized adapter.
func NewAdapter(client Doer, cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Adapter{client: client, cfg: cfg}
}

func (a *Adapter) GetSourceID() string { return SourceID }

func (a *Adapter) GetDisplayName() string { return "CoinPaprika" }

func (a *Adapter) RequestsPerMinute() int { return a.cfg.RequestsPerMinute }

// Fetch requests all tickers and keeps the first Limit of them.
func (a *Adapter) Fetch(ctx context.Context) ([]map[string]any, error) {
	req := fetch.Request{URL: a.cfg.BaseURL + "/tickers"}
	if a.cfg.APIKey != "" {
		req.Headers = map[string]string{"Authorization": "Bearer " + a.cfg.APIKey}
	}

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	items, err := source.Items(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(items) > a.cfg.Limit {
		items = items[:a.cfg.Limit]
	}
	return items, nil
}

func (a *Adapter) ExpectedSchema() drift.Schema {
	return drift.Schema{
		"id":     drift.String,
		"name":   drift.String,
		"symbol": drift.String,
		"rank":   drift.Integer,
		"quotes": drift.Object,
	}
}

type ticker struct {
	ID     string           `json:"id" validate:"required"`
	Name   string           `json:"name" validate:"required"`
	Symbol string           `json:"symbol" validate:"required"`
	Rank   int              `json:"rank"`
	Quotes map[string]quote `json:"quotes" validate:"required"`
}

type quote struct {
	Price            decimal.Decimal `json:"price"`
	MarketCap        decimal.Decimal `json:"market_cap"`
	Volume24h        decimal.Decimal `json:"volume_24h"`
	PercentChange24h decimal.Decimal `json:"percent_change_24h"`
}

// Map reads the USD quote of one ticker; a missing USD quote maps to zero amounts.
func (a *Adapter) Map(raw map[string]any) (*source.Quote, error) {
	var t ticker
	if err := source.Decode(raw, &t); err != nil {
		return nil, fmt.Errorf("ticker %v: %w", raw["id"], err)
	}

	usd := t.Quotes["USD"]
	return &source.Quote{
		Symbol:           t.Symbol,
		Name:             t.Name,
		PriceUSD:         usd.Price,
		MarketCapUSD:     usd.MarketCap,
		Volume24hUSD:     usd.Volume24h,
		PercentChange24h: usd.PercentChange24h,
		Rank:             t.Rank,
	}, nil
}
