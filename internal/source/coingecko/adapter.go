package coingecko

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/timmy/cryptoetl/internal/drift"
	"github.com/timmy/cryptoetl/internal/fetch"
	"github.com/timmy/cryptoetl/internal/source"
)

const (
	SourceID       = "coingecko"
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	DefaultPerPage = 100
)

// Doer performs one HTTP attempt.
type Doer interface {
	Do(ctx context.Context, req fetch.Request) (*fetch.Response, error)
}

type Config struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	PerPage           int
}

// Adapter implements source.Source for the CoinGecko markets endpoint.
type Adapter struct {
	client Doer
	cfg    Config
}

func NewAdapter(client Doer, cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Adapter{client: client, cfg: cfg}
}

func (a *Adapter) GetSourceID() string { return SourceID }

func (a *Adapter) GetDisplayName() string { return "CoinGecko" }

func (a *Adapter) RequestsPerMinute() int { return a.cfg.RequestsPerMinute }

// Fetch requests the first page of USD markets ordered by market cap.
func (a *Adapter) Fetch(ctx context.Context) ([]map[string]any, error) {
	req := fetch.Request{
		URL: a.cfg.BaseURL + "/coins/markets",
		Query: map[string]string{
			"vs_currency": "usd",
			"order":       "market_cap_desc",
			"per_page":    strconv.Itoa(a.cfg.PerPage),
			"page":        "1",
			"sparkline":   "false",
			"locale":      "en",
		},
	}
	if a.cfg.APIKey != "" {
		req.Headers = map[string]string{"x-cg-demo-api-key": a.cfg.APIKey}
	}

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return source.Items(resp.Body)
}

func (a *Adapter) ExpectedSchema() drift.Schema {
	return drift.Schema{
		"id":                          drift.String,
		"symbol":                      drift.String,
		"name":                        drift.String,
		"current_price":               drift.Numeric,
		"market_cap":                  drift.Numeric,
		"total_volume":                drift.Numeric,
		"price_change_percentage_24h": drift.Numeric,
		"market_cap_rank":             drift.Integer,
	}
}

// null numerics decode to zero
type market struct {
	ID                       string          `json:"id" validate:"required"`
	Symbol                   string          `json:"symbol" validate:"required"`
	Name                     string          `json:"name" validate:"required"`
	CurrentPrice             decimal.Decimal `json:"current_price"`
	MarketCap                decimal.Decimal `json:"market_cap"`
	TotalVolume              decimal.Decimal `json:"total_volume"`
	PriceChangePercentage24h decimal.Decimal `json:"price_change_percentage_24h"`
	MarketCapRank            int             `json:"market_cap_rank"`
}

func (a *Adapter) Map(raw map[string]any) (*source.Quote, error) {
	var m market
	if err := source.Decode(raw, &m); err != nil {
		return nil, fmt.Errorf("market %v: %w", raw["id"], err)
	}

	return &source.Quote{
		Symbol:           m.Symbol,
		Name:             m.Name,
		PriceUSD:         m.CurrentPrice,
		MarketCapUSD:     m.MarketCap,
		Volume24hUSD:     m.TotalVolume,
		PercentChange24h: m.PriceChangePercentage24h,
		Rank:             m.MarketCapRank,
	}, nil
}
