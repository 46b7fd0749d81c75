package source

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/timmy/cryptoetl/internal/drift"
)

// Quote is one asset's market data mapped out of a source's raw item.
type Quote struct {
	Symbol           string
	Name             string
	PriceUSD         decimal.Decimal
	MarketCapUSD     decimal.Decimal
	Volume24hUSD     decimal.Decimal
	PercentChange24h decimal.Decimal
	Rank             int
}

// Source defines the per-source half of a pipeline: how to fetch and how to read one item.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier, also used as the pipeline name.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	GetDisplayName() string

	// Fetch performs exactly one extraction attempt.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	// Returns:
	//   - []map[string]any: raw items in source order.
	//   - error: classified with fetch.IsRetryable by the caller.
	Fetch(ctx context.Context) ([]map[string]any, error)

	// ExpectedSchema returns the declared field layout of one raw item.
	ExpectedSchema() drift.Schema

	// Map validates one raw item and converts it to a Quote.
	// Parameters:
	//   - raw: one item returned by Fetch.
	// Returns:
	//   - *Quote: mapped quote.
	//   - error: wraps ErrInvalid when the item fails validation.
	Map(raw map[string]any) (*Quote, error)

	// RequestsPerMinute returns the upstream request cap; zero means uncapped.
	RequestsPerMinute() int
}
