package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord is one source item exactly as extracted.
// Fields include the source name, the opaque payload and an optional source-side identifier.
type RawRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Source     string    `gorm:"type:text;not null;index:idx_raw_records_source" json:"source"`
	Payload    JSONMap   `gorm:"type:text" json:"payload"`
	SourceID   string    `gorm:"type:text" json:"source_id,omitempty"`
	IngestedAt time.Time `gorm:"not null;index:idx_raw_records_ingested_at" json:"ingested_at"`
}

// TableName returns the database table name for RawRecord.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (RawRecord) TableName() string {
	return "raw_records"
}

// NormalizedRecord is one asset quote from one source in the unified schema.
// (Source, Symbol, LastUpdated) is unique; inserting an existing key is a no-op.
type NormalizedRecord struct {
	ID               uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Source           string          `gorm:"type:text;not null;uniqueIndex:idx_crypto_data_key,priority:1" json:"source"`
	Symbol           string          `gorm:"type:text;not null;uniqueIndex:idx_crypto_data_key,priority:2;index:idx_crypto_data_symbol" json:"symbol"`
	Name             string          `gorm:"type:text" json:"name"`
	PriceUSD         decimal.Decimal `gorm:"type:numeric" json:"price_usd"`
	MarketCapUSD     decimal.Decimal `gorm:"type:numeric" json:"market_cap_usd"`
	Volume24hUSD     decimal.Decimal `gorm:"column:volume_24h_usd;type:numeric" json:"volume_24h_usd"`
	PercentChange24h decimal.Decimal `gorm:"column:percent_change_24h;type:numeric" json:"percent_change_24h"`
	Rank             int             `json:"rank"`
	LastUpdated      time.Time       `gorm:"not null;uniqueIndex:idx_crypto_data_key,priority:3" json:"last_updated"`
	IngestedAt       time.Time       `gorm:"autoCreateTime" json:"ingested_at"`
	RawPayload       JSONMap         `gorm:"type:text" json:"raw_payload,omitempty"`
}

// TableName returns the database table name for NormalizedRecord.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (NormalizedRecord) TableName() string {
	return "crypto_data"
}
