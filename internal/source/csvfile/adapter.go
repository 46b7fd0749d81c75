package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/timmy/cryptoetl/internal/drift"
	"github.com/timmy/cryptoetl/internal/fetch"
	"github.com/timmy/cryptoetl/internal/source"
)

const SourceID = "csv"

// Columns is the header of the sample file, in order.
var Columns = []string{"symbol", "name", "price", "market_cap", "volume_24h", "percent_change_24h", "rank"}

var sampleRows = [][]string{
	{"BTC", "Bitcoin", "45000.50", "850000000000", "25000000000", "2.5", "1"},
	{"ETH", "Ethereum", "3000.25", "360000000000", "15000000000", "3.2", "2"},
	{"BNB", "Binance Coin", "350.75", "55000000000", "1200000000", "1.8", "3"},
	{"SOL", "Solana", "110.30", "45000000000", "2500000000", "-1.2", "4"},
	{"ADA", "Cardano", "0.55", "19000000000", "450000000", "0.8", "5"},
}

type Config struct {
	Path         string
	CreateSample bool
}

// Adapter implements source.Source for a local CSV file of quotes.
type Adapter struct {
	cfg Config
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

func (a *Adapter) GetSourceID() string { return SourceID }

func (a *Adapter) GetDisplayName() string { return fmt.Sprintf("CSV (%s)", filepath.Base(a.cfg.Path)) }

func (a *Adapter) RequestsPerMinute() int { return 0 }

// Fetch reads every row of the file. A missing file is replaced by the sample
// when CreateSample is set; otherwise it is a permanent failure.
func (a *Adapter) Fetch(ctx context.Context) ([]map[string]any, error) {
	f, err := os.Open(a.cfg.Path)
	if errors.Is(err, fs.ErrNotExist) && a.cfg.CreateSample {
		if err := WriteSample(a.cfg.Path); err != nil {
			return nil, fmt.Errorf("create sample csv: %w", err)
		}
		f, err = os.Open(a.cfg.Path)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fetch.Permanent(err)
		}
		return nil, err
	}
	defer f.Close()

	return readRows(ctx, f)
}

func readRows(ctx context.Context, r io.Reader) ([]map[string]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fetch.Permanent(fmt.Errorf("read header: %w", err))
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]any
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fetch.Permanent(fmt.Errorf("read row %d: %w", len(rows)+1, err))
		}

		row := make(map[string]any, len(header))
		for i, value := range record {
			if i >= len(header) {
				break
			}
			row[header[i]] = strings.TrimSpace(value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteSample writes the five-row sample file, creating parent directories.
func WriteSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(sampleRows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CSV values arrive as strings, so numeric columns also accept string.
func (a *Adapter) ExpectedSchema() drift.Schema {
	numericOrString := drift.TypeSet{drift.KindInteger, drift.KindNumber, drift.KindString}
	return drift.Schema{
		"symbol":             drift.String,
		"name":               drift.String,
		"price":              numericOrString,
		"market_cap":         numericOrString,
		"volume_24h":         numericOrString,
		"percent_change_24h": numericOrString,
		"rank":               {drift.KindInteger, drift.KindString},
	}
}

type row struct {
	Symbol           string          `json:"symbol" validate:"required"`
	Name             string          `json:"name" validate:"required"`
	Price            decimal.Decimal `json:"price"`
	MarketCap        decimal.Decimal `json:"market_cap"`
	Volume24h        decimal.Decimal `json:"volume_24h"`
	PercentChange24h decimal.Decimal `json:"percent_change_24h"`
	Rank             int             `json:"rank"`
}

func (a *Adapter) Map(raw map[string]any) (*source.Quote, error) {
	var r row
	if err := source.Decode(raw, &r); err != nil {
		return nil, fmt.Errorf("row %v: %w", raw["symbol"], err)
	}
	return &source.Quote{
		Symbol:           r.Symbol,
		Name:             r.Name,
		PriceUSD:         r.Price,
		MarketCapUSD:     r.MarketCap,
		Volume24hUSD:     r.Volume24h,
		PercentChange24h: r.PercentChange24h,
		Rank:             r.Rank,
	}, nil
}
