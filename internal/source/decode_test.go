package source

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priced struct {
	Symbol string          `json:"symbol" validate:"required"`
	Price  decimal.Decimal `json:"price"`
	Rank   int             `json:"rank"`
}

func TestDecodeNumericInputs(t *testing.T) {
	tests := []struct {
		name  string
		price any
		want  string
	}{
		{name: "float", price: 64000.5, want: "64000.5"},
		{name: "string", price: " 3100.25 ", want: "3100.25"},
		{name: "empty string", price: "", want: "0"},
		{name: "int", price: 42, want: "42"},
		{name: "uint", price: uint32(7), want: "7"},
		{name: "json number", price: json.Number("0.55"), want: "0.55"},
		{name: "null", price: nil, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out priced
			require.NoError(t, Decode(map[string]any{"symbol": "BTC", "price": tt.price}, &out))
			assert.True(t, out.Price.Equal(decimal.RequireFromString(tt.want)), "got %s", out.Price)
		})
	}
}

func TestDecodeRejectsNonNumeric(t *testing.T) {
	tests := []struct {
		name  string
		price any
	}{
		{name: "object", price: map[string]any{"usd": 5}},
		{name: "array", price: []any{1, 2}},
		{name: "bool", price: true},
		{name: "garbage string", price: "n/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out priced
			err := Decode(map[string]any{"symbol": "BTC", "price": tt.price}, &out)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}

func TestDecodeValidates(t *testing.T) {
	var out priced
	err := Decode(map[string]any{"price": 1.5, "rank": "3"}, &out)
	assert.True(t, errors.Is(err, ErrInvalid))
}
