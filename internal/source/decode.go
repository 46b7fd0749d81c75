package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"

	"github.com/timmy/cryptoetl/internal/fetch"
)

// ErrInvalid marks a raw item that failed decoding or validation.
var ErrInvalid = errors.New("invalid record")

var (
	validate    = validator.New()
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// Decode reads raw into out using json tags with weak typing, then validates out.
// Parameters:
//   - raw: one raw item.
//   - out: pointer to the source's record struct.
//
// Returns:
//   - error: wraps ErrInvalid on any failure.
func Decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       decimalHook,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func decimalHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	}

	rv := reflect.ValueOf(data)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromString(strconv.FormatUint(rv.Uint(), 10))
	default:
		// objects, arrays and bools would otherwise decode into a zero Decimal
		return nil, fmt.Errorf("cannot convert %T to decimal", data)
	}
}

// Items converts a decoded JSON array body into raw items.
// Parameters:
//   - body: decoded response body.
//
// Returns:
//   - []map[string]any: one map per array element.
//   - error: permanent when the body is not an array of objects.
func Items(body any) ([]map[string]any, error) {
	if body == nil {
		return nil, nil
	}
	list, ok := body.([]any)
	if !ok {
		return nil, fetch.Permanent(fmt.Errorf("expected JSON array, got %T", body))
	}
	items := make([]map[string]any, 0, len(list))
	for i, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, fetch.Permanent(fmt.Errorf("item %d: expected JSON object, got %T", i, el))
		}
		items = append(items, obj)
	}
	return items, nil
}
