package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptySymbol  = errors.New("empty symbol")
	ErrInvalidValue = errors.New("invalid numeric value")
)

// Tick is one observed trade. It is a value type and never mutated after creation.
type Tick struct {
	Timestamp time.Time `json:"timestamp"` // Trade time (UTC)
	Symbol    string    `json:"symbol"`    // Instrument, e.g. "BTCUSDT"
	Price     float64   `json:"price"`     // Executed price
	Quantity  float64   `json:"quantity"`  // Executed quantity
}

// ParseTick builds a Tick from raw feed fields.
// Price and quantity may arrive as strings (Binance sends "p" and "q" as strings) or numbers.
func ParseTick(symbol string, tsMillis int64, price, qty any) (Tick, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Tick{}, ErrEmptySymbol
	}

	p, err := toFloat(price)
	if err != nil {
		return Tick{}, fmt.Errorf("price: %w", err)
	}
	q, err := toFloat(qty)
	if err != nil {
		return Tick{}, fmt.Errorf("quantity: %w", err)
	}

	return Tick{
		Timestamp: time.UnixMilli(tsMillis).UTC(),
		Symbol:    symbol,
		Price:     p,
		Quantity:  q,
	}, nil
}

// toFloat coerces supported scalar types to a finite float64.
func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, x.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, x)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: non-finite %v", ErrInvalidValue, f)
	}
	return f, nil
}
