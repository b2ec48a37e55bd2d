package feed

import (
	"context"

	"pairwatch/internal/engine"
)

// Feed pushes raw trade events into a sink until ctx is done.
type Feed interface {
	Run(ctx context.Context, sink engine.TickSink) error
}

// TradeMessage is a Binance futures trade stream payload, e.g.
//
//	{"e":"trade","E":1700000000123,"T":1700000000120,"s":"BTCUSDT","t":1,"p":"37000.10","q":"0.002","X":"MARKET","m":true}
//
// Price and Quantity are decoded with UseNumber, so they hold a string or a json.Number.
type TradeMessage struct {
	EventType string `json:"e"` // "trade"
	EventTime int64  `json:"E"` // Event time (ms)
	TradeTime *int64 `json:"T"` // Trade time (ms); nil when absent
	Symbol    string `json:"s"`
	TradeID   int64  `json:"t"`
	Price     any    `json:"p"`
	Quantity  any    `json:"q"`
}
