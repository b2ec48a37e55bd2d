package binance

import "fmt"

// APIError is the error envelope returned by Binance REST endpoints on failure.
type APIError struct {
	Code int    `json:"code"` // Negative Binance error code, e.g. -1121 (invalid symbol)
	Msg  string `json:"msg"`  // Human-readable message
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance error %d: %s", e.Code, e.Msg)
}

// ExchangeInfoResponse is the subset of /fapi/v1/exchangeInfo used here.
type ExchangeInfoResponse struct {
	Timezone   string       `json:"timezone"`
	ServerTime int64        `json:"serverTime"`
	Symbols    []SymbolInfo `json:"symbols"`
}

type SymbolInfo struct {
	Symbol       string `json:"symbol"`       // e.g., "BTCUSDT"
	Pair         string `json:"pair"`         // e.g., "BTCUSDT"
	ContractType string `json:"contractType"` // e.g., "PERPETUAL"
	Status       string `json:"status"`       // "TRADING" when the market is open
	BaseAsset    string `json:"baseAsset"`    // e.g., "BTC"
	QuoteAsset   string `json:"quoteAsset"`   // e.g., "USDT"
}
