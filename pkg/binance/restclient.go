package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const statusTrading = "TRADING"

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetTradingSymbols returns the futures symbols currently open for trading.
func (c *RESTClient) GetTradingSymbols(ctx context.Context) (map[string]SymbolInfo, error) {
	var info ExchangeInfoResponse
	if err := c.get(ctx, "/fapi/v1/exchangeInfo", &info); err != nil {
		return nil, err
	}

	symbols := make(map[string]SymbolInfo, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status == statusTrading {
			symbols[s.Symbol] = s
		}
	}
	return symbols, nil
}

// ValidateSymbols returns an error naming every symbol that is not trading.
func (c *RESTClient) ValidateSymbols(ctx context.Context, symbols []string) error {
	trading, err := c.GetTradingSymbols(ctx)
	if err != nil {
		return err
	}

	var unknown []string
	for _, s := range symbols {
		if _, ok := trading[s]; !ok {
			unknown = append(unknown, s)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("symbols not trading on binance futures: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func (c *RESTClient) get(ctx context.Context, path string, out any) error {
	endpoint := c.baseURL + path

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var apiErr APIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
			return &apiErr
		}
		return fmt.Errorf("binance error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
