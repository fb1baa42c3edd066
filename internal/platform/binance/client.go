// Package binance is the REST client for Binance spot market data. It backs
// the feed manager's snapshot fallback tier and the server's market-data
// proxy endpoints; it never holds credentials since every endpoint it uses
// is public.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/marketdash/internal/domain"
)

// Client is the REST client for the Binance public market-data API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Binance client.
//
// baseURL is the API root, e.g. "https://api.binance.com". timeout bounds
// each request; zero means 10 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ticker24h returns the 24-hour rolling ticker for one symbol.
func (c *Client) Ticker24h(ctx context.Context, symbol string) (domain.TickerSnapshot, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doGet(ctx, "/api/v3/ticker/24hr?"+params.Encode())
	if err != nil {
		return domain.TickerSnapshot{}, fmt.Errorf("binance: get ticker %s: %w", symbol, err)
	}

	var ticker APITicker24h
	if err := json.Unmarshal(body, &ticker); err != nil {
		return domain.TickerSnapshot{}, fmt.Errorf("binance: decode ticker: %w", err)
	}
	snap, err := ticker.ToSnapshot()
	if err != nil {
		return domain.TickerSnapshot{}, fmt.Errorf("binance: ticker %s: %w", symbol, err)
	}
	snap.Symbol = symbol
	return snap, nil
}

// Depth returns the top of the order book for one symbol. limit follows the
// Binance depth limits; zero means 20 levels per side.
func (c *Client) Depth(ctx context.Context, symbol string, limit int) (domain.OrderBookSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doGet(ctx, "/api/v3/depth?"+params.Encode())
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: get depth %s: %w", symbol, err)
	}

	var depth APIDepth
	if err := json.Unmarshal(body, &depth); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: decode depth: %w", err)
	}
	book, err := depth.ToOrderBook(symbol)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: depth %s: %w", symbol, err)
	}
	return book, nil
}

// Klines returns up to limit historical candles for the symbol and interval,
// oldest first. Zero limit means 100 candles.
func (c *Client) Klines(ctx context.Context, symbol string, interval domain.TimeInterval, limit int) ([]domain.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", string(interval))
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doGet(ctx, "/api/v3/klines?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("binance: get klines %s %s: %w", symbol, interval, err)
	}

	var rows []apiKline
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("binance: decode klines: %w", err)
	}
	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := row.toCandle()
		if err != nil {
			return nil, fmt.Errorf("binance: klines %s: %w", symbol, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// doGet sends an unauthenticated GET request to the Binance API.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
