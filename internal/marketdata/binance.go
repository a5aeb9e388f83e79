// Package marketdata implements the Binance-shaped HTTP market-data
// provider: top-volume symbol discovery and paginated OHLCV kline
// fetch, with retry/backoff on rate limiting and transport errors.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// intervalMillis maps a kline interval string to its duration in
// milliseconds, used to advance the pagination cursor.
var intervalMillis = map[string]int64{
	"1m":  60_000,
	"3m":  180_000,
	"5m":  300_000,
	"15m": 900_000,
	"30m": 1_800_000,
	"1h":  3_600_000,
	"2h":  7_200_000,
	"4h":  14_400_000,
	"1d":  86_400_000,
}

const (
	defaultTimeout       = 30 * time.Second
	defaultMaxRetries    = 3
	defaultRetryBackoff  = 500 * time.Millisecond
	maxPaginationRounds  = 5_000
	defaultKlineLimit    = 1000
	leveragedTokenMarker = "UP|DOWN|BULL|BEAR"
)

// Client is a Binance-shaped REST client over net/http.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	maxRetries   int
	retryBackoff time.Duration
}

// ClientConfig configures a Client. Zero values fall back to the
// defaults used by the original Python BinanceClient.
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	HTTPClient   *http.Client
}

// NewClient creates a market-data client against cfg.BaseURL.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   httpClient,
		maxRetries:   maxRetries,
		retryBackoff: backoff,
	}
}

// get issues a GET request against path with query params, retrying on
// HTTP 429 and transport errors with linear backoff, mirroring
// BinanceClient._get.
func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("marketdata: build request for %s: %w", path, err)
		}
		req.Header.Set("User-Agent", "numerion/0.1")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt >= c.maxRetries {
				break
			}
			if !sleepBackoff(ctx, c.retryBackoff*time.Duration(attempt+1)) {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries {
			resp.Body.Close()
			if !sleepBackoff(ctx, c.retryBackoff*time.Duration(attempt+1)) {
				return nil, ctx.Err()
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			if attempt >= c.maxRetries {
				break
			}
			if !sleepBackoff(ctx, c.retryBackoff*time.Duration(attempt+1)) {
				return nil, ctx.Err()
			}
			continue
		}
		if readErr != nil {
			return nil, fmt.Errorf("marketdata: read response for %s: %w", path, readErr)
		}
		return body, nil
	}
	return nil, fmt.Errorf("marketdata: request failed for %s: %w", path, lastErr)
}

func sleepBackoff(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// ticker24hr is the subset of Binance's /api/v3/ticker/24hr response
// fields this client consumes.
type ticker24hr struct {
	Symbol      string `json:"symbol"`
	QuoteVolume string `json:"quoteVolume"`
}

// FetchTopVolumeSymbols returns the topN symbols quoted in quoteAsset
// by descending 24h quote volume, excluding leveraged tokens.
func (c *Client) FetchTopVolumeSymbols(ctx context.Context, topN int, quoteAsset string) ([]string, error) {
	raw, err := c.get(ctx, "/api/v3/ticker/24hr", nil)
	if err != nil {
		return nil, err
	}

	var tickers []ticker24hr
	if err := json.Unmarshal(raw, &tickers); err != nil {
		return nil, fmt.Errorf("marketdata: decode ticker list: %w", err)
	}

	type scored struct {
		symbol string
		volume float64
	}
	eligible := make([]scored, 0, len(tickers))
	for _, t := range tickers {
		if !strings.HasSuffix(t.Symbol, quoteAsset) {
			continue
		}
		if isLeveragedToken(t.Symbol) {
			continue
		}
		vol, err := strconv.ParseFloat(t.QuoteVolume, 64)
		if err != nil {
			continue
		}
		eligible = append(eligible, scored{symbol: t.Symbol, volume: vol})
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].volume > eligible[j].volume })

	if topN > len(eligible) {
		topN = len(eligible)
	}
	out := make([]string, topN)
	for i := 0; i < topN; i++ {
		out[i] = eligible[i].symbol
	}
	return out, nil
}

func isLeveragedToken(symbol string) bool {
	for _, marker := range strings.Split(leveragedTokenMarker, "|") {
		if strings.Contains(symbol, marker) {
			return true
		}
	}
	return false
}

// Kline is one OHLCV candle row, positionally decoded from Binance's
// array-of-arrays kline payload.
type Kline struct {
	OpenTimeMs  int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	CloseTimeMs int64
}

// FetchKlines pages through /api/v3/klines from startTimeMs to
// endTimeMs, advancing the cursor by the last row's open time plus one
// interval step. Pagination stops on an empty batch, an underfull
// page, or after maxPaginationRounds rounds (matching the original's
// 5000-iteration safety valve).
func (c *Client) FetchKlines(ctx context.Context, symbol, interval string, startTimeMs, endTimeMs int64) ([]Kline, error) {
	stepMs, ok := intervalMillis[interval]
	if !ok {
		stepMs = intervalMillis["1m"]
	}

	var rows []Kline
	cursor := startTimeMs
	for round := 0; cursor < endTimeMs && round < maxPaginationRounds; round++ {
		params := url.Values{
			"symbol":    {symbol},
			"interval":  {interval},
			"startTime": {strconv.FormatInt(cursor, 10)},
			"endTime":   {strconv.FormatInt(endTimeMs, 10)},
			"limit":     {strconv.Itoa(defaultKlineLimit)},
		}
		raw, err := c.get(ctx, "/api/v3/klines", params)
		if err != nil {
			return nil, err
		}

		batch, err := decodeKlineBatch(raw)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		rows = append(rows, batch...)

		nextCursor := batch[len(batch)-1].OpenTimeMs + stepMs
		if nextCursor <= cursor {
			break
		}
		cursor = nextCursor

		if len(batch) < defaultKlineLimit {
			break
		}
	}
	return rows, nil
}

// FetchLookbackKlines fetches the last `days` days of klines up to now.
func (c *Client) FetchLookbackKlines(ctx context.Context, symbol, interval string, days int, now time.Time) ([]Kline, error) {
	endMs := now.UnixMilli()
	startMs := now.AddDate(0, 0, -days).UnixMilli()
	return c.FetchKlines(ctx, symbol, interval, startMs, endMs)
}

func decodeKlineBatch(raw json.RawMessage) ([]Kline, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("marketdata: decode kline batch: %w", err)
	}

	out := make([]Kline, 0, len(rows))
	for _, row := range rows {
		k, err := decodeKlineRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func decodeKlineRow(row []json.RawMessage) (Kline, error) {
	if len(row) < 7 {
		return Kline{}, fmt.Errorf("marketdata: kline row has %d fields, want at least 7", len(row))
	}
	openTime, err := decodeInt64(row[0])
	if err != nil {
		return Kline{}, err
	}
	open, err := decodeFloat(row[1])
	if err != nil {
		return Kline{}, err
	}
	high, err := decodeFloat(row[2])
	if err != nil {
		return Kline{}, err
	}
	low, err := decodeFloat(row[3])
	if err != nil {
		return Kline{}, err
	}
	closePrice, err := decodeFloat(row[4])
	if err != nil {
		return Kline{}, err
	}
	volume, err := decodeFloat(row[5])
	if err != nil {
		return Kline{}, err
	}
	closeTime, err := decodeInt64(row[6])
	if err != nil {
		return Kline{}, err
	}
	return Kline{
		OpenTimeMs:  openTime,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       closePrice,
		Volume:      volume,
		CloseTimeMs: closeTime,
	}, nil
}

func decodeFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("marketdata: decode numeric field: %w", err)
	}
	return f, nil
}

func decodeInt64(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("marketdata: decode integer field: %w", err)
	}
	return n, nil
}
