package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/quantlab/signal-backtester/pkg/types"
)

// maxKlinesPerRequest is the Bybit V5 page limit.
const maxKlinesPerRequest = 1000

var intervalMap = map[string]string{
	"1m":  "1",
	"3m":  "3",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"6h":  "360",
	"12h": "720",
	"1d":  "D",
	"1w":  "W",
}

// GetCandles fetches the full kline range [from, to] and returns candles in
// ascending time order. Bybit anchors each page at the requested end and
// returns rows newest first, so pagination walks backward from the window
// end, moving the end cursor past the oldest row of each page.
func (c *Client) GetCandles(ctx context.Context, symbol string, from, to time.Time, interval string) ([]types.OHLCV, error) {
	apiInterval, ok := intervalMap[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}
	return collectKlines(ctx, from, to, func(ctx context.Context, start, end time.Time) ([]types.OHLCV, error) {
		return c.fetchPage(ctx, symbol, apiInterval, start, end)
	})
}

// pageFunc fetches one kline page over [start, end], newest row first.
type pageFunc func(ctx context.Context, start, end time.Time) ([]types.OHLCV, error)

func collectKlines(ctx context.Context, from, to time.Time, fetch pageFunc) ([]types.OHLCV, error) {
	var all []types.OHLCV
	cursor := to

	for !cursor.Before(from) {
		page, err := fetch(ctx, from, cursor)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)

		oldest := page[len(page)-1].Timestamp
		if !oldest.After(from) || !oldest.Before(cursor) {
			break
		}
		cursor = oldest.Add(-time.Millisecond)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	// Overlapping pages can repeat boundary rows; keep one candle per
	// timestamp.
	deduped := make([]types.OHLCV, 0, len(all))
	for _, candle := range all {
		if len(deduped) > 0 && !candle.Timestamp.After(deduped[len(deduped)-1].Timestamp) {
			continue
		}
		deduped = append(deduped, candle)
	}
	return deduped, nil
}

func (c *Client) fetchPage(ctx context.Context, symbol, interval string, start, end time.Time) ([]types.OHLCV, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"interval": interval,
		"start":    start.UnixMilli(),
		"end":      end.UnixMilli(),
		"limit":    maxKlinesPerRequest,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines: %w", err)
	}
	return c.parseKlineResponse(result)
}

// parseKlineResponse unpacks the generic server response. Bybit returns
// rows as string arrays, newest first:
// [startTime, open, high, low, close, volume, turnover].
func (c *Client) parseKlineResponse(response interface{}) ([]types.OHLCV, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type %T", response)
	}
	if serverResp.RetCode != 0 {
		return nil, fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var klineResult struct {
		Symbol   string     `json:"symbol"`
		Category string     `json:"category"`
		List     [][]string `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &klineResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kline result: %w", err)
	}

	candles := make([]types.OHLCV, 0, len(klineResult.List))
	for _, row := range klineResult.List {
		if len(row) < 6 {
			continue
		}
		candles = append(candles, types.OHLCV{
			Timestamp: time.UnixMilli(parseInt64(row[0])).UTC(),
			Open:      parseFloat64(row[1]),
			High:      parseFloat64(row[2]),
			Low:       parseFloat64(row[3]),
			Close:     parseFloat64(row[4]),
			Volume:    parseFloat64(row[5]),
		})
	}
	return candles, nil
}
