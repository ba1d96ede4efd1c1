// Package binance adapts the Binance spot API to the engine's candle
// source contract.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/quantlab/signal-backtester/internal/exchange/throttle"
	"github.com/quantlab/signal-backtester/pkg/types"
)

// maxKlinesPerRequest is the Binance kline page limit.
const maxKlinesPerRequest = 1000

// requestsPerSecond stays well under Binance's request weight limit.
const requestsPerSecond = 10

// Client wraps the go-binance client. Kline endpoints are public; keys are
// only needed when the same client is reused for account calls.
type Client struct {
	client  *binance.Client
	limiter *throttle.Bucket
}

func NewClient(apiKey, apiSecret string) *Client {
	return &Client{
		client:  binance.NewClient(apiKey, apiSecret),
		limiter: throttle.NewBucket(requestsPerSecond, requestsPerSecond),
	}
}

// GetCandles fetches the kline range [from, to] in ascending order,
// paginating past the API page limit.
func (c *Client) GetCandles(ctx context.Context, symbol string, from, to time.Time, interval string) ([]types.OHLCV, error) {
	var all []types.OHLCV
	cursor := from

	for cursor.Before(to) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		klines, err := c.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(cursor.UnixMilli()).
			EndTime(to.UnixMilli()).
			Limit(maxKlinesPerRequest).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			candle, err := convertKline(k)
			if err != nil {
				return nil, err
			}
			all = append(all, candle)
		}

		last := time.UnixMilli(klines[len(klines)-1].OpenTime).UTC()
		if !last.After(cursor) {
			break
		}
		cursor = last.Add(time.Millisecond)
	}

	return all, nil
}

func convertKline(k *binance.Kline) (types.OHLCV, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return types.OHLCV{}, fmt.Errorf("bad open price %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return types.OHLCV{}, fmt.Errorf("bad high price %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return types.OHLCV{}, fmt.Errorf("bad low price %q: %w", k.Low, err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return types.OHLCV{}, fmt.Errorf("bad close price %q: %w", k.Close, err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return types.OHLCV{}, fmt.Errorf("bad volume %q: %w", k.Volume, err)
	}

	return types.OHLCV{
		Timestamp: time.UnixMilli(k.OpenTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}
