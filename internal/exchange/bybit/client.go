// Package bybit adapts the Bybit V5 market API to the engine's candle
// source contract.
package bybit

import (
	"strconv"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/quantlab/signal-backtester/internal/exchange/throttle"
)

// requestsPerSecond stays well under Bybit's public rate limit.
const requestsPerSecond = 10

// Client wraps the Bybit HTTP client. Market-data endpoints are public, so
// credentials are optional.
type Client struct {
	httpClient *bybit_api.Client
	category   string
	limiter    *throttle.Bucket
}

// Config holds the client configuration.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Category  string // "spot", "linear", "inverse"; defaults to spot
}

func NewClient(config Config) *Client {
	baseURL := bybit_api.MAINNET
	if config.Testnet {
		baseURL = bybit_api.TESTNET
	}
	category := config.Category
	if category == "" {
		category = "spot"
	}

	return &Client{
		httpClient: bybit_api.NewBybitHttpClient(
			config.APIKey,
			config.APISecret,
			bybit_api.WithBaseURL(baseURL),
		),
		category: category,
		limiter:  throttle.NewBucket(requestsPerSecond, requestsPerSecond),
	}
}

func parseFloat64(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
