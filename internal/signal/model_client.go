package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quantlab/signal-backtester/pkg/types"
)

const defaultPredictTimeout = 10 * time.Second

// ModelClient is the adapter to the external prediction service. It posts
// the candle window as JSON and decodes the model's response.
type ModelClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewModelClient(baseURL string, timeout time.Duration) *ModelClient {
	if timeout <= 0 {
		timeout = defaultPredictTimeout
	}
	return &ModelClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Symbol  string          `json:"symbol"`
	Candles []candlePayload `json:"candles"`
}

type candlePayload struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Predict calls the model service. Network and decode failures are returned
// to the caller; the engine treats a failed prediction as a hold.
func (c *ModelClient) Predict(ctx context.Context, symbol string, window []types.OHLCV) (Signal, error) {
	payload := predictRequest{Symbol: symbol, Candles: make([]candlePayload, 0, len(window))}
	for _, candle := range window {
		payload.Candles = append(payload.Candles, candlePayload{
			Timestamp: candle.Timestamp.UnixMilli(),
			Open:      candle.Open,
			High:      candle.High,
			Low:       candle.Low,
			Close:     candle.Close,
			Volume:    candle.Volume,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Signal{}, fmt.Errorf("failed to encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Signal{}, fmt.Errorf("failed to build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Signal{}, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Signal{}, fmt.Errorf("predict request returned status %d", resp.StatusCode)
	}

	var sig Signal
	if err := json.NewDecoder(resp.Body).Decode(&sig); err != nil {
		return Signal{}, fmt.Errorf("failed to decode predict response: %w", err)
	}
	return sig, nil
}
