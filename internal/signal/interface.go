// Package signal defines the prediction capability the simulation consumes.
// The model itself is a black box: it returns a direction, a confidence and
// a predicted price for a window of recent candles.
package signal

import (
	"context"

	"github.com/quantlab/signal-backtester/pkg/types"
)

// Direction is the model's view of where price is headed.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionHold Direction = "hold"
)

// Signal is one prediction.
type Signal struct {
	Direction      Direction `json:"direction"`
	Confidence     float64   `json:"confidence"`
	PredictedPrice float64   `json:"predicted_price"`
}

// Source produces predictions from a window of recent candles. There are
// exactly two implementations: ModelClient (the real model adapter) and
// Scripted (a deterministic double). The implementation is chosen at
// construction time, never branched on at call sites.
type Source interface {
	Predict(ctx context.Context, symbol string, window []types.OHLCV) (Signal, error)
}
