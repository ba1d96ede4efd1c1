// Package sink persists finished runs. Persistence is optional: the
// simulation core works, and is tested, with no sink attached.
package sink

import (
	"context"

	"github.com/quantlab/signal-backtester/internal/backtest"
)

// ResultSink stores a finished run and its trade ledger.
type ResultSink interface {
	Persist(ctx context.Context, run *backtest.TradingRun, trades []backtest.Trade) error
	Close() error
}
