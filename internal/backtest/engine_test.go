package backtest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/signal-backtester/internal/signal"
	"github.com/quantlab/signal-backtester/pkg/types"
)

// staticCandles serves a fixed candle slice regardless of the window.
type staticCandles struct {
	candles []types.OHLCV
}

func (s staticCandles) GetCandles(context.Context, string, time.Time, time.Time, string) ([]types.OHLCV, error) {
	return s.candles, nil
}

type failingCandles struct {
	err error
}

func (f failingCandles) GetCandles(context.Context, string, time.Time, time.Time, string) ([]types.OHLCV, error) {
	return nil, f.err
}

var sessionStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func candlesAt(prices ...float64) []types.OHLCV {
	out := make([]types.OHLCV, len(prices))
	for i, p := range prices {
		out[i] = types.OHLCV{
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    1,
			Timestamp: sessionStart.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func engineRequest(maxOpen int, riskPerTrade float64) BacktestRequest {
	return BacktestRequest{
		Symbol:          "BTCUSDT",
		Start:           sessionStart,
		End:             sessionStart.AddDate(0, 0, 2),
		StartingCapital: 1000,
		Interval:        "1h",
		Params: StrategyParams{
			StopLossPercent:     5,
			TakeProfitPercent:   10,
			ConfidenceThreshold: 0.7,
			MaxOpenPositions:    maxOpen,
			RiskPerTrade:        riskPerTrade,
		},
	}
}

// zeroFees keeps the arithmetic in engine tests exact.
func zeroFees() FeeSchedule {
	return FeeSchedule{}
}

func newTestEngine(req BacktestRequest, candles CandleSource, signals signal.Source) *Engine {
	return NewEngine(req, zeroFees(), candles, signals, FixedClock{T: testNow}, nil)
}

func TestEngineRun_TakeProfitExit(t *testing.T) {
	// Entry at 100, take-profit level 110, crossed on the third candle.
	eng := newTestEngine(
		engineRequest(1, 100),
		staticCandles{candles: candlesAt(100, 105, 111)},
		signal.NewScripted(
			signal.Signal{Direction: signal.DirectionUp, Confidence: 0.9},
			signal.Signal{Direction: signal.DirectionHold},
		),
	)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Run.Status)
	require.Len(t, result.Trades, 2)

	entry := result.Trades[0]
	assert.Equal(t, SideBuy, entry.Side)
	assert.Equal(t, ReasonAISignal, entry.Reason)
	assert.InDelta(t, 10.0, entry.Quantity, 1e-9)
	assert.InDelta(t, 0.0, entry.PortfolioValueAfter, 1e-9)

	exit := result.Trades[1]
	assert.Equal(t, SideSell, exit.Side)
	assert.Equal(t, ReasonTakeProfit, exit.Reason)
	require.True(t, exit.Closed())
	assert.InDelta(t, 110.0, *exit.ProfitLoss, 1e-9)

	require.NotNil(t, result.Run.FinalCapital)
	assert.InDelta(t, 1110.0, *result.Run.FinalCapital, 1e-9)
	assert.Equal(t, 1, result.Run.TotalTrades)
	assert.Equal(t, 1, result.Run.WinningTrades)
}

func TestEngineRun_StopLossExit(t *testing.T) {
	// Entry at 100, stop level 95, breached on the second candle.
	eng := newTestEngine(
		engineRequest(1, 100),
		staticCandles{candles: candlesAt(100, 94)},
		signal.NewScripted(
			signal.Signal{Direction: signal.DirectionUp, Confidence: 0.9},
			signal.Signal{Direction: signal.DirectionHold},
		),
	)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	exit := result.Trades[1]
	assert.Equal(t, ReasonStopLoss, exit.Reason)
	require.True(t, exit.Closed())
	assert.InDelta(t, -60.0, *exit.ProfitLoss, 1e-9)

	assert.Equal(t, 1, result.Run.TotalTrades)
	assert.Equal(t, 0, result.Run.WinningTrades)
}

func TestEngineRun_FinalCandleLiquidation(t *testing.T) {
	// Price never reaches either exit level; the lot is force-closed at the
	// last candle.
	eng := newTestEngine(
		engineRequest(1, 100),
		staticCandles{candles: candlesAt(100, 102, 103)},
		signal.NewScripted(
			signal.Signal{Direction: signal.DirectionUp, Confidence: 0.9},
			signal.Signal{Direction: signal.DirectionHold},
		),
	)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	exit := result.Trades[1]
	assert.Equal(t, ReasonManual, exit.Reason)
	assert.InDelta(t, 103.0, exit.Price, 1e-9)
	assert.Equal(t, sessionStart.Add(2*time.Hour), exit.ExecutionTime)
	require.True(t, exit.Closed())
	assert.InDelta(t, 30.0, *exit.ProfitLoss, 1e-9)

	require.NotNil(t, result.Run.FinalCapital)
	assert.InDelta(t, 1030.0, *result.Run.FinalCapital, 1e-9)
}

func TestEngineRun_ConfidenceBelowThreshold(t *testing.T) {
	eng := newTestEngine(
		engineRequest(1, 100),
		staticCandles{candles: candlesAt(100, 105, 111)},
		signal.NewScripted(signal.Signal{Direction: signal.DirectionUp, Confidence: 0.5}),
	)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	assert.Equal(t, 0, result.Run.TotalTrades)
	require.NotNil(t, result.Run.FinalCapital)
	assert.InDelta(t, 1000.0, *result.Run.FinalCapital, 1e-9)
}

func TestEngineRun_MaxOpenPositionsCap(t *testing.T) {
	// Always-confident signal on a flat tape: entries stop at the cap, and
	// the final candle liquidates both lots.
	eng := newTestEngine(
		engineRequest(2, 10),
		staticCandles{candles: candlesAt(100, 100, 100, 100)},
		signal.NewScripted(signal.Signal{Direction: signal.DirectionUp, Confidence: 0.9}),
	)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	var buys, sells int
	for _, trade := range result.Trades {
		switch trade.Side {
		case SideBuy:
			buys++
		case SideSell:
			sells++
			assert.Equal(t, ReasonManual, trade.Reason)
		}
	}
	assert.Equal(t, 2, buys)
	assert.Equal(t, 2, sells)
	assert.Equal(t, 2, result.Run.TotalTrades)
}

func TestEngineRun_TradesOrderedByTime(t *testing.T) {
	eng := newTestEngine(
		engineRequest(3, 10),
		staticCandles{candles: candlesAt(100, 101, 94, 100, 111)},
		signal.NewScripted(signal.Signal{Direction: signal.DirectionUp, Confidence: 0.9}),
	)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, result.Trades)

	for i := 1; i < len(result.Trades); i++ {
		assert.False(t, result.Trades[i].ExecutionTime.Before(result.Trades[i-1].ExecutionTime))
	}
}

func TestEngineRun_NoData(t *testing.T) {
	eng := newTestEngine(engineRequest(1, 100), staticCandles{}, signal.Hold())

	result, err := eng.Run(context.Background())

	require.ErrorIs(t, err, ErrDataUnavailable)
	require.NotNil(t, result)
	assert.Equal(t, StatusFailed, result.Run.Status)
	assert.NotEmpty(t, result.Run.FailureReason)
	assert.Nil(t, result.Run.FinalCapital)
	assert.Empty(t, result.Trades)
}

func TestEngineRun_FetchError(t *testing.T) {
	fetchErr := errors.New("exchange unreachable")
	eng := newTestEngine(engineRequest(1, 100), failingCandles{err: fetchErr}, signal.Hold())

	result, err := eng.Run(context.Background())

	require.ErrorIs(t, err, fetchErr)
	assert.Equal(t, StatusFailed, result.Run.Status)
}

func TestErrorLabel(t *testing.T) {
	assert.Equal(t, "data_unavailable", errorLabel(fmt.Errorf("wrapped: %w", ErrDataUnavailable)))
	assert.Equal(t, "data_fetch", errorLabel(errors.New("exchange unreachable")))
}

func TestEngineRun_PreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := newTestEngine(
		engineRequest(1, 100),
		staticCandles{candles: candlesAt(100, 105, 111)},
		signal.NewScripted(signal.Signal{Direction: signal.DirectionUp, Confidence: 0.9}),
	)

	result, err := eng.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, result.Run.Status)
	assert.Empty(t, result.Trades)
	require.NotNil(t, result.Run.FinalCapital)
	assert.InDelta(t, 1000.0, *result.Run.FinalCapital, 1e-9)
}

// cancellingSource cancels the run context on its first prediction, then
// delegates. Used to stop the engine mid-tape deterministically.
type cancellingSource struct {
	cancel context.CancelFunc
	inner  signal.Source
	fired  bool
}

func (c *cancellingSource) Predict(ctx context.Context, symbol string, window []types.OHLCV) (signal.Signal, error) {
	if !c.fired {
		c.fired = true
		c.cancel()
	}
	return c.inner.Predict(ctx, symbol, window)
}

func TestEngineRun_CancelKeepsPartialTrades(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	eng := newTestEngine(
		engineRequest(1, 100),
		staticCandles{candles: candlesAt(100, 105, 120)},
		&cancellingSource{
			cancel: cancel,
			inner:  signal.NewScripted(signal.Signal{Direction: signal.DirectionUp, Confidence: 0.9}),
		},
	)

	result, err := eng.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, result.Run.Status)

	// The entry fill from the first candle survives; no forced liquidation.
	require.Len(t, result.Trades, 1)
	assert.Equal(t, SideBuy, result.Trades[0].Side)

	// The open lot is marked at the close of the last processed candle,
	// never at a later candle the run did not reach.
	require.NotNil(t, result.Run.FinalCapital)
	assert.InDelta(t, 10*100.0, *result.Run.FinalCapital, 1e-9)
}
