package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/signal-backtester/internal/backtest"
	"github.com/quantlab/signal-backtester/internal/signal"
	"github.com/quantlab/signal-backtester/pkg/types"
)

var sessionStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func flatTape(n int) []types.OHLCV {
	out := make([]types.OHLCV, n)
	for i := range out {
		out[i] = types.OHLCV{
			Open: 100, High: 100, Low: 100, Close: 100, Volume: 1,
			Timestamp: sessionStart.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

type staticCandles struct {
	candles []types.OHLCV
}

func (s staticCandles) GetCandles(context.Context, string, time.Time, time.Time, string) ([]types.OHLCV, error) {
	return s.candles, nil
}

// blockingCandles parks the engine inside the data fetch until released or
// the run context is cancelled.
type blockingCandles struct {
	release chan struct{}
	candles []types.OHLCV
}

func (b blockingCandles) GetCandles(ctx context.Context, _ string, _, _ time.Time, _ string) ([]types.OHLCV, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return b.candles, nil
}

func testRequest() backtest.BacktestRequest {
	return backtest.BacktestRequest{
		Symbol:          "BTCUSDT",
		Start:           sessionStart,
		End:             sessionStart.AddDate(0, 0, 2),
		StartingCapital: 1000,
		Interval:        "1h",
		Params: backtest.StrategyParams{
			StopLossPercent:     5,
			TakeProfitPercent:   10,
			ConfidenceThreshold: 0.7,
			MaxOpenPositions:    1,
			RiskPerTrade:        10,
		},
	}
}

func newEngine(candles backtest.CandleSource) *backtest.Engine {
	return backtest.NewEngine(testRequest(), backtest.FeeSchedule{}, candles, signal.Hold(), backtest.SystemClock{}, nil)
}

func TestRunQuick(t *testing.T) {
	m := NewManager(0, nil)

	result, err := m.RunQuick(context.Background(), newEngine(staticCandles{candles: flatTape(5)}))

	require.NoError(t, err)
	assert.Equal(t, backtest.StatusCompleted, result.Run.Status)
	assert.Zero(t, m.ActiveRuns("anyone"))
}

func TestSubmit_DeliversOutcomeOnce(t *testing.T) {
	m := NewManager(0, nil)

	handle, err := m.Submit(context.Background(), "alice", newEngine(staticCandles{candles: flatTape(5)}))
	require.NoError(t, err)

	outcome := <-handle.Done
	require.NoError(t, outcome.Err)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, backtest.StatusCompleted, outcome.Result.Run.Status)
	assert.Equal(t, outcome.Result.Run.ID, handle.RunID)

	// The channel is closed after the single send.
	_, open := <-handle.Done
	assert.False(t, open)
}

func TestSubmit_ReportsProgress(t *testing.T) {
	m := NewManager(0, nil)

	handle, err := m.Submit(context.Background(), "alice", newEngine(staticCandles{candles: flatTape(5)}))
	require.NoError(t, err)

	<-handle.Done

	// At least the terminal report survives the drop-on-full policy.
	p, open := <-handle.Progress
	require.True(t, open)
	assert.Equal(t, p.Total, p.Done)
	assert.Equal(t, 5, p.Total)
}

// TestSubmit_ProgressKeepsLatest leaves every report undrained; a stale
// buffered report must be evicted in favor of the newest one.
func TestSubmit_ProgressKeepsLatest(t *testing.T) {
	m := NewManager(0, nil)

	// 250 candles produce reports at 100, 200 and 250.
	handle, err := m.Submit(context.Background(), "alice", newEngine(staticCandles{candles: flatTape(250)}))
	require.NoError(t, err)

	<-handle.Done

	p, open := <-handle.Progress
	require.True(t, open)
	assert.Equal(t, 250, p.Done)
	assert.Equal(t, 250, p.Total)
}

func TestSubmit_RejectsOverCap(t *testing.T) {
	m := NewManager(1, nil)
	release := make(chan struct{})

	first, err := m.Submit(context.Background(), "alice", newEngine(blockingCandles{release: release, candles: flatTape(3)}))
	require.NoError(t, err)
	assert.Equal(t, 1, m.ActiveRuns("alice"))

	_, err = m.Submit(context.Background(), "alice", newEngine(staticCandles{candles: flatTape(3)}))
	assert.ErrorIs(t, err, ErrTooManyRuns)

	// Another user is not affected by alice's cap.
	other, err := m.Submit(context.Background(), "bob", newEngine(staticCandles{candles: flatTape(3)}))
	require.NoError(t, err)
	<-other.Done

	close(release)
	<-first.Done
	assert.Zero(t, m.ActiveRuns("alice"))

	// The freed slot admits a new run.
	again, err := m.Submit(context.Background(), "alice", newEngine(staticCandles{candles: flatTape(3)}))
	require.NoError(t, err)
	<-again.Done
}

func TestHandle_Cancel(t *testing.T) {
	m := NewManager(0, nil)

	// Never released: the run only proceeds once cancellation unblocks the
	// fetch, at which point the engine sees the cancelled context.
	handle, err := m.Submit(context.Background(), "alice", newEngine(blockingCandles{candles: flatTape(3)}))
	require.NoError(t, err)

	handle.Cancel()

	outcome := <-handle.Done
	require.NoError(t, outcome.Err)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, backtest.StatusCancelled, outcome.Result.Run.Status)
	assert.Empty(t, outcome.Result.Trades)
}
