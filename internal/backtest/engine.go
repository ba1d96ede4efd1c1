package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantlab/signal-backtester/internal/monitoring"
	"github.com/quantlab/signal-backtester/internal/signal"
	"github.com/quantlab/signal-backtester/pkg/types"
)

// ErrDataUnavailable aborts a run when the market data source yields no
// candles for the requested window. Retry policy, if any, belongs to the
// data source, not the engine.
var ErrDataUnavailable = errors.New("no market data for requested window")

// CandleSource supplies ordered OHLCV candles for a symbol and window.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time, interval string) ([]types.OHLCV, error)
}

const (
	// DefaultSignalWindow is how many recent candles are handed to the
	// signal source on each tick.
	DefaultSignalWindow = 24

	// progressStride is how often the progress callback fires, in candles.
	progressStride = 100
)

// Engine replays an ordered candle sequence against the signal strategy.
// Each engine drives exactly one run and owns all of its state; nothing is
// shared across runs, so no synchronization is needed inside.
type Engine struct {
	req     BacktestRequest
	fees    FeeSchedule
	candles CandleSource
	signals signal.Source
	clock   Clock
	log     *zap.Logger

	signalWindow int
	onProgress   func(done, total int)
}

func NewEngine(req BacktestRequest, fees FeeSchedule, candles CandleSource, signals signal.Source, clock Clock, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		req:          req,
		fees:         fees,
		candles:      candles,
		signals:      signals,
		clock:        clock,
		log:          log,
		signalWindow: DefaultSignalWindow,
	}
}

// SetProgressFunc installs a callback invoked periodically with
// (candles processed, total candles). Used by the async runner.
func (e *Engine) SetProgressFunc(fn func(done, total int)) {
	e.onProgress = fn
}

// Run executes the simulation. Cancellation via ctx is cooperative and
// checked once per candle; a cancelled run keeps the trades produced so far
// and reports metrics over that partial set. A failed run carries a reason
// and no performance metrics.
func (e *Engine) Run(ctx context.Context) (*BacktestResult, error) {
	run := &TradingRun{
		ID:              uuid.NewString(),
		Symbol:          e.req.Symbol,
		Status:          StatusRunning,
		SessionStart:    e.req.Start,
		SessionEnd:      e.req.End,
		StartingCapital: e.req.StartingCapital,
		CreatedAt:       e.clock.Now(),
	}

	monitoring.RunStarted()
	started := time.Now()
	defer func() {
		monitoring.RunFinished()
		monitoring.RecordRun(run.Symbol, string(run.Status), time.Since(started))
	}()

	e.log.Info("simulation starting",
		zap.String("run_id", run.ID),
		zap.String("symbol", run.Symbol),
		zap.Time("from", e.req.Start),
		zap.Time("to", e.req.End),
	)

	candles, err := e.candles.GetCandles(ctx, e.req.Symbol, e.req.Start, e.req.End, e.req.Interval)
	if err != nil {
		return e.fail(run, fmt.Errorf("candle fetch failed: %w", err))
	}
	if len(candles) == 0 {
		return e.fail(run, fmt.Errorf("%w: %s %s..%s", ErrDataUnavailable,
			e.req.Symbol, e.req.Start.Format(time.DateOnly), e.req.End.Format(time.DateOnly)))
	}

	risk := NewRiskManager(e.req.Params.StopLossPercent, e.req.Params.TakeProfitPercent)
	cash := e.req.StartingCapital
	trades := make([]Trade, 0)
	total := len(candles)
	cancelled := false
	last := candles[0]

	for i, candle := range candles {
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			break
		}
		last = candle

		price := candle.Close

		// Exit sweep first: protect capital before committing new capital.
		for _, pos := range snapshot(risk.OpenPositions()) {
			reason, exit := risk.CheckExit(pos, price)
			if !exit {
				continue
			}
			var trade Trade
			cash, trade = e.exitPosition(risk, pos, price, candle.Timestamp, reason, cash)
			trades = append(trades, trade)
		}

		if risk.OpenCount() < e.req.Params.MaxOpenPositions {
			if trade, ok := e.tryEnter(ctx, risk, candles, i, cash); ok {
				cash = trade.PortfolioValueAfter
				trades = append(trades, trade)
			}
		}

		if e.onProgress != nil && ((i+1)%progressStride == 0 || i == total-1) {
			e.onProgress(i+1, total)
		}
	}

	if !cancelled {
		// Liquidate whatever is still open at the last close so the run
		// reports fully realized P/L.
		for _, pos := range snapshot(risk.OpenPositions()) {
			var trade Trade
			cash, trade = e.exitPosition(risk, pos, last.Close, last.Timestamp, ReasonManual, cash)
			trades = append(trades, trade)
		}
	}

	final := cash
	for _, pos := range risk.OpenPositions() {
		// Only reachable on cancellation: open lots are marked to the close
		// of the last processed candle instead of being force-closed.
		final += pos.Quantity * last.Close
	}

	run.Status = StatusCompleted
	if cancelled {
		run.Status = StatusCancelled
	}
	run.FinalCapital = &final
	run.CompletedAt = e.clock.Now()

	completed, wins := 0, 0
	for _, t := range trades {
		if t.Closed() {
			completed++
			if *t.ProfitLoss > 0 {
				wins++
			}
		}
	}
	run.TotalTrades = completed
	run.WinningTrades = wins

	perf := ComputeMetrics(run, trades)
	run.TotalReturn = perf.TotalReturn
	run.MaxDrawdown = perf.MaxDrawdown

	e.log.Info("simulation finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("trades", len(trades)),
		zap.Float64("final_capital", final),
	)

	return &BacktestResult{
		Run:         run,
		Trades:      trades,
		Timeline:    BuildTimeline(run, trades, e.clock),
		Performance: perf,
	}, nil
}

// tryEnter asks the signal source for a prediction and opens a position
// when the model is confident enough. Sizing is risk_per_trade percent of
// current equity, bounded by available cash.
func (e *Engine) tryEnter(ctx context.Context, risk *RiskManager, candles []types.OHLCV, i int, cash float64) (Trade, bool) {
	candle := candles[i]
	price := candle.Close
	if price <= 0 {
		return Trade{}, false
	}

	from := i - e.signalWindow + 1
	if from < 0 {
		from = 0
	}
	sig, err := e.signals.Predict(ctx, e.req.Symbol, candles[from:i+1])
	if err != nil {
		monitoring.RecordError("signal")
		e.log.Warn("signal source failed, holding", zap.Error(err))
		return Trade{}, false
	}
	if sig.Direction != signal.DirectionUp || sig.Confidence < e.req.Params.ConfidenceThreshold {
		return Trade{}, false
	}

	equity := cash
	for _, pos := range risk.OpenPositions() {
		equity += pos.Quantity * price
	}
	investment := equity * e.req.Params.RiskPerTrade / 100
	if investment > cash {
		investment = cash
	}
	quantity := investment / price
	if quantity <= 0 {
		return Trade{}, false
	}

	exec := ExecuteTrade(SideBuy, quantity, price, cash, e.fees)
	if exec.NetValue > cash {
		// The clamped minimum fee can push a small fill past available
		// cash; skip the entry rather than go negative.
		return Trade{}, false
	}

	risk.OpenPosition(e.req.Symbol, price, quantity, exec.Fee, candle.Timestamp)
	monitoring.RecordTrade(e.req.Symbol, string(SideBuy), string(ReasonAISignal))

	return Trade{
		Side:                 SideBuy,
		Symbol:               e.req.Symbol,
		Quantity:             quantity,
		Price:                price,
		Fee:                  exec.Fee,
		TotalValue:           exec.TotalValue,
		NetValue:             exec.NetValue,
		PortfolioValueBefore: exec.PortfolioValueBefore,
		PortfolioValueAfter:  exec.PortfolioValueAfter,
		Reason:               ReasonAISignal,
		Confidence:           sig.Confidence,
		ExecutionTime:        candle.Timestamp,
	}, true
}

// exitPosition sells a full lot and realizes its P/L.
func (e *Engine) exitPosition(risk *RiskManager, pos *Position, price float64, at time.Time, reason TradeReason, cash float64) (float64, Trade) {
	exec := ExecuteTrade(SideSell, pos.Quantity, price, cash, e.fees)
	pnl := ClosePnL(pos, exec)
	risk.ClosePosition(pos)
	monitoring.RecordTrade(pos.Symbol, string(SideSell), string(reason))

	return exec.PortfolioValueAfter, Trade{
		Side:                 SideSell,
		Symbol:               pos.Symbol,
		Quantity:             pos.Quantity,
		Price:                price,
		Fee:                  exec.Fee,
		TotalValue:           exec.TotalValue,
		NetValue:             exec.NetValue,
		PortfolioValueBefore: exec.PortfolioValueBefore,
		PortfolioValueAfter:  exec.PortfolioValueAfter,
		ProfitLoss:           &pnl,
		Reason:               reason,
		ExecutionTime:        at,
	}
}

func (e *Engine) fail(run *TradingRun, err error) (*BacktestResult, error) {
	run.Status = StatusFailed
	run.FailureReason = err.Error()
	run.CompletedAt = e.clock.Now()
	monitoring.RecordError(errorLabel(err))
	e.log.Error("simulation failed", zap.String("run_id", run.ID), zap.Error(err))
	return &BacktestResult{Run: run}, err
}

// errorLabel maps a failure cause to its metric label.
func errorLabel(err error) string {
	if errors.Is(err, ErrDataUnavailable) {
		return "data_unavailable"
	}
	return "data_fetch"
}

// snapshot copies the open-position slice so exits can mutate the risk
// manager while iterating.
func snapshot(positions []*Position) []*Position {
	out := make([]*Position, len(positions))
	copy(out, positions)
	return out
}
