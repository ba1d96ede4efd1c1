package backtest

import (
	"time"
)

// RunStatus tracks the lifecycle of a simulation run.
type RunStatus string

const (
	StatusIdle      RunStatus = "idle"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// TradeSide is the direction of a single fill.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// TradeReason records what triggered a fill.
type TradeReason string

const (
	ReasonAISignal   TradeReason = "ai_signal"
	ReasonStopLoss   TradeReason = "stop_loss"
	ReasonTakeProfit TradeReason = "take_profit"
	// ReasonManual marks the forced liquidation of positions still open at
	// the end of a run, so every run reports fully realized P/L.
	ReasonManual TradeReason = "manual"
)

// TradingRun is the identity and aggregate outcome of one simulation.
// It is created when the simulation starts, mutated only by the engine,
// and finalized exactly once.
type TradingRun struct {
	ID              string
	Symbol          string
	Status          RunStatus
	SessionStart    time.Time
	SessionEnd      time.Time
	StartingCapital float64
	FinalCapital    *float64
	TotalTrades     int
	WinningTrades   int
	TotalReturn     float64
	MaxDrawdown     float64
	FailureReason   string
	CreatedAt       time.Time
	CompletedAt     time.Time
}

// Trade is the immutable record of one fill. ProfitLoss is nil for entry
// fills and set for exit fills that close a position.
type Trade struct {
	Side                 TradeSide
	Symbol               string
	Quantity             float64
	Price                float64
	Fee                  float64
	TotalValue           float64
	NetValue             float64
	PortfolioValueBefore float64
	PortfolioValueAfter  float64
	ProfitLoss           *float64
	Reason               TradeReason
	Confidence           float64
	ExecutionTime        time.Time
}

// Closed reports whether this fill realized P/L.
func (t Trade) Closed() bool {
	return t.ProfitLoss != nil
}

// Position is one open lot, owned by the risk manager from entry fill to
// exit fill. Stop-loss and take-profit levels are fixed at entry.
type Position struct {
	Symbol          string
	EntryPrice      float64
	Quantity        float64
	EntryFee        float64
	EntryTime       time.Time
	StopLossPrice   float64
	TakeProfitPrice float64
}

// TimelinePoint is one calendar day on the equity curve.
type TimelinePoint struct {
	Date           time.Time
	PortfolioValue float64
	Price          float64
	Trades         int
}

// PerformanceMetrics are derived from a finished (or partial) trade set.
// They are recomputed on demand and never mutated in place.
type PerformanceMetrics struct {
	TotalReturn      float64
	AnnualizedReturn float64
	WinRate          float64
	ProfitFactor     float64
	AvgTradeReturn   float64
	MaxDrawdown      float64
	SharpeRatio      float64
	CompletedTrades  int
}

// BacktestResult bundles everything a caller gets back from one run.
type BacktestResult struct {
	Run         *TradingRun
	Trades      []Trade
	Timeline    []TimelinePoint
	Performance PerformanceMetrics
}
