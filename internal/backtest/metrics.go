package backtest

import (
	"math"
)

// stdDevFloor guards the Sharpe ratio against effectively-zero variance.
const stdDevFloor = 1e-10

// ComputeMetrics derives performance analytics from a finished (or partial)
// run. Degenerate inputs are not errors: empty trade sets, zero losses and
// zero variance all map to documented sentinel values, and recomputing over
// the same input is idempotent.
func ComputeMetrics(run *TradingRun, trades []Trade) PerformanceMetrics {
	var m PerformanceMetrics

	if run.FinalCapital != nil && run.StartingCapital > 0 {
		m.TotalReturn = (*run.FinalCapital - run.StartingCapital) / run.StartingCapital * 100
	}

	// Simple linear scaling, not compounding: short windows can produce very
	// large magnitudes, which is the documented behavior.
	days := run.SessionEnd.Sub(run.SessionStart).Hours() / 24
	if days <= 0 {
		days = 1
	}
	m.AnnualizedReturn = m.TotalReturn * (365 / days)

	var (
		completed    int
		wins         int
		totalProfits float64
		totalLosses  float64
		sumPnL       float64
		returns      []float64
	)
	for _, t := range trades {
		if !t.Closed() {
			continue
		}
		completed++
		pnl := *t.ProfitLoss
		sumPnL += pnl
		if pnl > 0 {
			wins++
			totalProfits += pnl
		} else {
			totalLosses += math.Abs(pnl)
		}
		if t.PortfolioValueBefore > 0 {
			returns = append(returns, pnl/t.PortfolioValueBefore)
		}
	}
	m.CompletedTrades = completed

	if completed > 0 {
		m.WinRate = float64(wins) / float64(completed) * 100
		m.AvgTradeReturn = sumPnL / float64(completed)
	}

	if totalLosses == 0 {
		if totalProfits > 0 {
			m.ProfitFactor = math.Inf(1)
		}
	} else {
		m.ProfitFactor = totalProfits / totalLosses
	}

	m.MaxDrawdown = MaxDrawdownFromCurve(equityCurve(run, trades)) * 100
	m.SharpeRatio = sharpe(returns)

	return m
}

// equityCurve is the portfolio value ledger: starting capital followed by
// the value after each fill.
func equityCurve(run *TradingRun, trades []Trade) []float64 {
	curve := make([]float64, 0, len(trades)+1)
	curve = append(curve, run.StartingCapital)
	for _, t := range trades {
		curve = append(curve, t.PortfolioValueAfter)
	}
	return curve
}

// MaxDrawdownFromCurve returns the largest peak-to-trough decline of the
// curve as a fraction of the peak, 0 when the curve never declines.
func MaxDrawdownFromCurve(curve []float64) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - v) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpe is mean over standard deviation of the per-trade return series,
// with 0 on zero variance so the result stays finite.
func sharpe(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	stdDev := math.Sqrt(variance)

	if stdDev < stdDevFloor {
		return 0
	}
	return mean / stdDev
}
