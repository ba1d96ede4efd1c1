package reporting

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/quantlab/signal-backtester/internal/backtest"
)

// JSONReporter serializes a result for downstream tooling. The profit
// factor's +Inf sentinel is not representable in JSON, so it is emitted as
// the string "Infinity".
type JSONReporter struct{}

func NewJSONReporter() *JSONReporter {
	return &JSONReporter{}
}

type jsonPerformance struct {
	TotalReturn      float64     `json:"total_return"`
	AnnualizedReturn float64     `json:"annualized_return"`
	WinRate          float64     `json:"win_rate"`
	ProfitFactor     interface{} `json:"profit_factor"`
	AvgTradeReturn   float64     `json:"avg_trade_return"`
	MaxDrawdown      float64     `json:"max_drawdown"`
	SharpeRatio      float64     `json:"sharpe_ratio"`
	CompletedTrades  int         `json:"completed_trades"`
}

type jsonResult struct {
	Run         *backtest.TradingRun     `json:"run"`
	Trades      []backtest.Trade         `json:"trades"`
	Timeline    []backtest.TimelinePoint `json:"timeline"`
	Performance jsonPerformance          `json:"performance"`
}

// Format renders the result as indented JSON.
func (r *JSONReporter) Format(result *backtest.BacktestResult) ([]byte, error) {
	perf := result.Performance
	out := jsonResult{
		Run:      result.Run,
		Trades:   result.Trades,
		Timeline: result.Timeline,
		Performance: jsonPerformance{
			TotalReturn:      perf.TotalReturn,
			AnnualizedReturn: perf.AnnualizedReturn,
			WinRate:          perf.WinRate,
			ProfitFactor:     perf.ProfitFactor,
			AvgTradeReturn:   perf.AvgTradeReturn,
			MaxDrawdown:      perf.MaxDrawdown,
			SharpeRatio:      perf.SharpeRatio,
			CompletedTrades:  perf.CompletedTrades,
		},
	}
	if math.IsInf(perf.ProfitFactor, 1) {
		out.Performance.ProfitFactor = "Infinity"
	}
	return json.MarshalIndent(out, "", "  ")
}

// WriteFile writes the formatted result to path.
func (r *JSONReporter) WriteFile(result *backtest.BacktestResult, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	data, err := r.Format(result)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
