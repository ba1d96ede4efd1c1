// Package reporting renders finished backtest results to the console,
// JSON and Excel.
package reporting

import (
	"fmt"
	"math"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quantlab/signal-backtester/internal/backtest"
)

// ConsoleReporter prints a result summary as rounded tables.
type ConsoleReporter struct{}

func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// OutputResult prints the run summary and performance tables.
func (r *ConsoleReporter) OutputResult(result *backtest.BacktestResult) {
	run := result.Run
	perf := result.Performance

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("BACKTEST RESULT")
	t.SetStyle(table.StyleRounded)

	finalCapital := "n/a"
	if run.FinalCapital != nil {
		finalCapital = fmt.Sprintf("$%.2f", *run.FinalCapital)
	}

	t.AppendRows([]table.Row{
		{"🆔 Run", run.ID},
		{"📊 Symbol", run.Symbol},
		{"🚦 Status", string(run.Status)},
		{"📅 Session", fmt.Sprintf("%s → %s", run.SessionStart.Format("2006-01-02"), run.SessionEnd.Format("2006-01-02"))},
		{"💰 Starting Capital", fmt.Sprintf("$%.2f", run.StartingCapital)},
		{"💰 Final Capital", finalCapital},
	})
	if run.FailureReason != "" {
		t.AppendRow(table.Row{"❌ Failure", run.FailureReason})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, Align: text.AlignLeft},
	})
	t.Render()

	if run.Status == backtest.StatusFailed {
		fmt.Println()
		return
	}

	p := table.NewWriter()
	p.SetOutputMirror(os.Stdout)
	p.SetTitle("PERFORMANCE")
	p.SetStyle(table.StyleRounded)
	p.AppendRows([]table.Row{
		{"📈 Total Return", fmt.Sprintf("%.2f%%", perf.TotalReturn)},
		{"📈 Annualized Return", fmt.Sprintf("%.2f%%", perf.AnnualizedReturn)},
		{"✅ Win Rate", fmt.Sprintf("%.1f%%", perf.WinRate)},
		{"💹 Profit Factor", formatProfitFactor(perf.ProfitFactor)},
		{"💵 Avg Trade Return", fmt.Sprintf("$%.2f", perf.AvgTradeReturn)},
		{"📉 Max Drawdown", fmt.Sprintf("%.2f%%", perf.MaxDrawdown)},
		{"📊 Sharpe Ratio", fmt.Sprintf("%.2f", perf.SharpeRatio)},
		{"🔄 Completed Trades", fmt.Sprintf("%d", perf.CompletedTrades)},
		{"🔄 Total Fills", fmt.Sprintf("%d", len(result.Trades))},
	})
	p.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, Align: text.AlignLeft},
	})
	p.Render()
	fmt.Println()
}

// OutputComparison prints one row per finished run, for batch mode.
func (r *ConsoleReporter) OutputComparison(results []*backtest.BacktestResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("RUN COMPARISON")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Status", "Return", "Win Rate", "Max DD", "Sharpe", "Trades"})

	for _, result := range results {
		t.AppendRow(table.Row{
			result.Run.Symbol,
			string(result.Run.Status),
			fmt.Sprintf("%.2f%%", result.Performance.TotalReturn),
			fmt.Sprintf("%.1f%%", result.Performance.WinRate),
			fmt.Sprintf("%.2f%%", result.Performance.MaxDrawdown),
			fmt.Sprintf("%.2f", result.Performance.SharpeRatio),
			result.Performance.CompletedTrades,
		})
	}
	t.Render()
	fmt.Println()
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "∞ (no losses)"
	}
	return fmt.Sprintf("%.2f", pf)
}
