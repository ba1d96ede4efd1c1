package reporting

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/quantlab/signal-backtester/internal/backtest"
)

func excelResult() *backtest.BacktestResult {
	final := 10985.0
	pnl := 10.0
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &backtest.BacktestResult{
		Run: &backtest.TradingRun{
			ID:              "run-1",
			Symbol:          "BTCUSDT",
			Status:          backtest.StatusCompleted,
			SessionStart:    day,
			SessionEnd:      day.AddDate(0, 0, 1),
			StartingCapital: 10000,
			FinalCapital:    &final,
		},
		Trades: []backtest.Trade{
			{
				Side: backtest.SideBuy, Symbol: "BTCUSDT", Quantity: 10, Price: 100,
				Fee: 1, TotalValue: 1000, NetValue: 1001,
				PortfolioValueBefore: 10000, PortfolioValueAfter: 8999,
				Reason: backtest.ReasonAISignal, Confidence: 0.9,
				ExecutionTime: day.Add(2 * time.Hour),
			},
			{
				Side: backtest.SideSell, Symbol: "BTCUSDT", Quantity: 10, Price: 101,
				Fee: 1, TotalValue: 1010, NetValue: 1009,
				PortfolioValueBefore: 8999, PortfolioValueAfter: 10008,
				ProfitLoss: &pnl, Reason: backtest.ReasonTakeProfit,
				ExecutionTime: day.Add(5 * time.Hour),
			},
		},
		Timeline: []backtest.TimelinePoint{
			{Date: day, PortfolioValue: 10008, Price: 101, Trades: 2},
			{Date: day.AddDate(0, 0, 1), PortfolioValue: 10008, Price: 101, Trades: 0},
		},
		Performance: backtest.PerformanceMetrics{TotalReturn: 9.85, WinRate: 100, ProfitFactor: 2},
	}
}

func TestExcelReporter_WriteResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.xlsx")

	require.NoError(t, NewExcelReporter().WriteResult(excelResult(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.ElementsMatch(t, []string{"Trades", "Timeline", "Summary"}, fx.GetSheetList())

	side, err := fx.GetCellValue("Trades", "B2")
	require.NoError(t, err)
	assert.Equal(t, "buy", side)

	reason, err := fx.GetCellValue("Trades", "C3")
	require.NoError(t, err)
	assert.Equal(t, "take_profit", reason)

	symbol, err := fx.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", symbol)
}

// TestExcelReporter_ColumnStyles checks the money and date formats are
// actually bound to their columns.
func TestExcelReporter_ColumnStyles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.xlsx")

	require.NoError(t, NewExcelReporter().WriteResult(excelResult(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	for _, tc := range []struct {
		sheet string
		col   string
	}{
		{"Trades", "A"},
		{"Trades", "E"},
		{"Timeline", "A"},
		{"Timeline", "B"},
	} {
		styleID, err := fx.GetColStyle(tc.sheet, tc.col)
		require.NoError(t, err)
		assert.NotZero(t, styleID, "%s column %s", tc.sheet, tc.col)
	}
}
