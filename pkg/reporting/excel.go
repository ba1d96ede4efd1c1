package reporting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/quantlab/signal-backtester/internal/backtest"
)

// ExcelReporter writes a workbook with Trades, Timeline and Summary sheets.
type ExcelReporter struct{}

func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

type excelStyles struct {
	header int
	money  int
	date   int
}

// WriteResult writes the full result workbook to path.
func (r *ExcelReporter) WriteResult(result *backtest.BacktestResult, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const timelineSheet = "Timeline"
	const summarySheet = "Summary"

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	if _, err := fx.NewSheet(timelineSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return err
	}

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeTradesSheet(fx, tradesSheet, result, styles); err != nil {
		return err
	}
	if err := r.writeTimelineSheet(fx, timelineSheet, result, styles); err != nil {
		return err
	}
	if err := r.writeSummarySheet(fx, summarySheet, result, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F5496"}, Pattern: 1},
	})
	if err != nil {
		return styles, err
	}

	styles.money, err = fx.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return styles, err
	}

	styles.date, err = fx.NewStyle(&excelize.Style{CustomNumFmt: strPtr("yyyy-mm-dd hh:mm")})
	return styles, err
}

func (r *ExcelReporter) writeTradesSheet(fx *excelize.File, sheet string, result *backtest.BacktestResult, styles excelStyles) error {
	headers := []interface{}{"Time", "Side", "Reason", "Quantity", "Price", "Total", "Fee", "Net", "Portfolio After", "P/L", "Confidence"}
	if err := fx.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	for i, t := range result.Trades {
		pnl := interface{}(nil)
		if t.ProfitLoss != nil {
			pnl = *t.ProfitLoss
		}
		row := []interface{}{
			t.ExecutionTime,
			string(t.Side),
			string(t.Reason),
			t.Quantity,
			t.Price,
			t.TotalValue,
			t.Fee,
			t.NetValue,
			t.PortfolioValueAfter,
			pnl,
			t.Confidence,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if err := fx.SetColStyle(sheet, "A", styles.date); err != nil {
		return err
	}
	if err := fx.SetColStyle(sheet, "E:J", styles.money); err != nil {
		return err
	}
	// Row style wins over column style for the header cells.
	return fx.SetRowStyle(sheet, 1, 1, styles.header)
}

func (r *ExcelReporter) writeTimelineSheet(fx *excelize.File, sheet string, result *backtest.BacktestResult, styles excelStyles) error {
	headers := []interface{}{"Date", "Portfolio Value", "Price", "Trades"}
	if err := fx.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	for i, p := range result.Timeline {
		row := []interface{}{
			p.Date,
			p.PortfolioValue,
			p.Price,
			p.Trades,
		}
		if err := fx.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}

	if err := fx.SetColStyle(sheet, "A", styles.date); err != nil {
		return err
	}
	if err := fx.SetColStyle(sheet, "B:C", styles.money); err != nil {
		return err
	}
	return fx.SetRowStyle(sheet, 1, 1, styles.header)
}

func (r *ExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, result *backtest.BacktestResult, styles excelStyles) error {
	run := result.Run
	perf := result.Performance

	finalCapital := interface{}(nil)
	if run.FinalCapital != nil {
		finalCapital = *run.FinalCapital
	}
	profitFactor := interface{}(perf.ProfitFactor)
	if math.IsInf(perf.ProfitFactor, 1) {
		profitFactor = "Infinity"
	}

	rows := [][]interface{}{
		{"Run ID", run.ID},
		{"Symbol", run.Symbol},
		{"Status", string(run.Status)},
		{"Session Start", run.SessionStart.Format("2006-01-02")},
		{"Session End", run.SessionEnd.Format("2006-01-02")},
		{"Starting Capital", run.StartingCapital},
		{"Final Capital", finalCapital},
		{"Total Return %", perf.TotalReturn},
		{"Annualized Return %", perf.AnnualizedReturn},
		{"Win Rate %", perf.WinRate},
		{"Profit Factor", profitFactor},
		{"Avg Trade Return", perf.AvgTradeReturn},
		{"Max Drawdown %", perf.MaxDrawdown},
		{"Sharpe Ratio", perf.SharpeRatio},
		{"Completed Trades", perf.CompletedTrades},
	}
	for i, row := range rows {
		if err := fx.SetSheetRow(sheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }
