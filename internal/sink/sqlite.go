package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quantlab/signal-backtester/internal/backtest"
)

// SQLiteSink persists runs to a local SQLite file. It is the lightweight
// alternative to PostgresSink for single-machine setups.
type SQLiteSink struct {
	db *sql.DB
}

func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	s := &SQLiteSink{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trading_runs (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			status TEXT NOT NULL,
			session_start DATETIME NOT NULL,
			session_end DATETIME NOT NULL,
			starting_capital REAL NOT NULL,
			final_capital REAL,
			total_trades INTEGER NOT NULL,
			winning_trades INTEGER NOT NULL,
			total_return REAL NOT NULL,
			max_drawdown REAL NOT NULL,
			failure_reason TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol ON trading_runs(symbol);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			side TEXT NOT NULL,
			symbol TEXT NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			fee REAL NOT NULL,
			total_value REAL NOT NULL,
			net_value REAL NOT NULL,
			portfolio_value_before REAL NOT NULL,
			portfolio_value_after REAL NOT NULL,
			profit_loss REAL,
			reason TEXT NOT NULL,
			confidence REAL NOT NULL,
			execution_time DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// Persist writes the run and its trades in one transaction.
func (s *SQLiteSink) Persist(ctx context.Context, run *backtest.TradingRun, trades []backtest.Trade) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO trading_runs
		 (id, symbol, status, session_start, session_end, starting_capital, final_capital,
		  total_trades, winning_trades, total_return, max_drawdown, failure_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, string(run.Status), run.SessionStart, run.SessionEnd,
		run.StartingCapital, run.FinalCapital, run.TotalTrades, run.WinningTrades,
		run.TotalReturn, run.MaxDrawdown, run.FailureReason, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trades
		 (run_id, side, symbol, quantity, price, fee, total_value, net_value,
		  portfolio_value_before, portfolio_value_after, profit_loss, reason, confidence, execution_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range trades {
		_, err := stmt.ExecContext(ctx,
			run.ID, string(t.Side), t.Symbol, t.Quantity, t.Price, t.Fee,
			t.TotalValue, t.NetValue, t.PortfolioValueBefore, t.PortfolioValueAfter,
			t.ProfitLoss, string(t.Reason), t.Confidence, t.ExecutionTime,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
