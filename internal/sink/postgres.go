package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/quantlab/signal-backtester/internal/backtest"
)

// RunRecord is the gorm model of a finished TradingRun.
type RunRecord struct {
	ID              string `gorm:"primaryKey"`
	Symbol          string `gorm:"index;not null"`
	Status          string `gorm:"not null"`
	SessionStart    time.Time
	SessionEnd      time.Time
	StartingCapital float64  `gorm:"type:decimal(20,8)"`
	FinalCapital    *float64 `gorm:"type:decimal(20,8)"`
	TotalTrades     int
	WinningTrades   int
	TotalReturn     float64
	MaxDrawdown     float64
	FailureReason   string
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

func (RunRecord) TableName() string { return "trading_runs" }

// TradeRecord is the gorm model of one fill.
type TradeRecord struct {
	ID                   uint   `gorm:"primaryKey"`
	RunID                string `gorm:"index;not null"`
	Side                 string `gorm:"not null"`
	Symbol               string `gorm:"not null"`
	Quantity             float64 `gorm:"type:decimal(20,8)"`
	Price                float64 `gorm:"type:decimal(20,8)"`
	Fee                  float64 `gorm:"type:decimal(20,8)"`
	TotalValue           float64 `gorm:"type:decimal(20,8)"`
	NetValue             float64 `gorm:"type:decimal(20,8)"`
	PortfolioValueBefore float64 `gorm:"type:decimal(20,8)"`
	PortfolioValueAfter  float64 `gorm:"type:decimal(20,8)"`
	ProfitLoss           *float64 `gorm:"type:decimal(20,8)"`
	Reason               string
	Confidence           float64
	ExecutionTime        time.Time `gorm:"index"`

	Run RunRecord `gorm:"foreignKey:RunID"`
}

func (TradeRecord) TableName() string { return "trades" }

// PostgresSink persists runs to Postgres through gorm.
type PostgresSink struct {
	db *gorm.DB
}

func NewPostgresSink(dsn string) (*PostgresSink, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.AutoMigrate(&RunRecord{}, &TradeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

// Persist writes the run and its trades in one transaction.
func (s *PostgresSink) Persist(ctx context.Context, run *backtest.TradingRun, trades []backtest.Trade) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := RunRecord{
			ID:              run.ID,
			Symbol:          run.Symbol,
			Status:          string(run.Status),
			SessionStart:    run.SessionStart,
			SessionEnd:      run.SessionEnd,
			StartingCapital: run.StartingCapital,
			FinalCapital:    run.FinalCapital,
			TotalTrades:     run.TotalTrades,
			WinningTrades:   run.WinningTrades,
			TotalReturn:     run.TotalReturn,
			MaxDrawdown:     run.MaxDrawdown,
			FailureReason:   run.FailureReason,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		for _, t := range trades {
			tr := TradeRecord{
				RunID:                run.ID,
				Side:                 string(t.Side),
				Symbol:               t.Symbol,
				Quantity:             t.Quantity,
				Price:                t.Price,
				Fee:                  t.Fee,
				TotalValue:           t.TotalValue,
				NetValue:             t.NetValue,
				PortfolioValueBefore: t.PortfolioValueBefore,
				PortfolioValueAfter:  t.PortfolioValueAfter,
				ProfitLoss:           t.ProfitLoss,
				Reason:               string(t.Reason),
				Confidence:           t.Confidence,
				ExecutionTime:        t.ExecutionTime,
			}
			if err := tx.Create(&tr).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
