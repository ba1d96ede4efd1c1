package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/quantlab/signal-backtester/internal/backtest"
	"github.com/quantlab/signal-backtester/internal/config"
	"github.com/quantlab/signal-backtester/internal/exchange/binance"
	"github.com/quantlab/signal-backtester/internal/exchange/bybit"
	"github.com/quantlab/signal-backtester/internal/logger"
	"github.com/quantlab/signal-backtester/internal/signal"
	"github.com/quantlab/signal-backtester/internal/sink"
	"github.com/quantlab/signal-backtester/pkg/data"
	"github.com/quantlab/signal-backtester/pkg/reporting"
)

const (
	AppName    = "Signal Backtest"
	AppVersion = "1.2.0"
)

func main() {
	flags := NewFlags()
	flag.Parse()

	if *flags.ShowVersion {
		fmt.Printf("%s v%s\n", AppName, AppVersion)
		return
	}

	if err := ValidateFlags(flags); err != nil {
		log.Fatalf("❌ Flag validation error: %v", err)
	}

	printHeader()

	cfg, err := config.Load(*flags.ConfigFile)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("❌ Logger error: %v", err)
	}
	defer zlog.Sync()

	req, err := buildRequest(flags)
	if err != nil {
		log.Fatalf("❌ Request error: %v", err)
	}

	clock := backtest.SystemClock{}
	validator := backtest.NewValidator(clock, cfg.CapitalCeiling)
	if err := validator.Validate(req); err != nil {
		log.Fatalf("❌ Invalid request: %v", err)
	}

	candles, err := buildCandleSource(flags, cfg)
	if err != nil {
		log.Fatalf("❌ Data source error: %v", err)
	}
	signals := buildSignalSource(flags, cfg)

	engine := backtest.NewEngine(req, cfg.Fees, candles, signals, clock, zlog)
	result, err := engine.Run(context.Background())
	if err != nil {
		log.Fatalf("❌ Simulation failed: %v", err)
	}

	if err := report(flags, result); err != nil {
		log.Fatalf("❌ Report error: %v", err)
	}

	if err := persist(flags, cfg, result); err != nil {
		log.Fatalf("❌ Persist error: %v", err)
	}
}

func printHeader() {
	fmt.Printf("🎯 %s v%s\n", strings.ToUpper(AppName), AppVersion)
	fmt.Printf("%s\n\n", strings.Repeat("=", 50))
}

func buildRequest(flags *Flags) (backtest.BacktestRequest, error) {
	start, err := time.Parse(time.DateOnly, *flags.Start)
	if err != nil {
		return backtest.BacktestRequest{}, fmt.Errorf("bad -start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, *flags.End)
	if err != nil {
		return backtest.BacktestRequest{}, fmt.Errorf("bad -end: %w", err)
	}

	return backtest.BacktestRequest{
		Symbol:          *flags.Symbol,
		Start:           start,
		End:             end,
		StartingCapital: *flags.StartingCapital,
		Interval:        *flags.Interval,
		Params: backtest.StrategyParams{
			StopLossPercent:     *flags.StopLossPercent,
			TakeProfitPercent:   *flags.TakeProfitPercent,
			ConfidenceThreshold: *flags.ConfidenceThreshold,
			MaxOpenPositions:    *flags.MaxOpenPositions,
			RiskPerTrade:        *flags.RiskPerTrade,
		},
	}, nil
}

func buildCandleSource(flags *Flags, cfg *config.Config) (backtest.CandleSource, error) {
	switch *flags.DataSource {
	case "csv":
		return data.NewCSVSource(*flags.DataFile), nil
	case "bybit":
		return bybit.NewClient(bybit.Config{
			APIKey:    cfg.Exchange.BybitAPIKey,
			APISecret: cfg.Exchange.BybitAPISecret,
			Testnet:   cfg.Exchange.BybitTestnet,
		}), nil
	case "binance":
		return binance.NewClient(cfg.Exchange.BinanceAPIKey, cfg.Exchange.BinanceAPISecret), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", *flags.DataSource)
	}
}

func buildSignalSource(flags *Flags, cfg *config.Config) signal.Source {
	if *flags.ModelURL != "" {
		return signal.NewModelClient(*flags.ModelURL, time.Duration(cfg.Model.TimeoutSeconds)*time.Second)
	}
	if cfg.Model.BaseURL != "" {
		return signal.NewModelClient(cfg.Model.BaseURL, time.Duration(cfg.Model.TimeoutSeconds)*time.Second)
	}
	// Offline demo: alternate confident buys with holds.
	return signal.NewScripted(
		signal.Signal{Direction: signal.DirectionUp, Confidence: 0.9},
		signal.Signal{Direction: signal.DirectionHold},
	)
}

func report(flags *Flags, result *backtest.BacktestResult) error {
	switch *flags.Output {
	case "console":
		reporting.NewConsoleReporter().OutputResult(result)
	case "json":
		path := *flags.OutputPath + ".json"
		if err := reporting.NewJSONReporter().WriteFile(result, path); err != nil {
			return err
		}
		fmt.Printf("📄 Result written to %s\n", path)
	case "excel":
		path := *flags.OutputPath + ".xlsx"
		if err := reporting.NewExcelReporter().WriteResult(result, path); err != nil {
			return err
		}
		fmt.Printf("📄 Result written to %s\n", path)
	}
	return nil
}

func persist(flags *Flags, cfg *config.Config, result *backtest.BacktestResult) error {
	var (
		store sink.ResultSink
		err   error
	)
	switch *flags.Sink {
	case "none":
		return nil
	case "sqlite":
		path := cfg.Database.SQLitePath
		if path == "" {
			path = "backtests.db"
		}
		store, err = sink.NewSQLiteSink(path)
	case "postgres":
		store, err = sink.NewPostgresSink(cfg.Database.PostgresDSN)
	}
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Persist(context.Background(), result.Run, result.Trades); err != nil {
		return err
	}
	fmt.Printf("💾 Run %s persisted\n", result.Run.ID)
	return nil
}
