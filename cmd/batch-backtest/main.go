// Command batch-backtest submits several symbols as background runs
// through the run manager and prints a comparison once they all finish.
// It also exposes the Prometheus scrape endpoint while runs execute.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/quantlab/signal-backtester/internal/backtest"
	"github.com/quantlab/signal-backtester/internal/config"
	"github.com/quantlab/signal-backtester/internal/exchange/binance"
	"github.com/quantlab/signal-backtester/internal/exchange/bybit"
	"github.com/quantlab/signal-backtester/internal/logger"
	"github.com/quantlab/signal-backtester/internal/monitoring"
	"github.com/quantlab/signal-backtester/internal/runner"
	"github.com/quantlab/signal-backtester/internal/signal"
	"github.com/quantlab/signal-backtester/pkg/data"
	"github.com/quantlab/signal-backtester/pkg/reporting"
)

func main() {
	var (
		symbols     = flag.String("symbols", "BTCUSDT,ETHUSDT", "Comma-separated symbols")
		start       = flag.String("start", "", "Session start (YYYY-MM-DD)")
		end         = flag.String("end", "", "Session end (YYYY-MM-DD)")
		capital     = flag.Float64("capital", 10000, "Starting capital per run")
		interval    = flag.String("interval", "1h", "Candle interval")
		source      = flag.String("source", "bybit", "Candle source: csv, bybit or binance")
		dataDir     = flag.String("data-dir", "data", "Directory of <symbol>.csv files for csv source")
		configFile  = flag.String("config", "config.yaml", "Configuration file")
		metricsAddr = flag.String("metrics-addr", "", "Optional address for the Prometheus endpoint, e.g. :9090")

		stopLoss    = flag.Float64("stop-loss", 5.0, "Stop-loss percent")
		takeProfit  = flag.Float64("take-profit", 10.0, "Take-profit percent")
		confidence  = flag.Float64("confidence", 0.7, "Signal confidence threshold")
		maxOpen     = flag.Int("max-positions", 3, "Maximum concurrent open positions")
		riskPerTrad = flag.Float64("risk-per-trade", 10.0, "Percent of portfolio risked per entry")
	)
	flag.Parse()

	if *start == "" || *end == "" {
		log.Fatalf("❌ -start and -end are required")
	}
	from, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		log.Fatalf("❌ bad -start: %v", err)
	}
	to, err := time.Parse(time.DateOnly, *end)
	if err != nil {
		log.Fatalf("❌ bad -end: %v", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("❌ Logger error: %v", err)
	}
	defer zlog.Sync()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", monitoring.NewMetricsHandler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("⚠️  metrics endpoint stopped: %v", err)
			}
		}()
	}

	clock := backtest.SystemClock{}
	validator := backtest.NewValidator(clock, cfg.CapitalCeiling)
	manager := runner.NewManager(cfg.MaxRunsPerUser, zlog)

	var signalSource func() signal.Source
	if cfg.Model.BaseURL != "" {
		signalSource = func() signal.Source {
			return signal.NewModelClient(cfg.Model.BaseURL, time.Duration(cfg.Model.TimeoutSeconds)*time.Second)
		}
	} else {
		signalSource = func() signal.Source {
			return signal.NewScripted(
				signal.Signal{Direction: signal.DirectionUp, Confidence: 0.9},
				signal.Signal{Direction: signal.DirectionHold},
			)
		}
	}

	symbolList := strings.Split(*symbols, ",")
	handles := make(map[string]*runner.Handle, len(symbolList))
	results := make([]*backtest.BacktestResult, 0, len(symbolList))

	for _, symbol := range symbolList {
		symbol = strings.TrimSpace(symbol)
		req := backtest.BacktestRequest{
			Symbol:          symbol,
			Start:           from,
			End:             to,
			StartingCapital: *capital,
			Interval:        *interval,
			Params: backtest.StrategyParams{
				StopLossPercent:     *stopLoss,
				TakeProfitPercent:   *takeProfit,
				ConfidenceThreshold: *confidence,
				MaxOpenPositions:    *maxOpen,
				RiskPerTrade:        *riskPerTrad,
			},
		}
		if err := validator.Validate(req); err != nil {
			log.Fatalf("❌ Invalid request for %s: %v", symbol, err)
		}

		candles, err := buildCandleSource(*source, *dataDir, symbol, cfg)
		if err != nil {
			log.Fatalf("❌ Data source error for %s: %v", symbol, err)
		}

		engine := backtest.NewEngine(req, cfg.Fees, candles, signalSource(), clock, zlog)
		handle, err := manager.Submit(context.Background(), "batch", engine)
		if err != nil {
			// Over the cap: wait for a slot by draining one handle first.
			log.Printf("⏳ %s deferred: %v", symbol, err)
			if result := waitForAny(handles); result != nil {
				results = append(results, result)
			}
			handle, err = manager.Submit(context.Background(), "batch", engine)
			if err != nil {
				log.Fatalf("❌ Submit failed for %s: %v", symbol, err)
			}
		}
		fmt.Printf("🚀 %s submitted\n", symbol)
		handles[symbol] = handle
	}

	for symbol, handle := range handles {
		result := awaitRun(symbol, handle)
		if result != nil {
			results = append(results, result)
		}
	}

	reporting.NewConsoleReporter().OutputComparison(results)
}

func buildCandleSource(source, dataDir, symbol string, cfg *config.Config) (backtest.CandleSource, error) {
	switch source {
	case "csv":
		return data.NewCSVSource(fmt.Sprintf("%s/%s.csv", dataDir, symbol)), nil
	case "bybit":
		return bybit.NewClient(bybit.Config{
			APIKey:    cfg.Exchange.BybitAPIKey,
			APISecret: cfg.Exchange.BybitAPISecret,
			Testnet:   cfg.Exchange.BybitTestnet,
		}), nil
	case "binance":
		return binance.NewClient(cfg.Exchange.BinanceAPIKey, cfg.Exchange.BinanceAPISecret), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", source)
	}
}

// awaitRun drains progress updates until the run completes.
func awaitRun(symbol string, handle *runner.Handle) *backtest.BacktestResult {
	for {
		select {
		case p := <-handle.Progress:
			if p.Total > 0 {
				fmt.Printf("  %s: %d/%d candles\n", symbol, p.Done, p.Total)
			}
		case outcome := <-handle.Done:
			if outcome.Err != nil {
				log.Printf("❌ %s failed: %v", symbol, outcome.Err)
				return outcome.Result
			}
			fmt.Printf("✅ %s finished\n", symbol)
			return outcome.Result
		}
	}
}

func waitForAny(handles map[string]*runner.Handle) *backtest.BacktestResult {
	for symbol, handle := range handles {
		outcome := <-handle.Done
		if outcome.Err != nil {
			log.Printf("❌ %s failed: %v", symbol, outcome.Err)
		}
		delete(handles, symbol)
		return outcome.Result
	}
	return nil
}
