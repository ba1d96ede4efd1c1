package main

import (
	"flag"
	"fmt"
)

// Flags holds all command line flags for the backtest command.
type Flags struct {
	// Request
	Symbol          *string
	Start           *string
	End             *string
	StartingCapital *float64
	Interval        *string

	// Strategy parameters
	StopLossPercent     *float64
	TakeProfitPercent   *float64
	ConfidenceThreshold *float64
	MaxOpenPositions    *int
	RiskPerTrade        *float64

	// Data source
	DataSource *string // csv | bybit | binance
	DataFile   *string

	// Signal source
	ModelURL *string // empty selects the scripted demo source

	// Output
	Output     *string // console | json | excel
	OutputPath *string
	Sink       *string // none | sqlite | postgres

	// Misc
	ConfigFile  *string
	ShowVersion *bool
}

func NewFlags() *Flags {
	return &Flags{
		Symbol:          flag.String("symbol", "BTCUSDT", "Trading symbol"),
		Start:           flag.String("start", "", "Session start (YYYY-MM-DD)"),
		End:             flag.String("end", "", "Session end (YYYY-MM-DD)"),
		StartingCapital: flag.Float64("capital", 10000, "Starting capital"),
		Interval:        flag.String("interval", "1h", "Candle interval"),

		StopLossPercent:     flag.Float64("stop-loss", 5.0, "Stop-loss percent"),
		TakeProfitPercent:   flag.Float64("take-profit", 10.0, "Take-profit percent"),
		ConfidenceThreshold: flag.Float64("confidence", 0.7, "Signal confidence threshold"),
		MaxOpenPositions:    flag.Int("max-positions", 3, "Maximum concurrent open positions"),
		RiskPerTrade:        flag.Float64("risk-per-trade", 10.0, "Percent of portfolio risked per entry"),

		DataSource: flag.String("source", "csv", "Candle source: csv, bybit or binance"),
		DataFile:   flag.String("data", "", "CSV data file (required for csv source)"),

		ModelURL: flag.String("model-url", "", "Prediction service base URL (empty uses the scripted demo source)"),

		Output:     flag.String("output", "console", "Output format: console, json or excel"),
		OutputPath: flag.String("output-path", "results/backtest", "Output path prefix for json/excel"),
		Sink:       flag.String("sink", "none", "Result sink: none, sqlite or postgres"),

		ConfigFile:  flag.String("config", "config.yaml", "Configuration file"),
		ShowVersion: flag.Bool("version", false, "Print version and exit"),
	}
}

// ValidateFlags checks flag combinations before any work starts.
func ValidateFlags(f *Flags) error {
	switch *f.DataSource {
	case "csv":
		if *f.DataFile == "" {
			return fmt.Errorf("csv source requires -data")
		}
	case "bybit", "binance":
	default:
		return fmt.Errorf("unknown data source %q", *f.DataSource)
	}

	switch *f.Output {
	case "console", "json", "excel":
	default:
		return fmt.Errorf("unknown output format %q", *f.Output)
	}

	switch *f.Sink {
	case "none", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown sink %q", *f.Sink)
	}

	if *f.Start == "" || *f.End == "" {
		return fmt.Errorf("-start and -end are required")
	}
	return nil
}
