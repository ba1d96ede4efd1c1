package data

import (
	"context"
	"fmt"
	"time"

	"github.com/quantlab/signal-backtester/pkg/types"
)

// HistoricalSource adapts a file-backed Provider to the engine's candle
// source contract: load once (cached), sort, validate, then slice the
// requested window. The interval argument is ignored; the file's native
// granularity is used.
type HistoricalSource struct {
	provider Provider
	file     string
}

func NewHistoricalSource(provider Provider, file string) *HistoricalSource {
	return &HistoricalSource{provider: provider, file: file}
}

// NewCSVSource is the common construction: cached CSV file source.
func NewCSVSource(file string) *HistoricalSource {
	return NewHistoricalSource(NewCachedProvider(NewCSVProvider()), file)
}

func (s *HistoricalSource) GetCandles(_ context.Context, _ string, from, to time.Time, _ string) ([]types.OHLCV, error) {
	series, err := s.provider.LoadData(s.file)
	if err != nil {
		return nil, err
	}

	series = SortByTimestamp(series)
	if err := ValidateTimeSequence(series); err != nil {
		return nil, fmt.Errorf("corrupt candle series in %s: %w", s.file, err)
	}

	return FilterByDateRange(series, from, to), nil
}
