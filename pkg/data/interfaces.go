// Package data loads and shapes historical candle series for the
// simulation engine.
package data

import (
	"github.com/quantlab/signal-backtester/pkg/types"
)

// Provider loads a full historical series from some backing store.
type Provider interface {
	// LoadData loads historical candles from the named source.
	LoadData(source string) ([]types.OHLCV, error)

	// GetName identifies the provider for logging.
	GetName() string
}

// Cache stores loaded series keyed by source.
type Cache interface {
	Get(key string) ([]types.OHLCV, bool)
	Set(key string, data []types.OHLCV)
	Clear()
	Size() int
}

// CSVColumnMapping defines the column positions of a CSV candle format.
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
}

// DefaultCSVFormat matches the usual exchange export layout:
// timestamp,open,high,low,close,volume with epoch-millisecond timestamps
// (a date string in DateFormat is also accepted).
var DefaultCSVFormat = CSVColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   "2006-01-02 15:04:05",
}
