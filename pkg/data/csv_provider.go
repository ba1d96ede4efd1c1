package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/quantlab/signal-backtester/pkg/types"
)

// CSVProvider loads historical candles from CSV files.
type CSVProvider struct {
	format CSVColumnMapping
}

func NewCSVProvider() *CSVProvider {
	return &CSVProvider{format: DefaultCSVFormat}
}

func NewCSVProviderWithFormat(format CSVColumnMapping) *CSVProvider {
	return &CSVProvider{format: format}
}

func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// LoadData reads the whole file, skipping the header row.
func (p *CSVProvider) LoadData(source string) ([]types.OHLCV, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file %s: %w", source, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var candles []types.OHLCV
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV at line %d: %w", line, err)
		}
		line++

		if len(record) < p.format.MinColumns {
			return nil, fmt.Errorf("insufficient columns at line %d (expected %d, got %d)",
				line, p.format.MinColumns, len(record))
		}

		candle, err := p.parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("bad record at line %d: %w", line, err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

func (p *CSVProvider) parseRecord(record []string) (types.OHLCV, error) {
	ts, err := p.parseTimestamp(record[p.format.TimestampCol])
	if err != nil {
		return types.OHLCV{}, err
	}

	fields := [5]float64{}
	for i, col := range [5]int{p.format.OpenCol, p.format.HighCol, p.format.LowCol, p.format.CloseCol, p.format.VolumeCol} {
		v, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			return types.OHLCV{}, fmt.Errorf("column %d: %w", col, err)
		}
		fields[i] = v
	}

	return types.OHLCV{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

// parseTimestamp accepts epoch milliseconds, epoch seconds, or the
// configured date layout.
func (p *CSVProvider) parseTimestamp(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ms > 1e12 {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Unix(ms, 0).UTC(), nil
	}
	if p.format.DateFormat != "" {
		if t, err := time.Parse(p.format.DateFormat, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}
