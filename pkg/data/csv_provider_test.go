package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVProvider_LoadData(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
1704067200000,42000.5,42500.0,41800.0,42300.25,1234.5
1704070800000,42300.25,42600.0,42100.0,42450.0,987.6
`)

	candles, err := NewCSVProvider().LoadData(path)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	first := candles[0]
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, 42000.5, first.Open)
	assert.Equal(t, 42500.0, first.High)
	assert.Equal(t, 41800.0, first.Low)
	assert.Equal(t, 42300.25, first.Close)
	assert.Equal(t, 1234.5, first.Volume)
}

func TestCSVProvider_EpochSeconds(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
1704067200,100,101,99,100.5,10
`)

	candles, err := NewCSVProvider().LoadData(path)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), candles[0].Timestamp)
}

func TestCSVProvider_DateStringTimestamps(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
2024-01-01 12:30:00,100,101,99,100.5,10
`)

	candles, err := NewCSVProvider().LoadData(path)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC), candles[0].Timestamp)
}

func TestCSVProvider_MissingFile(t *testing.T) {
	_, err := NewCSVProvider().LoadData(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestCSVProvider_InsufficientColumns(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high
1704067200000,100,101
`)

	_, err := NewCSVProvider().LoadData(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient columns")
}

func TestCSVProvider_BadNumber(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
1704067200000,not-a-number,101,99,100.5,10
`)

	_, err := NewCSVProvider().LoadData(path)
	assert.Error(t, err)
}

func TestCSVProvider_CustomFormat(t *testing.T) {
	path := writeCSV(t, `open,close,timestamp
100,100.5,1704067200000
`)

	provider := NewCSVProviderWithFormat(CSVColumnMapping{
		TimestampCol: 2,
		OpenCol:      0,
		HighCol:      0,
		LowCol:       0,
		CloseCol:     1,
		VolumeCol:    1,
		MinColumns:   3,
	})

	candles, err := provider.LoadData(path)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 100.0, candles[0].Open)
	assert.Equal(t, 100.5, candles[0].Close)
}
