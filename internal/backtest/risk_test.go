package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPosition_ComputesExitLevels(t *testing.T) {
	rm := NewRiskManager(5, 10)

	pos := rm.OpenPosition("BTCUSDT", 100.0, 2.0, 0.5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.InDelta(t, 95.0, pos.StopLossPrice, 1e-9)
	assert.InDelta(t, 110.0, pos.TakeProfitPrice, 1e-9)
	assert.Equal(t, 1, rm.OpenCount())
}

func TestCheckExit_StopLoss(t *testing.T) {
	rm := NewRiskManager(5, 10)
	pos := rm.OpenPosition("BTCUSDT", 100.0, 1.0, 0, time.Time{})

	reason, exit := rm.CheckExit(pos, 94.0)
	require.True(t, exit)
	assert.Equal(t, ReasonStopLoss, reason)

	// Exactly at the level also exits.
	reason, exit = rm.CheckExit(pos, 95.0)
	require.True(t, exit)
	assert.Equal(t, ReasonStopLoss, reason)
}

func TestCheckExit_TakeProfit(t *testing.T) {
	rm := NewRiskManager(5, 10)
	pos := rm.OpenPosition("BTCUSDT", 100.0, 1.0, 0, time.Time{})

	reason, exit := rm.CheckExit(pos, 110.0)
	require.True(t, exit)
	assert.Equal(t, ReasonTakeProfit, reason)
}

func TestCheckExit_NoExitBetweenLevels(t *testing.T) {
	rm := NewRiskManager(5, 10)
	pos := rm.OpenPosition("BTCUSDT", 100.0, 1.0, 0, time.Time{})

	_, exit := rm.CheckExit(pos, 100.0)
	assert.False(t, exit)
	_, exit = rm.CheckExit(pos, 95.01)
	assert.False(t, exit)
	_, exit = rm.CheckExit(pos, 109.99)
	assert.False(t, exit)
}

// TestCheckExit_StopLossWinsTie: with a degenerate configuration where one
// price satisfies both levels, the stop-loss is evaluated first.
func TestCheckExit_StopLossWinsTie(t *testing.T) {
	rm := NewRiskManager(0, 0)
	pos := rm.OpenPosition("BTCUSDT", 100.0, 1.0, 0, time.Time{})

	// Both levels sit at the entry price.
	require.Equal(t, pos.StopLossPrice, pos.TakeProfitPrice)

	reason, exit := rm.CheckExit(pos, 100.0)
	require.True(t, exit)
	assert.Equal(t, ReasonStopLoss, reason)
}

func TestClosePosition_RemovesOnlyTarget(t *testing.T) {
	rm := NewRiskManager(5, 10)
	first := rm.OpenPosition("BTCUSDT", 100.0, 1.0, 0, time.Time{})
	second := rm.OpenPosition("BTCUSDT", 105.0, 1.0, 0, time.Time{})

	rm.ClosePosition(first)

	require.Equal(t, 1, rm.OpenCount())
	assert.Same(t, second, rm.OpenPositions()[0])
}

func TestStopLevels_NotTrailing(t *testing.T) {
	rm := NewRiskManager(5, 10)
	pos := rm.OpenPosition("BTCUSDT", 100.0, 1.0, 0, time.Time{})

	// Ticks do not move the levels.
	rm.CheckExit(pos, 108.0)
	rm.CheckExit(pos, 96.0)

	assert.InDelta(t, 95.0, pos.StopLossPrice, 1e-9)
	assert.InDelta(t, 110.0, pos.TakeProfitPrice, 1e-9)
}
