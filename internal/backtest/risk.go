package backtest

import "time"

// RiskManager owns open positions for the lifetime of a run. Stop-loss and
// take-profit levels are fixed at entry; they are not trailed.
type RiskManager struct {
	stopLossPercent   float64
	takeProfitPercent float64
	positions         []*Position
}

func NewRiskManager(stopLossPercent, takeProfitPercent float64) *RiskManager {
	return &RiskManager{
		stopLossPercent:   stopLossPercent,
		takeProfitPercent: takeProfitPercent,
	}
}

// OpenPosition records a new lot with its exit levels computed from the
// entry price.
func (r *RiskManager) OpenPosition(symbol string, entryPrice, quantity, entryFee float64, entryTime time.Time) *Position {
	pos := &Position{
		Symbol:          symbol,
		EntryPrice:      entryPrice,
		Quantity:        quantity,
		EntryFee:        entryFee,
		EntryTime:       entryTime,
		StopLossPrice:   entryPrice * (1 - r.stopLossPercent/100),
		TakeProfitPrice: entryPrice * (1 + r.takeProfitPercent/100),
	}
	r.positions = append(r.positions, pos)
	return pos
}

// CheckExit evaluates one position against the current price. Stop-loss is
// checked before take-profit, so a wide bar straddling both levels exits at
// the loss side.
func (r *RiskManager) CheckExit(pos *Position, price float64) (TradeReason, bool) {
	if price <= pos.StopLossPrice {
		return ReasonStopLoss, true
	}
	if price >= pos.TakeProfitPrice {
		return ReasonTakeProfit, true
	}
	return "", false
}

// ClosePosition removes a lot from the open set.
func (r *RiskManager) ClosePosition(pos *Position) {
	for i, p := range r.positions {
		if p == pos {
			r.positions = append(r.positions[:i], r.positions[i+1:]...)
			return
		}
	}
}

// OpenPositions returns the live lots in entry order.
func (r *RiskManager) OpenPositions() []*Position {
	return r.positions
}

func (r *RiskManager) OpenCount() int {
	return len(r.positions)
}
