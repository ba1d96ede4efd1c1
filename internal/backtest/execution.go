package backtest

// FeeSchedule is an asymmetric exchange fee model: buys pay the taker
// rate, sells the maker rate, and the computed fee is clamped into
// [MinimumFee, MaximumFee].
type FeeSchedule struct {
	TakerPercent float64 `yaml:"taker_percent"`
	MakerPercent float64 `yaml:"maker_percent"`
	MinimumFee   float64 `yaml:"minimum_fee"`
	MaximumFee   float64 `yaml:"maximum_fee"`
}

// DefaultFeeSchedule mirrors a typical spot exchange tier.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		TakerPercent: 0.1,
		MakerPercent: 0.1,
		MinimumFee:   1.0,
		MaximumFee:   100.0,
	}
}

func (f FeeSchedule) rateFor(side TradeSide) float64 {
	if side == SideBuy {
		return f.TakerPercent
	}
	return f.MakerPercent
}

// Fee computes the clamped fee for a notional trade value.
func (f FeeSchedule) Fee(side TradeSide, totalValue float64) float64 {
	fee := totalValue * f.rateFor(side) / 100
	if fee < f.MinimumFee {
		return f.MinimumFee
	}
	if fee > f.MaximumFee {
		return f.MaximumFee
	}
	return fee
}

// TradeExecution is the computed outcome of one fill. It carries no
// side effects; the engine is responsible for applying it.
type TradeExecution struct {
	Side                 TradeSide
	Quantity             float64
	Price                float64
	TotalValue           float64
	Fee                  float64
	NetValue             float64
	PortfolioValueBefore float64
	PortfolioValueAfter  float64
}

// ExecuteTrade computes the cash effect of a fill against a fee schedule.
// Buys spend total+fee, sells receive total-fee.
func ExecuteTrade(side TradeSide, quantity, price, portfolioBefore float64, fees FeeSchedule) TradeExecution {
	total := quantity * price
	fee := fees.Fee(side, total)

	exec := TradeExecution{
		Side:                 side,
		Quantity:             quantity,
		Price:                price,
		TotalValue:           total,
		Fee:                  fee,
		PortfolioValueBefore: portfolioBefore,
	}
	if side == SideBuy {
		exec.NetValue = total + fee
		exec.PortfolioValueAfter = portfolioBefore - exec.NetValue
	} else {
		exec.NetValue = total - fee
		exec.PortfolioValueAfter = portfolioBefore + exec.NetValue
	}
	return exec
}

// ClosePnL realizes the profit of a position against its exit fill using
// single-lot matching: each position tracks exactly one entry fill, so no
// FIFO splitting is needed.
func ClosePnL(pos *Position, exit TradeExecution) float64 {
	proceeds := exit.Price*pos.Quantity - exit.Fee
	cost := pos.EntryPrice*pos.Quantity + pos.EntryFee
	return proceeds - cost
}
