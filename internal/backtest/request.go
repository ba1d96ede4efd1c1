package backtest

import (
	"fmt"
	"time"
)

const (
	MaxSessionDays        = 365
	MinConfidence         = 0.1
	MaxConfidence         = 1.0
	MaxStopLossPercent    = 50.0
	MaxTakeProfitPercent  = 200.0
	MinOpenPositions      = 1
	MaxOpenPositions      = 10
	DefaultCapitalCeiling = 10_000_000.0
)

// StrategyParams are the tunable knobs of the signal strategy.
type StrategyParams struct {
	StopLossPercent     float64
	TakeProfitPercent   float64
	ConfidenceThreshold float64
	MaxOpenPositions    int
	RiskPerTrade        float64
}

// BacktestRequest describes one requested simulation. It is transient:
// validated, consumed by the engine, never persisted as-is.
type BacktestRequest struct {
	Symbol          string
	Start           time.Time
	End             time.Time
	StartingCapital float64
	Interval        string
	Params          StrategyParams
}

// ValidationError names the offending request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validator checks a request for structurally and economically sane
// parameters before any simulation work starts. It has no side effects.
type Validator struct {
	clock          Clock
	capitalCeiling float64
}

func NewValidator(clock Clock, capitalCeiling float64) *Validator {
	if capitalCeiling <= 0 {
		capitalCeiling = DefaultCapitalCeiling
	}
	return &Validator{clock: clock, capitalCeiling: capitalCeiling}
}

// Validate fails fast on the first violated check.
func (v *Validator) Validate(req BacktestRequest) error {
	if req.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if req.Start.IsZero() {
		return &ValidationError{Field: "start", Reason: "must be set"}
	}
	if req.End.IsZero() {
		return &ValidationError{Field: "end", Reason: "must be set"}
	}
	if !req.Start.Before(req.End) {
		return &ValidationError{Field: "start", Reason: "must be before end"}
	}
	if req.End.After(v.clock.Now()) {
		return &ValidationError{Field: "end", Reason: "must not be in the future"}
	}
	if req.End.Sub(req.Start) > MaxSessionDays*24*time.Hour {
		return &ValidationError{
			Field:  "end",
			Reason: fmt.Sprintf("window must not exceed %d days", MaxSessionDays),
		}
	}
	if req.StartingCapital <= 0 {
		return &ValidationError{Field: "starting_capital", Reason: "must be positive"}
	}
	if req.StartingCapital > v.capitalCeiling {
		return &ValidationError{
			Field:  "starting_capital",
			Reason: fmt.Sprintf("must not exceed %.2f", v.capitalCeiling),
		}
	}
	p := req.Params
	if p.StopLossPercent < 0 || p.StopLossPercent > MaxStopLossPercent {
		return &ValidationError{
			Field:  "stop_loss_percent",
			Reason: fmt.Sprintf("must be between 0 and %.0f", MaxStopLossPercent),
		}
	}
	if p.TakeProfitPercent < 0 || p.TakeProfitPercent > MaxTakeProfitPercent {
		return &ValidationError{
			Field:  "take_profit_percent",
			Reason: fmt.Sprintf("must be between 0 and %.0f", MaxTakeProfitPercent),
		}
	}
	if p.ConfidenceThreshold < MinConfidence || p.ConfidenceThreshold > MaxConfidence {
		return &ValidationError{
			Field:  "confidence_threshold",
			Reason: fmt.Sprintf("must be between %.1f and %.1f", MinConfidence, MaxConfidence),
		}
	}
	if p.MaxOpenPositions < MinOpenPositions || p.MaxOpenPositions > MaxOpenPositions {
		return &ValidationError{
			Field:  "max_open_positions",
			Reason: fmt.Sprintf("must be between %d and %d", MinOpenPositions, MaxOpenPositions),
		}
	}
	if p.RiskPerTrade <= 0 || p.RiskPerTrade > 100 {
		return &ValidationError{
			Field:  "risk_per_trade",
			Reason: "must be between 0 (exclusive) and 100",
		}
	}
	return nil
}
