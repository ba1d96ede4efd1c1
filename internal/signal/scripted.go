package signal

import (
	"context"

	"github.com/quantlab/signal-backtester/pkg/types"
)

// Scripted is the deterministic Source double. It replays a fixed sequence
// of signals, then keeps returning the last one (or hold when empty).
// It backs tests and offline demo runs.
type Scripted struct {
	signals []Signal
	idx     int
}

func NewScripted(signals ...Signal) *Scripted {
	return &Scripted{signals: signals}
}

// Hold is a convenience scripted source that never trades.
func Hold() *Scripted {
	return NewScripted(Signal{Direction: DirectionHold})
}

func (s *Scripted) Predict(_ context.Context, _ string, _ []types.OHLCV) (Signal, error) {
	if len(s.signals) == 0 {
		return Signal{Direction: DirectionHold}, nil
	}
	sig := s.signals[s.idx]
	if s.idx < len(s.signals)-1 {
		s.idx++
	}
	return sig, nil
}
