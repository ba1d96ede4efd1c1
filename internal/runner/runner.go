// Package runner schedules simulation runs. Quick runs execute
// synchronously; full runs execute as cancellable background goroutines
// that report progress through channels, so callers await completion
// instead of polling.
package runner

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/quantlab/signal-backtester/internal/backtest"
)

// ErrTooManyRuns rejects a submission that would exceed the per-user cap.
var ErrTooManyRuns = errors.New("too many concurrent runs for user")

// DefaultMaxRunsPerUser bounds concurrent full runs per user.
const DefaultMaxRunsPerUser = 3

// Progress is one progress report from a running simulation.
type Progress struct {
	Done  int
	Total int
}

// Handle tracks one background run. Progress carries periodic candle
// counts; Done delivers the result exactly once and is then closed.
type Handle struct {
	RunID    string
	Progress <-chan Progress
	Done     <-chan Outcome
	cancel   context.CancelFunc
}

// Cancel requests cooperative cancellation; the engine stops at the next
// candle and retains partial trades.
func (h *Handle) Cancel() {
	h.cancel()
}

// Outcome is the terminal report of a background run.
type Outcome struct {
	Result *backtest.BacktestResult
	Err    error
}

// Manager admits and tracks runs per user. Runs share no mutable state
// with each other; the manager only counts them.
type Manager struct {
	maxPerUser int
	log        *zap.Logger

	mu     sync.Mutex
	active map[string]int
}

func NewManager(maxPerUser int, log *zap.Logger) *Manager {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxRunsPerUser
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		maxPerUser: maxPerUser,
		log:        log,
		active:     make(map[string]int),
	}
}

// RunQuick executes a simulation synchronously and returns the complete
// result. Quick runs do not count against the user's background cap.
func (m *Manager) RunQuick(ctx context.Context, eng *backtest.Engine) (*backtest.BacktestResult, error) {
	return eng.Run(ctx)
}

// Submit starts a full run in the background. Admission is checked before
// the engine is invoked; beyond the cap the submission is rejected with
// ErrTooManyRuns.
func (m *Manager) Submit(ctx context.Context, userID string, eng *backtest.Engine) (*Handle, error) {
	m.mu.Lock()
	if m.active[userID] >= m.maxPerUser {
		m.mu.Unlock()
		return nil, ErrTooManyRuns
	}
	m.active[userID]++
	m.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	progress := make(chan Progress, 1)
	done := make(chan Outcome, 1)

	eng.SetProgressFunc(func(d, t int) {
		// Only the latest progress matters: evict a stale undrained report
		// so a slow consumer never reads an outdated one.
		select {
		case progress <- Progress{Done: d, Total: t}:
			return
		default:
		}
		select {
		case <-progress:
		default:
		}
		select {
		case progress <- Progress{Done: d, Total: t}:
		default:
		}
	})

	handle := &Handle{
		Progress: progress,
		Done:     done,
		cancel:   cancel,
	}

	go func() {
		defer cancel()
		result, err := eng.Run(runCtx)

		m.mu.Lock()
		m.active[userID]--
		if m.active[userID] <= 0 {
			delete(m.active, userID)
		}
		m.mu.Unlock()

		if result != nil && result.Run != nil {
			handle.RunID = result.Run.ID
		}
		done <- Outcome{Result: result, Err: err}
		close(done)
		close(progress)
	}()

	return handle, nil
}

// ActiveRuns reports how many background runs a user currently has.
func (m *Manager) ActiveRuns(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[userID]
}
