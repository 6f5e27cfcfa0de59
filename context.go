package splitquery

import (
	"maps"
	"sync/atomic"

	"github.com/google/uuid"
)

// StateManager prepares the identity/change-tracking scope for one
// execution. Standalone executions track nothing beyond the current query;
// non-standalone executions attach results to the caller's ambient tracker.
type StateManager interface {
	Initialize(standalone bool) error
}

// QueryContext is the state shared by one logical query execution: current
// parameter values, the tracking and retry capabilities, and the reentrancy
// marker. A cursor borrows it for its lifetime; it must not be driven by
// more than one in-flight advance at a time.
type QueryContext struct {
	id      uuid.UUID
	params  map[string]any
	states  StateManager
	retries RetryPolicyFactory
	diag    Diagnostics
	busy    atomic.Bool
}

func NewQueryContext(states StateManager, retries RetryPolicyFactory, diag Diagnostics) *QueryContext {
	if retries == nil {
		retries = PolicyFactoryFunc(func() RetryPolicy { return NoRetry{} })
	}
	if diag == nil {
		diag = NewSlogDiagnostics(nil)
	}
	return &QueryContext{
		id:      uuid.New(),
		params:  make(map[string]any),
		states:  states,
		retries: retries,
		diag:    diag,
	}
}

func (qc *QueryContext) ID() uuid.UUID {
	return qc.id
}

func (qc *QueryContext) SetParam(name string, value any) {
	qc.params[name] = value
}

func (qc *QueryContext) Param(name string) (any, bool) {
	v, ok := qc.params[name]
	return v, ok
}

// Params returns a snapshot of the current parameter values. Resolvers get
// the clone so a pure Resolve cannot alias live context state.
func (qc *QueryContext) Params() map[string]any {
	return maps.Clone(qc.params)
}

// enter opens the context's single critical section. It fails fast instead
// of blocking: an outstanding section means a reentrant advance, which is
// caller misuse, not contention.
func (qc *QueryContext) enter() error {
	if !qc.busy.CompareAndSwap(false, true) {
		return ErrReentrantAdvance
	}
	return nil
}

func (qc *QueryContext) exit() {
	qc.busy.Store(false)
}

func (qc *QueryContext) initializeStates(standalone bool) error {
	if qc.states == nil {
		return nil
	}
	return qc.states.Initialize(standalone)
}

// reportFailure notifies the diagnostics sink before an error propagates.
// The sink is best-effort; a panicking sink must not mask the original
// failure.
func (qc *QueryContext) reportFailure(owner string, err error) {
	defer func() {
		_ = recover()
	}()
	qc.diag.IterationFailed(qc.id, owner, err)
}
