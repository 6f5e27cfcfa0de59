package splitquery

import (
	"context"
	"iter"
)

// Shaper materializes one value from the current row plus coordinator state.
// It runs twice per row: a priming pass, before the split loaders, that must
// record the row's correlation key (Coordinator.SetKey) and leave partial
// state in the slot; and a finalizing pass, after the loaders, that produces
// the value. A shaper can tell the passes apart by whether the slot is still
// empty. Coordinator side effects of the priming pass must be safe to
// recompute on the finalizing pass.
type Shaper[T any] func(qc *QueryContext, row Row, slot *Slot, c *Coordinator) (T, error)

// SplitLoader loads one split sub-query's correlated rows for the current
// primary row. Loaders run inside the cursor's critical section and open
// their sub-readers through the cursor's executor; NewSplitLoader builds the
// standard one.
type SplitLoader func(ctx context.Context, qc *QueryContext, exec *Executor, c *Coordinator) error

// NewSplitLoader builds the standard loader for split sub-query i: it
// resolves the sub-command from the current parameters, opens its reader
// through the retry executor on first use, and attaches every sub-row whose
// key (per key) matches the current primary row. attach receives the scratch
// slot holding the priming pass's partial state.
func NewSplitLoader(
	i int,
	cache CommandCache,
	src Source,
	key func(Row) ([]byte, error),
	attach func(slot *Slot, row Row) error,
) SplitLoader {
	return func(ctx context.Context, qc *QueryContext, exec *Executor, c *Coordinator) error {
		open := func(ctx context.Context) (Reader, error) {
			cmd, err := cache.Resolve(qc.Params())
			if err != nil {
				return nil, err
			}
			if cmd == nil {
				return nil, ErrNoCommand
			}
			var r Reader
			err = exec.Execute(ctx, func(ctx context.Context) error {
				var oerr error
				r, oerr = src.Open(ctx, cmd)
				return oerr
			})
			if err != nil {
				return nil, err
			}
			return r, nil
		}
		return c.ConsumeCorrelated(ctx, i, open, key, func(row Row) error {
			return attach(c.Slot(), row)
		})
	}
}

// Sequence is the restartable factory for cursors over one compiled query.
// Every Cursor or All call executes the query from the beginning with its
// own reader and coordinator; cursors share only the immutable inputs and
// the query context.
type Sequence[T any] struct {
	qctx       *QueryContext
	cache      CommandCache
	source     Source
	shaper     Shaper[T]
	loaders    []SplitLoader
	standalone bool
	owner      string
}

func NewSequence[T any](
	qctx *QueryContext,
	cache CommandCache,
	source Source,
	shaper Shaper[T],
	loaders ...SplitLoader,
) *Sequence[T] {
	return &Sequence[T]{
		qctx:    qctx,
		cache:   cache,
		source:  source,
		shaper:  shaper,
		loaders: loaders,
		owner:   "splitquery.Sequence",
	}
}

// SetStandalone controls how the state manager is initialized when a cursor
// opens its reader: standalone executions track nothing beyond the query.
func (s *Sequence[T]) SetStandalone(standalone bool) {
	s.standalone = standalone
}

// SetOwner sets the label diagnostics failures are tagged with, typically
// the name of the type driving the query.
func (s *Sequence[T]) SetOwner(owner string) {
	s.owner = owner
}

// Cursor returns a fresh blocking cursor.
func (s *Sequence[T]) Cursor() *Cursor[T] {
	return s.CursorContext(context.Background())
}

// CursorContext returns a fresh cursor that observes ctx at every backend
// boundary.
func (s *Sequence[T]) CursorContext(ctx context.Context) *Cursor[T] {
	return newCursor(s, ctx)
}

// All returns the materialized values as a lazy sequence. Each iteration
// drives a fresh cursor; breaking out of the loop closes it.
func (s *Sequence[T]) All() iter.Seq2[T, error] {
	return s.AllContext(context.Background())
}

func (s *Sequence[T]) AllContext(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		cur := s.CursorContext(ctx)
		defer cur.Close()
		for {
			ok, err := cur.Advance()
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok {
				return
			}
			if !yield(cur.Current(), nil) {
				return
			}
		}
	}
}

// RenderCommand resolves the command descriptor for the current parameter
// values without executing it. Diagnostics only; it touches no reader state.
func (s *Sequence[T]) RenderCommand() (*CommandDescriptor, error) {
	return s.cache.Resolve(s.qctx.Params())
}
