package splitquery

import (
	"context"
	"errors"
)

type cursorState uint8

const (
	cursorNotStarted cursorState = iota
	cursorActive
	cursorExhausted
	cursorFailed
	cursorClosed
)

// Cursor is the live, single-pass pull object backing one iteration of a
// Sequence. It owns the open reader and the coordinator, and is forward
// only: there is no reset, and a failed cursor cannot be reused.
//
// A cursor built with CursorContext observes its context at every backend
// boundary (reader open, row pull, split sub-reads, retry backoff); one
// built with Cursor blocks there instead. The algorithm is the same.
type Cursor[T any] struct {
	seq     *Sequence[T]
	ctx     context.Context
	exec    *Executor
	reader  Reader
	coord   *Coordinator
	state   cursorState
	current T
}

func newCursor[T any](seq *Sequence[T], ctx context.Context) *Cursor[T] {
	return &Cursor[T]{seq: seq, ctx: ctx}
}

// Current returns the value materialized by the last successful Advance.
func (c *Cursor[T]) Current() T {
	return c.current
}

// Advance pulls the next materialized value. It returns false with a nil
// error once the result set is exhausted, keeps returning that afterwards,
// and never reopens the reader. Any failure is reported to the diagnostics
// sink and surfaced unchanged; the cursor is then spent.
func (c *Cursor[T]) Advance() (bool, error) {
	switch c.state {
	case cursorExhausted:
		return false, nil
	case cursorFailed, cursorClosed:
		return false, ErrCursorSpent
	}
	qc := c.seq.qctx
	if err := qc.enter(); err != nil {
		// A reentrant advance must not disturb the in-flight one, so no
		// state transition here.
		qc.reportFailure(c.seq.owner, err)
		return false, err
	}
	defer qc.exit()

	ok, err := c.pull()
	if err != nil {
		c.state = cursorFailed
		var zero T
		c.current = zero
		qc.reportFailure(c.seq.owner, err)
		return false, err
	}
	if !ok {
		c.state = cursorExhausted
		var zero T
		c.current = zero
		return false, nil
	}
	c.state = cursorActive
	return true, nil
}

func (c *Cursor[T]) pull() (bool, error) {
	if c.reader == nil {
		if err := c.open(); err != nil {
			return false, err
		}
	}
	ok, err := c.reader.Next(c.ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		c.coord.Slot().clear()
		return false, nil
	}

	row := c.reader.Row()
	slot := c.coord.Slot()
	slot.clear()
	qc := c.seq.qctx
	// Priming pass: establishes the row's correlation key and partial state
	// before any split loader can consume against it.
	if _, err := c.seq.shaper(qc, row, slot, c.coord); err != nil {
		return false, err
	}
	for _, load := range c.seq.loaders {
		if err := load(c.ctx, qc, c.exec, c.coord); err != nil {
			return false, err
		}
	}
	v, err := c.seq.shaper(qc, row, slot, c.coord)
	if err != nil {
		return false, err
	}
	c.current = v
	return true, nil
}

func (c *Cursor[T]) open() error {
	if c.exec == nil {
		c.exec = NewExecutor(c.seq.qctx.retries.Create())
	}
	cmd, err := c.seq.cache.Resolve(c.seq.qctx.Params())
	if err != nil {
		return err
	}
	if cmd == nil {
		return ErrNoCommand
	}
	err = c.exec.Execute(c.ctx, func(ctx context.Context) error {
		r, oerr := c.seq.source.Open(ctx, cmd)
		if oerr != nil {
			return oerr
		}
		c.reader = r
		return nil
	})
	if err != nil {
		return err
	}
	c.coord = newCoordinator(len(c.seq.loaders))
	return c.seq.qctx.initializeStates(c.seq.standalone)
}

// Close releases the reader and every split sub-reader. Safe to call more
// than once; the second call is a no-op.
func (c *Cursor[T]) Close() error {
	if c.state == cursorClosed {
		return nil
	}
	c.state = cursorClosed
	var zero T
	c.current = zero

	var errs []error
	if c.reader != nil {
		errs = append(errs, c.reader.Close())
		c.reader = nil
	}
	if c.coord != nil {
		errs = append(errs, c.coord.close())
		c.coord = nil
	}
	return errors.Join(errs...)
}
