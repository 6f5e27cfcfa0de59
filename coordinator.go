package splitquery

import (
	"bytes"
	"context"
	"errors"
)

// Slot is the scratch buffer a shaper builds the current row's partial state
// in. The cursor clears it before each row so values from a previous row
// never leak into a shape that produced none.
type Slot struct {
	Value any
}

func (s *Slot) clear() {
	s.Value = nil
}

// Coordinator correlates rows across the primary reader and the split
// sub-readers that load related collections. One coordinator is created per
// successful reader open and discarded with its cursor.
//
// The primary reader and every split reader must be ordered by the same
// correlation key. The coordinator relies on that ordering but does not
// check it; when it is broken upstream, rows group incorrectly without an
// error.
type Coordinator struct {
	scratch Slot
	key     []byte
	splits  []splitState
}

type splitState struct {
	reader     Reader
	exhausted  bool
	pending    Row
	pendingKey []byte
}

func newCoordinator(nsplits int) *Coordinator {
	return &Coordinator{splits: make([]splitState, nsplits)}
}

// Slot returns the scratch slot for the current row.
func (c *Coordinator) Slot() *Slot {
	return &c.scratch
}

// SetKey records the current primary row's correlation key. The priming
// shaper pass must set it before any split loader runs.
func (c *Coordinator) SetKey(parts ...any) error {
	k, err := ToKey(parts...)
	if err != nil {
		return err
	}
	c.key = k
	return nil
}

func (c *Coordinator) Key() []byte {
	return c.key
}

// ConsumeCorrelated feeds attach every row of split sub-reader i that
// correlates with the current primary row. The sub-reader is opened once,
// via open, on first use and kept until the coordinator closes. A row whose
// key sorts after the current key belongs to a later primary row; it is
// buffered, not consumed, and delivered on a later call.
func (c *Coordinator) ConsumeCorrelated(
	ctx context.Context,
	i int,
	open func(context.Context) (Reader, error),
	key func(Row) ([]byte, error),
	attach func(Row) error,
) error {
	if i < 0 || i >= len(c.splits) {
		return ErrSplitIndexOutOfRange(i, len(c.splits))
	}
	st := &c.splits[i]
	if st.reader == nil && !st.exhausted {
		r, err := open(ctx)
		if err != nil {
			return err
		}
		st.reader = r
	}
	for {
		var row Row
		var rk []byte
		if st.pending != nil {
			row, rk = st.pending, st.pendingKey
			st.pending, st.pendingKey = nil, nil
		} else {
			if st.exhausted {
				return nil
			}
			ok, err := st.reader.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				st.exhausted = true
				return nil
			}
			row = st.reader.Row()
			rk, err = key(row)
			if err != nil {
				return err
			}
		}
		switch cmp := bytes.Compare(rk, c.key); {
		case cmp > 0:
			st.pending, st.pendingKey = row, rk
			return nil
		case cmp == 0:
			if err := attach(row); err != nil {
				return err
			}
		}
		// cmp < 0: a row for an earlier key means the ordering
		// precondition was broken upstream; skip it.
	}
}

func (c *Coordinator) close() error {
	var errs []error
	for i := range c.splits {
		st := &c.splits[i]
		if st.reader != nil {
			errs = append(errs, st.reader.Close())
			st.reader = nil
		}
		st.pending, st.pendingKey = nil, nil
	}
	return errors.Join(errs...)
}
