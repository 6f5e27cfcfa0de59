package splitquery

import (
	"errors"
	"fmt"
)

var (
	// Cursor / guard errors
	ErrReentrantAdvance = errors.New("query context is already running an operation")
	ErrCursorSpent      = errors.New("cursor has failed or been closed and cannot be reused")
	ErrNoCommand        = errors.New("command cache resolved a nil command descriptor")

	ErrFieldNotFoundInRow   = func(field string) error { return fmt.Errorf("field %s not found in row", field) }
	ErrSplitIndexOutOfRange = func(i, n int) error { return fmt.Errorf("split query index %d out of range for %d splits", i, n) }
	ErrCannotEncodeKey      = func(v any) error { return fmt.Errorf("cannot encode correlation key from value '%v' of type %T", v, v) }
)
