package splitquery

import (
	"context"
	"maps"
)

type Row interface {
	Get(field string) (any, error)
	ToMap() (map[string]any, error)
}

// Reader is a live, forward-only result set. It is owned by exactly one
// cursor (or by the coordinator, for split sub-readers) and released when
// that owner closes.
type Reader interface {
	Next(ctx context.Context) (bool, error)
	Row() Row
	Close() error
}

// Source executes a resolved command against the backend and returns the
// reader over its result set.
type Source interface {
	Open(ctx context.Context, cmd *CommandDescriptor) (Reader, error)
}

// MapRow is the plain map-backed Row.
type MapRow map[string]any

func (r MapRow) Get(field string) (any, error) {
	v, ok := r[field]
	if !ok {
		return nil, ErrFieldNotFoundInRow(field)
	}
	return v, nil
}

func (r MapRow) ToMap() (map[string]any, error) {
	return maps.Clone(r), nil
}
