package boltsource

import (
	"errors"
	"fmt"
)

var (
	ErrReaderClosed     = errors.New("reader is closed")
	ErrRelationNotFound = func(relation string) error { return fmt.Errorf("relation %s not found", relation) }
)
