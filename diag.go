package splitquery

import (
	"log/slog"

	"github.com/google/uuid"
)

// Diagnostics receives failure notifications before the error propagates to
// the caller. Fire-and-forget: implementations must not assume the error is
// handled for them.
type Diagnostics interface {
	IterationFailed(contextID uuid.UUID, owner string, err error)
}

type slogDiagnostics struct {
	log *slog.Logger
}

// NewSlogDiagnostics reports failures through a slog logger. A nil logger
// means slog.Default.
func NewSlogDiagnostics(log *slog.Logger) Diagnostics {
	if log == nil {
		log = slog.Default()
	}
	return &slogDiagnostics{log: log}
}

func (d *slogDiagnostics) IterationFailed(contextID uuid.UUID, owner string, err error) {
	d.log.Error("query iteration failed",
		"context", contextID.String(),
		"owner", owner,
		"error", err,
	)
}
