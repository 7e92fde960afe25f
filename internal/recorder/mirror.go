package recorder

import (
	"context"
	"fmt"
	"time"

	"HorizonTrader/internal/model"
)

// Submitter runs a named task in the background.
type Submitter interface {
	Go(name string, task func() error) error
}

// AsyncMirror feeds appended run records into a Recorder without blocking the run.
// Failures are logged by the submitter and never reach the caller.
type AsyncMirror struct {
	rec     Recorder
	pool    Submitter
	timeout time.Duration
}

func NewAsyncMirror(rec Recorder, pool Submitter, timeout time.Duration) *AsyncMirror {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncMirror{rec: rec, pool: pool, timeout: timeout}
}

func (m *AsyncMirror) Mirror(rec model.RunRecord) {
	name := fmt.Sprintf("mirror %s %s %s", rec.Symbol, rec.Action, rec.When)
	_ = m.pool.Go(name, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := m.rec.RecordRun(ctx, &rec); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		return nil
	})
}
