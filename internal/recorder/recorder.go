package recorder

import (
	"context"
	"time"

	"HorizonTrader/internal/model"
)

// Recorder persists run history for analysis (dashboards, ad-hoc SQL).
// It is a secondary copy: the JSONL run log stays authoritative.
type Recorder interface {
	RecordRun(ctx context.Context, rec *model.RunRecord) error
	// ActionCounts tallies recorded actions since the given time.
	ActionCounts(ctx context.Context, since time.Time) (map[model.Action]int, error)
	Close() error
}
