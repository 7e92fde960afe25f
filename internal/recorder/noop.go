package recorder

import (
	"context"
	"time"

	"HorizonTrader/internal/model"
)

// NoopRecorder is used when SQLite is not configured or failed to open.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(context.Context, *model.RunRecord) error { return nil }
func (n *NoopRecorder) ActionCounts(context.Context, time.Time) (map[model.Action]int, error) {
	return map[model.Action]int{}, nil
}
func (n *NoopRecorder) Close() error { return nil }
