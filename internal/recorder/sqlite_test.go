package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"HorizonTrader/internal/model"
	"HorizonTrader/internal/tasks"
)

func TestSQLiteRecorder_RecordAndCount(t *testing.T) {
	ctx := context.Background()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"), zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	now := time.Now()
	for _, a := range []model.Action{model.ActionBuy, model.ActionHold, model.ActionHold} {
		rec := &model.RunRecord{When: model.At(now), Symbol: "ACME", Action: a, Reason: "x"}
		if a == model.ActionBuy {
			rec.Qty = model.Float(2)
			rec.EntryPrice = model.Float(10)
			rec.OrderID = "o1"
		}
		require.NoError(t, r.RecordRun(ctx, rec))
	}

	counts, err := r.ActionCounts(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.ActionBuy])
	assert.Equal(t, 2, counts[model.ActionHold])

	counts, err = r.ActionCounts(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, counts)
}

type flakyRecorder struct {
	NoopRecorder
	mu   sync.Mutex
	seen []string
	err  error
}

func (f *flakyRecorder) RecordRun(_ context.Context, rec *model.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, rec.Symbol)
	return f.err
}

func TestAsyncMirror_FailureDoesNotPropagate(t *testing.T) {
	pool := tasks.NewPool(tasks.PoolConfig{Name: "mirror", MaxWorkers: 1}, zap.NewNop())
	rec := &flakyRecorder{err: errors.New("db down")}
	m := NewAsyncMirror(rec, pool, time.Second)

	m.Mirror(model.RunRecord{Symbol: "ACME", Action: model.ActionHold})
	m.Mirror(model.RunRecord{Symbol: "BETA", Action: model.ActionHold})
	pool.Stop()

	assert.ElementsMatch(t, []string{"ACME", "BETA"}, rec.seen)
}
