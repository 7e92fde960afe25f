package runlog

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HorizonTrader/internal/model"
)

type captureMirror struct {
	mu   sync.Mutex
	recs []model.RunRecord
}

func (c *captureMirror) Mirror(rec model.RunRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
}

func record(symbol string, action model.Action, when time.Time) model.RunRecord {
	return model.RunRecord{
		When:     model.At(when),
		Symbol:   symbol,
		Trigger:  model.TriggerBarClose,
		Decision: model.Decision{Action: model.SignalHold},
		Action:   action,
		Reason:   "votes: none\nfinal: HOLD conf=0.00 horizon=-",
	}
}

func TestAppendAndRead(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "auto_runs.jsonl")
	m := &captureMirror{}
	l := New(path, WithMirror(m))

	t0 := time.Date(2024, 5, 6, 4, 2, 0, 0, time.UTC)
	require.NoError(t, l.Append(ctx, record("ACME", model.ActionHold, t0)))
	buy := record("ACME", model.ActionBuy, t0.Add(30*time.Minute))
	buy.Qty = model.Float(3)
	buy.EntryPrice = model.Float(101.5)
	buy.OrderID = "ord-1"
	require.NoError(t, l.Append(ctx, buy))
	require.NoError(t, l.Append(ctx, record("OTHER", model.ActionSellNoPosition, t0.Add(time.Hour))))

	all, err := l.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.ActionBuy, all[1].Action)
	require.NotNil(t, all[1].Qty)
	assert.Equal(t, 3.0, *all[1].Qty)
	assert.Equal(t, "ord-1", all[1].OrderID)

	acme, err := l.ForSymbol(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	recent, err := l.Recent(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "OTHER", recent[0].Symbol)

	assert.Len(t, m.recs, 3)
}

func TestReadSkipsCorruptLines(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auto_runs.jsonl")
	l := New(path)
	require.NoError(t, l.Append(ctx, record("ACME", model.ActionHold, time.Now())))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{truncated\n\n{\"symbol\":\"X\"}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, l.Append(ctx, record("ACME", model.ActionHold, time.Now())))

	recs, err := l.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestForSymbolFailsOnCorruptLineForSymbol(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auto_runs.jsonl")
	l := New(path)
	require.NoError(t, l.Append(ctx, record("ACME", model.ActionHold, time.Now())))
	require.NoError(t, l.Append(ctx, record("MSFT", model.ActionHold, time.Now())))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"when":"2025-03-04T10:00:00Z","symbol":"acme","action":"BU` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = l.ForSymbol(ctx, "ACME")
	require.ErrorIs(t, err, ErrCorrupt)

	recs, err := l.ForSymbol(ctx, "MSFT")
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = l.Recent(ctx, "ACME", 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestReadMissingFileIsEmpty(t *testing.T) {
	recs, err := New(filepath.Join(t.TempDir(), "none.jsonl")).ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestConcurrentAppendsStayLineAtomic(t *testing.T) {
	ctx := context.Background()
	l := New(filepath.Join(t.TempDir(), "auto_runs.jsonl"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Append(ctx, record("ACME", model.ActionHold, time.Now())))
		}()
	}
	wg.Wait()

	recs, err := l.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 20)
}

func TestRecordLayout(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auto_runs.jsonl")
	l := New(path)
	rec := record("ACME", model.ActionSuggestBuy, time.Date(2024, 5, 6, 4, 2, 9, 500, time.UTC))
	rec.Decision = model.Decision{Action: model.SignalBuy, Confidence: 0.75, TargetHorizon: model.HorizonMid}
	rec.Reason = "caps"
	require.NoError(t, l.Append(ctx, rec))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"when":"2024-05-06T04:02:09Z","symbol":"ACME","trigger":"bar_close_30m",
		"decision":{"action":"BUY","confidence":0.75,"target_horizon":"mid"},
		"action":"SUGGEST_BUY","reason":"caps"}`, string(raw))
}
