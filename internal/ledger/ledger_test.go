package ledger

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HorizonTrader/internal/model"
)

var (
	t0      = time.Date(2024, 5, 6, 4, 2, 0, 0, time.UTC)
	maxHold = map[model.Horizon]time.Duration{
		model.HorizonShort: 72 * time.Hour,
		model.HorizonMid:   30 * 24 * time.Hour,
	}
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sq, err := NewSQLiteStore(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"file":   NewFileStore(filepath.Join(dir, "positions.json")),
		"sqlite": sq,
	}
}

func TestMerge_VolumeWeightedEntry(t *testing.T) {
	l := Ledger{}
	require.NoError(t, l.Merge("acme", model.HorizonShort, 10, 100, 0, true, t0, maxHold))
	require.NoError(t, l.Merge("ACME", model.HorizonShort, 10, 200, 0, false, t0.Add(time.Hour), maxHold))

	pos := l["ACME"]
	assert.Equal(t, 20.0, pos.Qty)
	assert.InDelta(t, 150.0, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 3000.0, pos.Notional, 1e-9)
	assert.Equal(t, model.At(t0), pos.EnteredAt, "entered_at is only set on creation")
	require.NotNil(t, pos.TimeboxUntil)
	assert.Equal(t, model.At(t0.Add(72*time.Hour)), *pos.TimeboxUntil, "timebox kept without reset")
}

func TestMerge_ResetTimebox(t *testing.T) {
	l := Ledger{}
	require.NoError(t, l.Merge("ACME", model.HorizonShort, 1, 10, 10, true, t0, maxHold))
	later := t0.Add(24 * time.Hour)
	require.NoError(t, l.Merge("ACME", model.HorizonShort, 1, 10, 10, true, later, maxHold))
	assert.Equal(t, model.At(later.Add(72*time.Hour)), *l["ACME"].TimeboxUntil)
}

func TestMerge_RejectsNonPositive(t *testing.T) {
	l := Ledger{}
	assert.Error(t, l.Merge("ACME", model.HorizonMid, 0, 10, 0, true, t0, maxHold))
	assert.Error(t, l.Merge("ACME", model.HorizonMid, 1, 0, 0, true, t0, maxHold))
	assert.Empty(t, l)
}

func TestMerge_NoMaxHoldLeavesTimeboxNull(t *testing.T) {
	l := Ledger{}
	require.NoError(t, l.Merge("ACME", model.HorizonLong, 1, 10, 10, true, t0, maxHold))
	assert.Nil(t, l["ACME"].TimeboxUntil)
}

func TestReduce_EpsilonRemoves(t *testing.T) {
	l := Ledger{}
	require.NoError(t, l.Merge("BTC/USD", model.HorizonShort, 0.5, 100, 0, true, t0, maxHold))

	l.Reduce("BTC/USD", 0.2)
	assert.InDelta(t, 0.3, l.Held("BTC/USD"), 1e-12)
	assert.InDelta(t, 30.0, l["BTC/USD"].Notional, 1e-9)

	l.Reduce("BTC/USD", 0.3-1e-13)
	_, ok := l["BTC/USD"]
	assert.False(t, ok)
}

func TestExpired(t *testing.T) {
	l := Ledger{}
	require.NoError(t, l.Merge("A", model.HorizonShort, 1, 10, 0, true, t0, maxHold))
	require.NoError(t, l.Merge("B", model.HorizonMid, 1, 10, 0, true, t0, maxHold))
	require.NoError(t, l.Merge("C", model.HorizonLong, 1, 10, 0, true, t0, maxHold))

	assert.Empty(t, l.Expired(t0.Add(71*time.Hour)))
	assert.Equal(t, []string{"A"}, l.Expired(t0.Add(72*time.Hour)))
	assert.Equal(t, []string{"A", "B"}, l.Expired(t0.Add(31*24*time.Hour)))
}

func TestStores_RoundTripAndRemoval(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			l, err := s.Read(ctx)
			require.NoError(t, err)
			assert.Empty(t, l)

			_, err = s.Update(ctx, func(l Ledger) error {
				return l.Merge("ACME", model.HorizonShort, 10, 100, 1000, true, t0, maxHold)
			})
			require.NoError(t, err)

			got, err := s.Read(ctx)
			require.NoError(t, err)
			require.Contains(t, got, "ACME")
			assert.Equal(t, 10.0, got["ACME"].Qty)
			assert.Equal(t, model.HorizonShort, got["ACME"].Horizon)
			assert.Equal(t, model.At(t0), got["ACME"].EnteredAt)

			_, err = s.Update(ctx, func(l Ledger) error {
				l.Reduce("ACME", 10-1e-13)
				return nil
			})
			require.NoError(t, err)

			got, err = s.Read(ctx)
			require.NoError(t, err)
			assert.NotContains(t, got, "ACME")
		})
	}
}

func TestStores_FailedUpdateLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Write(ctx, Ledger{"ACME": {Qty: 1, EntryPrice: 10, Notional: 10, EnteredAt: model.At(t0)}}))

			_, err := s.Update(ctx, func(l Ledger) error {
				l.Remove("ACME")
				return assert.AnError
			})
			require.ErrorIs(t, err, assert.AnError)

			got, err := s.Read(ctx)
			require.NoError(t, err)
			assert.Contains(t, got, "ACME")
		})
	}
}

func TestStores_ConcurrentUpdatesKeepEveryFill(t *testing.T) {
	const n = 24
	ctx := context.Background()

	run := func(t *testing.T, pick func(i int) Store) {
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				price := float64(i + 1)
				_, err := pick(i).Update(ctx, func(l Ledger) error {
					return l.Merge("ACME", model.HorizonShort, 1, price, price, false, t0, maxHold)
				})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := pick(0).Read(ctx)
		require.NoError(t, err)
		pos := got["ACME"]
		assert.Equal(t, float64(n), pos.Qty)
		// prices 1..n at qty 1 each
		assert.InDelta(t, float64(n+1)/2, pos.EntryPrice, 1e-9)
		assert.InDelta(t, float64(n*(n+1)/2), pos.Notional, 1e-9)
	}

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			run(t, func(int) Store { return s })
		})
	}

	t.Run("two file stores on one path", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("no advisory file locks")
		}
		path := filepath.Join(t.TempDir(), "positions.json")
		pair := []Store{NewFileStore(path), NewFileStore(path)}
		run(t, func(i int) Store { return pair[i%2] })
	})
}

func TestFileStore_WriteLeavesCallerMapAlone(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "positions.json"))
	l := Ledger{
		"ACME": {Qty: 1, EntryPrice: 10, Notional: 10, EnteredAt: model.At(t0)},
		"GONE": {Qty: 0, EntryPrice: 10, EnteredAt: model.At(t0)},
	}
	require.NoError(t, s.Write(context.Background(), l))
	assert.Contains(t, l, "GONE")

	got, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME"}, got.Symbols())
}

func TestFileStore_CorruptFailsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewFileStore(path)
	_, err := s.Read(context.Background())
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = s.Update(context.Background(), func(Ledger) error { return nil })
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStore_Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	s := NewFileStore(path)
	l := Ledger{}
	require.NoError(t, l.Merge("ACME", model.HorizonShort, 2, 50, 100, true, t0, maxHold))
	require.NoError(t, s.Write(context.Background(), l))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ACME":{"qty":2,"entry_price":50,"notional":100,"horizon":"short",
		"entered_at":"2024-05-06T04:02:00Z","timebox_until":"2024-05-09T04:02:00Z"}}`, string(raw))
}
