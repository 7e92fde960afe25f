package collector

import (
	"context"
	"math"
	"time"

	"HorizonTrader/internal/model"
)

// MockFetcher returns deterministic bars for development and testing.
// A zero Price means "no data".
type MockFetcher struct {
	Price float64
	Drift float64 // per-bar relative drift, e.g. 0.001
	Bars  map[string][]model.OHLCV
	Now   func() time.Time
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(_ context.Context, ticker string, iv Interval) ([]model.OHLCV, error) {
	if bars, ok := m.Bars[ticker+"|"+iv.Bar]; ok {
		return bars, nil
	}
	if m.Price <= 0 {
		return nil, ErrNoData
	}
	step := map[string]time.Duration{"30m": 30 * time.Minute, "1d": 24 * time.Hour, "1wk": 7 * 24 * time.Hour}[iv.Bar]
	if step == 0 {
		step = 24 * time.Hour
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	return generateMockBars(m.Price, m.Drift, 260, step, now()), nil
}

// generateMockBars ends exactly at basePrice with a gentle oscillation around the drift.
func generateMockBars(basePrice, drift float64, count int, step time.Duration, end time.Time) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		back := float64(count - 1 - i)
		p := basePrice * math.Pow(1+drift, -back) * (1 + 0.01*math.Sin(back/5))
		bars[i] = model.OHLCV{
			Time:   end.Add(-time.Duration(count-1-i) * step),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
