package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"HorizonTrader/internal/model"
)

func newPolicy() *Policy {
	ist, _ := time.LoadLocation("Asia/Kolkata")
	return New(Limits{
		HorizonFraction: map[model.Horizon]float64{
			model.HorizonShort: 0.05,
			model.HorizonMid:   0.10,
			model.HorizonLong:  0.15,
		},
		MaxSharesPerSymbol: 50,
		BuyCooldown:        60 * time.Minute,
		MaxBuysPerDay:      2,
		Location:           ist,
		WholeShares:        true,
	})
}

func buy(symbol string, when time.Time) model.RunRecord {
	return model.RunRecord{When: model.At(when), Symbol: symbol, Action: model.ActionBuy}
}

func TestAllowedNotional(t *testing.T) {
	p := newPolicy()
	tests := []struct {
		name                   string
		h                      model.Horizon
		cash, equity, exposure float64
		want                   float64
	}{
		{"mid cap", model.HorizonMid, 100000, 100000, 0, 10000},
		{"exposure reduces headroom", model.HorizonMid, 100000, 100000, 4000, 6000},
		{"clamped to cash", model.HorizonLong, 2000, 100000, 0, 2000},
		{"over cap", model.HorizonShort, 100000, 100000, 6000, 0},
		{"no cash", model.HorizonLong, 0, 100000, 0, 0},
		{"no equity", model.HorizonLong, 1000, 0, 0, 0},
		{"null horizon", model.HorizonNone, 1000, 1000, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.AllowedNotional(tt.h, tt.cash, tt.equity, tt.exposure)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.LessOrEqual(t, got, p.Limits().HorizonFraction[tt.h]*tt.equity+1e-9)
		})
	}
}

func TestClampByShareCap(t *testing.T) {
	p := newPolicy()
	assert.Equal(t, 10.0, p.ClampByShareCap(10, 0))
	assert.Equal(t, 5.0, p.ClampByShareCap(10, 45))
	assert.Equal(t, 0.0, p.ClampByShareCap(10, 50))
	assert.Equal(t, 0.0, p.ClampByShareCap(-1, 0))

	uncapped := New(Limits{})
	assert.Equal(t, 1e6, uncapped.ClampByShareCap(1e6, 1e6))
}

func TestQtyForNotional(t *testing.T) {
	p := newPolicy()
	assert.Equal(t, 3.0, p.QtyForNotional(1000, 300, false))
	assert.InDelta(t, 1000.0/300.0, p.QtyForNotional(1000, 300, true), 1e-12)
	assert.Equal(t, 0.0, p.QtyForNotional(1000, 0, false))
	assert.Equal(t, 0.0, p.QtyForNotional(1000, -1, true))
}

func TestTooSoonSinceLastBuy_Boundary(t *testing.T) {
	p := newPolicy()
	last := time.Date(2024, 5, 6, 4, 2, 0, 0, time.UTC)
	runs := []model.RunRecord{
		buy("ACME", last),
		{When: model.At(last.Add(30 * time.Minute)), Symbol: "ACME", Action: model.ActionSuggestBuy},
		buy("OTHER", last.Add(50*time.Minute)),
	}

	assert.True(t, p.TooSoonSinceLastBuy("acme", runs, last.Add(30*time.Minute)))
	assert.True(t, p.TooSoonSinceLastBuy("ACME", runs, last.Add(60*time.Minute)))
	assert.False(t, p.TooSoonSinceLastBuy("ACME", runs, last.Add(60*time.Minute+time.Second)))
	assert.False(t, p.TooSoonSinceLastBuy("NEW", runs, last))
}

func TestHitDailyBuyLimit_UsesTradingDayZone(t *testing.T) {
	p := newPolicy()
	// 2024-05-06 in IST spans 2024-05-05T18:30Z .. 2024-05-06T18:30Z
	runs := []model.RunRecord{
		buy("ACME", time.Date(2024, 5, 5, 19, 0, 0, 0, time.UTC)),
		buy("ACME", time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)),
		buy("ACME", time.Date(2024, 5, 5, 17, 0, 0, 0, time.UTC)), // previous IST day
	}
	assert.True(t, p.HitDailyBuyLimit("ACME", runs, time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)))
	assert.False(t, p.HitDailyBuyLimit("ACME", runs, time.Date(2024, 5, 6, 19, 0, 0, 0, time.UTC)))
	assert.False(t, p.HitDailyBuyLimit("OTHER", runs, time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)))

	unlimited := New(Limits{})
	assert.False(t, unlimited.HitDailyBuyLimit("ACME", runs, time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)))
}
