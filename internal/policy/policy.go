// Package policy holds the sizing and throttle rules applied before any BUY.
package policy

import (
	"math"
	"strings"
	"time"

	"HorizonTrader/internal/model"
)

// clockSkew tolerates run records stamped slightly ahead of now.
const clockSkew = 5 * time.Second

// Limits configures a Policy.
type Limits struct {
	HorizonFraction    map[model.Horizon]float64
	MaxSharesPerSymbol float64 // <= 0 disables the cap
	BuyCooldown        time.Duration
	MaxBuysPerDay      int // <= 0 disables the limit
	Location           *time.Location
	WholeShares        bool
}

// Policy is a set of pure functions over Limits.
type Policy struct {
	limits Limits
}

func New(limits Limits) *Policy {
	if limits.Location == nil {
		limits.Location = time.UTC
	}
	return &Policy{limits: limits}
}

func (p *Policy) Limits() Limits { return p.limits }

// AllowedNotional is the headroom left under the horizon's share of equity,
// never more than available cash and never negative.
func (p *Policy) AllowedNotional(h model.Horizon, cash, equity, exposure float64) float64 {
	frac, ok := p.limits.HorizonFraction[h]
	if !ok || frac <= 0 || equity <= 0 || cash <= 0 {
		return 0
	}
	capNotional := frac * equity
	remaining := capNotional - math.Max(exposure, 0)
	allowed := math.Min(remaining, cash)
	if allowed < 0 {
		return 0
	}
	return allowed
}

// ClampByShareCap limits desired so that held+desired stays within the per-symbol cap.
func (p *Policy) ClampByShareCap(desired, held float64) float64 {
	if desired <= 0 {
		return 0
	}
	if p.limits.MaxSharesPerSymbol <= 0 {
		return desired
	}
	room := p.limits.MaxSharesPerSymbol - held
	if room <= 0 {
		return 0
	}
	return math.Min(desired, room)
}

// QtyForNotional converts notional to a quantity at price. Equities round down
// to whole shares when configured; a non-positive price yields 0.
func (p *Policy) QtyForNotional(notional, price float64, isCrypto bool) float64 {
	if price <= 0 || notional <= 0 {
		return 0
	}
	qty := notional / price
	if !isCrypto && p.limits.WholeShares {
		qty = math.Floor(qty)
	}
	return qty
}

// TooSoonSinceLastBuy reports whether a BUY for symbol happened within the cooldown.
// The boundary is inclusive.
func (p *Policy) TooSoonSinceLastBuy(symbol string, runs []model.RunRecord, now time.Time) bool {
	if p.limits.BuyCooldown <= 0 {
		return false
	}
	for _, r := range buysFor(symbol, runs) {
		when := r.When.Time
		if when.After(now.Add(clockSkew)) {
			continue
		}
		if now.Sub(when) <= p.limits.BuyCooldown {
			return true
		}
	}
	return false
}

// HitDailyBuyLimit reports whether symbol already has the maximum BUYs on now's trading day.
func (p *Policy) HitDailyBuyLimit(symbol string, runs []model.RunRecord, now time.Time) bool {
	if p.limits.MaxBuysPerDay <= 0 {
		return false
	}
	today := p.tradingDay(now)
	n := 0
	for _, r := range buysFor(symbol, runs) {
		if p.tradingDay(r.When.Time).Equal(today) {
			n++
		}
	}
	return n >= p.limits.MaxBuysPerDay
}

// tradingDay returns local midnight of t in the configured zone.
func (p *Policy) tradingDay(t time.Time) time.Time {
	y, m, d := t.In(p.limits.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.limits.Location)
}

func buysFor(symbol string, runs []model.RunRecord) []model.RunRecord {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var out []model.RunRecord
	for _, r := range runs {
		if r.Action == model.ActionBuy && strings.EqualFold(r.Symbol, symbol) {
			out = append(out, r)
		}
	}
	return out
}
