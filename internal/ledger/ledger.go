// Package ledger keeps the durable symbol -> open position map.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"HorizonTrader/internal/model"
)

// Epsilon is the quantity at or below which a position counts as closed.
const Epsilon = 1e-12

// ErrCorrupt is returned when persisted state cannot be decoded.
var ErrCorrupt = errors.New("ledger state is corrupt")

// Ledger maps upper-case symbols to their open position.
type Ledger map[string]model.PositionRecord

// Store persists a Ledger.
type Store interface {
	Read(ctx context.Context) (Ledger, error)
	Write(ctx context.Context, l Ledger) error
	// Update runs fn on the current ledger under the store lock and persists the result
	// only if fn returns nil.
	Update(ctx context.Context, fn func(Ledger) error) (Ledger, error)
	Close() error
}

// Clone returns a deep copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		if v.TimeboxUntil != nil {
			tb := *v.TimeboxUntil
			v.TimeboxUntil = &tb
		}
		out[k] = v
	}
	return out
}

// Held returns the open quantity for symbol, 0 if none.
func (l Ledger) Held(symbol string) float64 {
	if p, ok := l[normalize(symbol)]; ok {
		return p.Qty
	}
	return 0
}

// Exposure values the held quantity of symbol at the given market price.
func (l Ledger) Exposure(symbol string, price float64) float64 {
	return l.Held(symbol) * price
}

// Merge adds a fill to the position, volume-weighting the entry price.
// entered_at is only set on creation; timebox_until is recomputed only when resetTimebox.
func (l Ledger) Merge(symbol string, h model.Horizon, addQty, addPrice, addNotional float64,
	resetTimebox bool, now time.Time, maxHold map[model.Horizon]time.Duration) error {
	if addQty <= 0 || addPrice <= 0 {
		return fmt.Errorf("merge %s: qty %.6f and price %.6f must be positive", symbol, addQty, addPrice)
	}
	symbol = normalize(symbol)
	if addNotional <= 0 {
		addNotional = addQty * addPrice
	}

	pos, exists := l[symbol]
	if !exists || pos.Qty <= Epsilon {
		pos = model.PositionRecord{
			Horizon:   h,
			EnteredAt: model.At(now),
		}
		resetTimebox = true
	}

	newQty := pos.Qty + addQty
	pos.EntryPrice = (pos.Qty*pos.EntryPrice + addQty*addPrice) / newQty
	pos.Qty = newQty
	pos.Notional += addNotional
	if h.Valid() {
		pos.Horizon = h
	}
	if resetTimebox {
		if d, ok := maxHold[pos.Horizon]; ok && d > 0 {
			until := model.At(now.Add(d))
			pos.TimeboxUntil = &until
		} else {
			pos.TimeboxUntil = nil
		}
	}
	l[symbol] = pos
	return nil
}

// Remove deletes the position for symbol.
func (l Ledger) Remove(symbol string) {
	delete(l, normalize(symbol))
}

// Reduce takes qty off the position; anything left at or below Epsilon closes it.
func (l Ledger) Reduce(symbol string, qty float64) {
	symbol = normalize(symbol)
	pos, ok := l[symbol]
	if !ok {
		return
	}
	pos.Qty -= qty
	if pos.Qty <= Epsilon {
		delete(l, symbol)
		return
	}
	pos.Notional = pos.Qty * pos.EntryPrice
	l[symbol] = pos
}

// Expired returns symbols whose timebox has elapsed at now, sorted.
func (l Ledger) Expired(now time.Time) []string {
	var out []string
	for sym, pos := range l {
		if pos.TimeboxUntil != nil && !now.Before(pos.TimeboxUntil.Time) {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

// Symbols returns the held symbols, sorted.
func (l Ledger) Symbols() []string {
	out := make([]string, 0, len(l))
	for sym := range l {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// prune drops entries that violate qty > 0.
func (l Ledger) prune() {
	for sym, pos := range l {
		if pos.Qty <= Epsilon {
			delete(l, sym)
		}
	}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
