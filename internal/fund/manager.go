package fund

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"HorizonTrader/internal/model"
)

// dust is the quantity at or below which a paper holding is dropped.
var dust = decimal.New(1, -12)

// Manager is the paper account: cash plus holdings, persisted after every change.
type Manager struct {
	mu       sync.Mutex
	cash     decimal.Decimal
	start    decimal.Decimal
	holdings map[string]holding
	filePath string
}

type holding struct {
	qty      decimal.Decimal
	avgPrice decimal.Decimal
}

// Position is a read-only view of a paper holding.
type Position struct {
	Symbol   string
	Qty      float64
	AvgPrice float64
}

// NewManager loads the account at filePath or seeds a fresh one with startingEquity in cash.
func NewManager(filePath string, startingEquity float64) (*Manager, error) {
	state, err := LoadState(filePath)
	if err != nil {
		return nil, err
	}

	m := &Manager{filePath: filePath, holdings: map[string]holding{}}
	if state == nil {
		m.start = decimal.NewFromFloat(startingEquity)
		m.cash = m.start
		if err := m.save(); err != nil {
			return nil, err
		}
		return m, nil
	}

	if m.start, err = decimal.NewFromString(state.StartingEquity); err != nil {
		return nil, fmt.Errorf("paper account starting_equity: %w", err)
	}
	if m.cash, err = decimal.NewFromString(state.Cash); err != nil {
		return nil, fmt.Errorf("paper account cash: %w", err)
	}
	for sym, h := range state.Holdings {
		qty, err := decimal.NewFromString(h.Qty)
		if err != nil {
			return nil, fmt.Errorf("paper holding %s qty: %w", sym, err)
		}
		avg, err := decimal.NewFromString(h.AvgPrice)
		if err != nil {
			return nil, fmt.Errorf("paper holding %s avg_price: %w", sym, err)
		}
		m.holdings[sym] = holding{qty: qty, avgPrice: avg}
	}
	return m, nil
}

// Cash returns available cash.
func (m *Manager) Cash() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cash.InexactFloat64()
}

// Positions returns the holdings sorted by symbol.
func (m *Manager) Positions() []Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Position, 0, len(m.holdings))
	for sym, h := range m.holdings {
		out = append(out, Position{Symbol: sym, Qty: h.qty.InexactFloat64(), AvgPrice: h.avgPrice.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Qty returns the held quantity of symbol.
func (m *Manager) Qty(symbol string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holdings[key(symbol)].qty.InexactFloat64()
}

// Buy debits qty*price from cash and adds to the holding.
func (m *Manager) Buy(symbol string, qty, price float64) error {
	if qty <= 0 || price <= 0 {
		return fmt.Errorf("paper buy %s: qty and price must be positive", symbol)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	q := decimal.NewFromFloat(qty)
	p := decimal.NewFromFloat(price)
	cost := q.Mul(p)
	if cost.GreaterThan(m.cash) {
		return fmt.Errorf("paper buy %s: insufficient cash %s for %s", symbol, m.cash.StringFixed(2), cost.StringFixed(2))
	}

	sym := key(symbol)
	h := m.holdings[sym]
	newQty := h.qty.Add(q)
	h.avgPrice = h.qty.Mul(h.avgPrice).Add(cost).Div(newQty)
	h.qty = newQty
	m.holdings[sym] = h
	m.cash = m.cash.Sub(cost)
	return m.save()
}

// Sell credits qty*price and reduces the holding; the remainder at or below dust is dropped.
// Selling more than held sells what is held. Returns the quantity sold.
func (m *Manager) Sell(symbol string, qty, price float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("paper sell %s: price must be positive", symbol)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sym := key(symbol)
	h, ok := m.holdings[sym]
	if !ok || h.qty.LessThanOrEqual(dust) {
		return 0, fmt.Errorf("paper sell %s: no holding", symbol)
	}
	q := decimal.NewFromFloat(qty)
	if qty <= 0 || q.GreaterThan(h.qty) {
		q = h.qty
	}
	m.cash = m.cash.Add(q.Mul(decimal.NewFromFloat(price)))
	h.qty = h.qty.Sub(q)
	if h.qty.LessThanOrEqual(dust) {
		delete(m.holdings, sym)
	} else {
		m.holdings[sym] = h
	}
	return q.InexactFloat64(), m.save()
}

// Equity is cash plus holdings marked at price(symbol). Holdings without a price are marked at cost.
func (m *Manager) Equity(price func(symbol string) float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := m.cash
	for sym, h := range m.holdings {
		mark := h.avgPrice
		if price != nil {
			if p := price(sym); p > 0 {
				mark = decimal.NewFromFloat(p)
			}
		}
		total = total.Add(h.qty.Mul(mark))
	}
	return total.InexactFloat64()
}

func (m *Manager) save() error {
	state := &model.PaperState{
		StartingEquity: m.start.String(),
		Cash:           m.cash.String(),
		Holdings:       make(map[string]model.PaperHolding, len(m.holdings)),
	}
	for sym, h := range m.holdings {
		state.Holdings[sym] = model.PaperHolding{Qty: h.qty.String(), AvgPrice: h.avgPrice.String()}
	}
	if err := SaveState(m.filePath, state); err != nil {
		return fmt.Errorf("save paper account: %w", err)
	}
	return nil
}

func key(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
