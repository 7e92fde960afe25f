package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Snapshot bundles bars for all three horizons of one symbol.
type Snapshot struct {
	Symbol    string
	IsCrypto  bool
	Short     []OHLCV // 30 minute bars
	Mid       []OHLCV // daily bars
	Long      []OHLCV // weekly bars
	FetchedAt time.Time
}

// Bars returns the series an agent of horizon h should look at.
func (s *Snapshot) Bars(h Horizon) []OHLCV {
	switch h {
	case HorizonShort:
		return s.Short
	case HorizonMid:
		return s.Mid
	case HorizonLong:
		return s.Long
	default:
		return nil
	}
}

// LastClose returns the most recent close across horizons, shortest first.
func (s *Snapshot) LastClose() float64 {
	for _, h := range Horizons {
		if bars := s.Bars(h); len(bars) > 0 {
			return bars[len(bars)-1].Close
		}
	}
	return 0
}

// Account is a broker balance view.
type Account struct {
	Cash           float64 `json:"cash"`
	Equity         float64 `json:"equity"`
	BuyingPower    float64 `json:"buying_power"`
	PortfolioValue float64 `json:"portfolio_value"`
}

// Fill is the broker's answer to a market buy.
type Fill struct {
	OrderID  string  `json:"order_id"`
	Qty      float64 `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
}
