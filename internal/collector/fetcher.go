package collector

import (
	"context"

	"HorizonTrader/internal/model"
)

// Interval is a bar size together with how much history to request.
type Interval struct {
	Bar   string // 30m, 1d, 1wk
	Range string // 60d, 5y, 10y
	TTL   string // cache freshness, as a time.Duration string
}

// Layers maps each horizon to the bars its agent reads.
var Layers = map[model.Horizon]Interval{
	model.HorizonShort: {Bar: "30m", Range: "60d", TTL: "15m"},
	model.HorizonMid:   {Bar: "1d", Range: "5y", TTL: "24h"},
	model.HorizonLong:  {Bar: "1wk", Range: "10y", TTL: "24h"},
}

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchBars(ctx context.Context, ticker string, iv Interval) ([]model.OHLCV, error)
	Name() string
}
