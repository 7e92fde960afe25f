package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"HorizonTrader/internal/model"
)

// ErrNoData is returned when a series has no usable bars.
var ErrNoData = errors.New("no market data")

// Collector builds three-horizon snapshots from a Fetcher, caching each series for its TTL.
type Collector struct {
	fetcher      Fetcher
	equitySuffix string
	logger       *zap.Logger
	now          func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

type cached struct {
	bars    []model.OHLCV
	fetched time.Time
}

// NewCollector creates a Collector. equitySuffix (e.g. ".NS") is appended to plain equity tickers.
func NewCollector(fetcher Fetcher, equitySuffix string, logger *zap.Logger) *Collector {
	return &Collector{
		fetcher:      fetcher,
		equitySuffix: equitySuffix,
		logger:       logger.With(zap.String("component", "collector"), zap.String("source", fetcher.Name())),
		now:          time.Now,
		cache:        map[string]cached{},
	}
}

// IsCryptoSymbol reports whether symbol is a pair such as BTC/USD.
func IsCryptoSymbol(symbol string) bool {
	return strings.Contains(symbol, "/")
}

// Ticker maps an internal symbol to the data source's ticker.
func (c *Collector) Ticker(symbol string, isCrypto bool) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if isCrypto || IsCryptoSymbol(symbol) {
		return strings.ReplaceAll(symbol, "/", "-")
	}
	if c.equitySuffix == "" || strings.HasPrefix(symbol, "^") || strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + c.equitySuffix
}

// Snapshot fetches all three layers. Any failing layer fails the snapshot.
func (c *Collector) Snapshot(ctx context.Context, symbol string, isCrypto bool) (*model.Snapshot, error) {
	snap := &model.Snapshot{Symbol: strings.ToUpper(symbol), IsCrypto: isCrypto, FetchedAt: c.now()}
	for _, h := range model.Horizons {
		bars, err := c.series(ctx, c.Ticker(symbol, isCrypto), Layers[h])
		if err != nil {
			return nil, fmt.Errorf("snapshot %s %s: %w", symbol, h, err)
		}
		switch h {
		case model.HorizonShort:
			snap.Short = bars
		case model.HorizonMid:
			snap.Mid = bars
		case model.HorizonLong:
			snap.Long = bars
		}
	}
	return snap, nil
}

// LastPrice returns the latest short-horizon close.
func (c *Collector) LastPrice(ctx context.Context, symbol string) (float64, error) {
	bars, err := c.series(ctx, c.Ticker(symbol, IsCryptoSymbol(symbol)), Layers[model.HorizonShort])
	if err != nil {
		return 0, err
	}
	return bars[len(bars)-1].Close, nil
}

func (c *Collector) series(ctx context.Context, ticker string, iv Interval) ([]model.OHLCV, error) {
	key := ticker + "|" + iv.Bar
	ttl, _ := time.ParseDuration(iv.TTL)

	c.mu.Lock()
	if e, ok := c.cache[key]; ok && c.now().Sub(e.fetched) < ttl {
		c.mu.Unlock()
		return e.bars, nil
	}
	c.mu.Unlock()

	bars, err := c.fetcher.FetchBars(ctx, ticker, iv)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	c.logger.Debug("fetched bars", zap.String("ticker", ticker), zap.String("interval", iv.Bar), zap.Int("bars", len(bars)))

	c.mu.Lock()
	c.cache[key] = cached{bars: bars, fetched: c.now()}
	c.mu.Unlock()
	return bars, nil
}
