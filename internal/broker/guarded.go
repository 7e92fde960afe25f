package broker

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"HorizonTrader/internal/metrics"
	"HorizonTrader/internal/model"
)

// Guarded wraps a Broker with a per-call deadline, a shared circuit breaker,
// retries for reads and an order rate limit. Orders are never retried.
type Guarded struct {
	inner   Broker
	timeout time.Duration
	limiter *rate.Limiter
	reads   failsafe.Executor[any]
	writes  failsafe.Executor[any]
	logger  *zap.Logger
}

// GuardConfig tunes Guarded.
type GuardConfig struct {
	Timeout      time.Duration
	OrdersPerSec float64
	ReadRetries  int
	BreakerDelay time.Duration
}

func NewGuarded(inner Broker, cfg GuardConfig, logger *zap.Logger) *Guarded {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.OrdersPerSec <= 0 {
		cfg.OrdersPerSec = 2
	}
	if cfg.BreakerDelay <= 0 {
		cfg.BreakerDelay = 30 * time.Second
	}
	retryable := func(_ any, err error) bool {
		return err != nil && !errors.Is(err, ErrNoPrice) && !errors.Is(err, context.Canceled)
	}
	breaker := circuitbreaker.NewBuilder[any]().
		HandleIf(retryable).
		WithFailureThresholdRatio(5, 10).
		WithDelay(cfg.BreakerDelay).
		Build()
	retry := retrypolicy.NewBuilder[any]().
		HandleIf(retryable).
		WithBackoff(100*time.Millisecond, time.Second).
		WithMaxRetries(cfg.ReadRetries).
		ReturnLastFailure().
		Build()

	burst := int(cfg.OrdersPerSec)
	if burst < 1 {
		burst = 1
	}
	return &Guarded{
		inner:   inner,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(rate.Limit(cfg.OrdersPerSec), burst),
		reads:   failsafe.With[any](retry, breaker),
		writes:  failsafe.With[any](breaker),
		logger:  logger.Named("broker"),
	}
}

func (g *Guarded) Name() string { return g.inner.Name() }

func call[T any](ctx context.Context, g *Guarded, exec failsafe.Executor[any], op, symbol string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := exec.WithContext(ctx).GetWithExecution(func(e failsafe.Execution[any]) (any, error) {
		cctx, cancel := context.WithTimeout(e.Context(), g.timeout)
		defer cancel()
		return fn(cctx)
	})
	metrics.ObserveBrokerCall(op, err, time.Since(start))

	var zero T
	if err != nil {
		g.logger.Warn("broker call failed", zap.String("op", op), zap.String("symbol", symbol), zap.Error(err))
		return zero, wrap(op, symbol, err)
	}
	v, _ := out.(T)
	return v, nil
}

func (g *Guarded) AccountBalances(ctx context.Context) (model.Account, error) {
	return call(ctx, g, g.reads, "balances", "", g.inner.AccountBalances)
}

func (g *Guarded) LastPrice(ctx context.Context, symbol string) (float64, error) {
	return call(ctx, g, g.reads, "last_price", symbol, func(c context.Context) (float64, error) {
		return g.inner.LastPrice(c, symbol)
	})
}

func (g *Guarded) Positions(ctx context.Context) ([]Position, error) {
	return call(ctx, g, g.reads, "positions", "", g.inner.Positions)
}

func (g *Guarded) MarketBuyQty(ctx context.Context, symbol string, qty float64) (model.Fill, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return model.Fill{}, wrap("buy", symbol, err)
	}
	return call(ctx, g, g.writes, "buy", symbol, func(c context.Context) (model.Fill, error) {
		return g.inner.MarketBuyQty(c, symbol, qty)
	})
}

func (g *Guarded) ClosePosition(ctx context.Context, symbol string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", wrap("close", symbol, err)
	}
	return call(ctx, g, g.writes, "close", symbol, func(c context.Context) (string, error) {
		return g.inner.ClosePosition(c, symbol)
	})
}
