// Package engine runs one decision cycle per symbol: snapshot, votes, decision, execution, record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"HorizonTrader/internal/agent"
	"HorizonTrader/internal/broker"
	"HorizonTrader/internal/debate"
	"HorizonTrader/internal/fsutil"
	"HorizonTrader/internal/ledger"
	"HorizonTrader/internal/metrics"
	"HorizonTrader/internal/model"
	"HorizonTrader/internal/policy"
)

// SnapshotProvider returns market data for all horizons of a symbol.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, symbol string, isCrypto bool) (*model.Snapshot, error)
}

// RunLog is the append-only history the runner writes to and throttles from.
type RunLog interface {
	Append(ctx context.Context, rec model.RunRecord) error
	ForSymbol(ctx context.Context, symbol string) ([]model.RunRecord, error)
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Provider SnapshotProvider
	Agents   []agent.Agent
	Broker   broker.Broker
	Ledger   ledger.Store
	Runs     RunLog
	Policy   *policy.Policy
	Logger   *zap.Logger
}

// Options are the tunables of a Runner.
type Options struct {
	EnterThreshold float64
	ExitThreshold  float64
	MaxHold        map[model.Horizon]time.Duration
	ResetOnAdd     bool
	AgentTimeout   time.Duration
	Now            func() time.Time
	// LockDir holds the per-symbol run locks shared with other processes.
	// Empty means in-process serialization only.
	LockDir string
}

type Runner struct {
	deps  Deps
	opts  Options
	log   *zap.Logger
	locks keyedMutex
}

func NewRunner(deps Deps, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AgentTimeout <= 0 {
		opts.AgentTimeout = 20 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{deps: deps, opts: opts, log: logger.Named("engine")}
}

// RunOnce runs a full cycle for symbol and appends exactly one record.
// The record is returned even when err is non-nil.
func (r *Runner) RunOnce(ctx context.Context, symbol string, isCrypto bool, trigger string) (*model.RunRecord, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("empty symbol")
	}
	unlock, err := r.lockSymbol(symbol)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, runErr := r.cycle(ctx, symbol, isCrypto, trigger)
	return rec, r.finish(ctx, rec, runErr)
}

func (r *Runner) cycle(ctx context.Context, symbol string, isCrypto bool, trigger string) (*model.RunRecord, error) {
	now := r.opts.Now()
	rec := &model.RunRecord{
		When:     model.At(now),
		Symbol:   symbol,
		Trigger:  trigger,
		Decision: model.Decision{Action: model.SignalHold},
	}

	snap, err := r.deps.Provider.Snapshot(ctx, symbol, isCrypto)
	if err != nil {
		rec.Action = model.ActionNoData
		rec.Error = err.Error()
		rec.Reason = "no market data"
		return rec, nil
	}

	votes := r.collectVotes(ctx, snap)

	led, err := r.deps.Ledger.Read(ctx)
	if err != nil {
		rec.Action = model.ActionError
		rec.Error = err.Error()
		rec.Reason = debate.Summarize(votes, rec.Decision) + "\n(ledger unreadable)"
		return rec, fmt.Errorf("read ledger: %w", err)
	}
	held := led.Held(symbol)

	hasPosition := held > ledger.Epsilon
	if !hasPosition && anySell(votes) {
		hasPosition = r.brokerHolds(ctx, symbol)
	}
	d := debate.Decide(votes, hasPosition, r.opts.EnterThreshold, r.opts.ExitThreshold)
	rec.Decision = d
	rec.Reason = debate.Summarize(votes, d)

	switch d.Action {
	case model.SignalSell:
		if held <= ledger.Epsilon {
			rec.Action = model.ActionSellNoPosition
			return rec, nil
		}
		return r.sell(ctx, rec, symbol)
	case model.SignalBuy:
		return r.buy(ctx, rec, snap, led, now)
	default:
		rec.Action = model.ActionHold
		return rec, nil
	}
}

// collectVotes asks every agent concurrently. A failing agent counts as HOLD with zero confidence.
func (r *Runner) collectVotes(ctx context.Context, snap *model.Snapshot) []model.Vote {
	votes := make([]model.Vote, len(r.deps.Agents))
	var g errgroup.Group
	for i, a := range r.deps.Agents {
		g.Go(func() error {
			actx, cancel := context.WithTimeout(ctx, r.opts.AgentTimeout)
			defer cancel()
			v, err := a.Vote(actx, snap)
			if err != nil {
				r.log.Warn("agent failed", zap.String("agent", a.Name()), zap.String("symbol", snap.Symbol), zap.Error(err))
				v = model.NewVote(a.Name(), a.Horizon(), model.SignalHold, 0, "error: "+err.Error())
			}
			votes[i] = v
			return nil
		})
	}
	_ = g.Wait()
	return votes
}

func anySell(votes []model.Vote) bool {
	for _, v := range votes {
		if v.Decision == model.SignalSell {
			return true
		}
	}
	return false
}

// brokerHolds asks the broker whether it reports a holding. Failures count as no.
func (r *Runner) brokerHolds(ctx context.Context, symbol string) bool {
	positions, err := r.deps.Broker.Positions(ctx)
	if err != nil {
		r.log.Debug("broker positions unavailable", zap.String("symbol", symbol), zap.Error(err))
		return false
	}
	for _, p := range positions {
		if strings.EqualFold(p.Symbol, symbol) && p.Qty > ledger.Epsilon {
			return true
		}
	}
	return false
}

func (r *Runner) sell(ctx context.Context, rec *model.RunRecord, symbol string) (*model.RunRecord, error) {
	orderID, err := r.deps.Broker.ClosePosition(ctx, symbol)
	if err != nil {
		rec.Action = model.ActionSellFailed
		rec.Error = err.Error()
		return rec, nil
	}
	rec.Action = model.ActionSell
	rec.OrderID = orderID

	var closed model.PositionRecord
	_, err = r.deps.Ledger.Update(ctx, func(l ledger.Ledger) error {
		closed = l[symbol]
		l.Remove(symbol)
		return nil
	})
	if closed.Qty > 0 {
		rec.Qty = model.Float(closed.Qty)
		rec.EntryPrice = model.Float(closed.EntryPrice)
	}
	if err != nil {
		rec.Error = err.Error()
		return rec, fmt.Errorf("remove %s from ledger after close: %w", symbol, err)
	}
	return rec, nil
}

func (r *Runner) buy(ctx context.Context, rec *model.RunRecord, snap *model.Snapshot, led ledger.Ledger, now time.Time) (*model.RunRecord, error) {
	symbol := rec.Symbol
	suggest := func(why string) (*model.RunRecord, error) {
		rec.Action = model.ActionSuggestBuy
		rec.Reason += "\n" + why
		return rec, nil
	}

	price, err := r.deps.Broker.LastPrice(ctx, symbol)
	if err != nil || price <= 0 {
		if err != nil {
			rec.Error = err.Error()
		}
		return suggest("(no price)")
	}

	history, err := r.deps.Runs.ForSymbol(ctx, symbol)
	if err != nil {
		rec.Error = err.Error()
		return suggest("(throttle unknown)")
	}
	if r.deps.Policy.TooSoonSinceLastBuy(symbol, history, now) || r.deps.Policy.HitDailyBuyLimit(symbol, history, now) {
		return suggest("(throttle)")
	}

	acct, err := r.deps.Broker.AccountBalances(ctx)
	if err != nil {
		rec.Error = err.Error()
		return suggest("(no account)")
	}
	h := rec.Decision.TargetHorizon
	allowed := r.deps.Policy.AllowedNotional(h, acct.Cash, acct.Equity, led.Exposure(symbol, price))
	if allowed <= 0 {
		return suggest("(caps)")
	}
	qty := r.deps.Policy.QtyForNotional(allowed, price, snap.IsCrypto)
	qty = r.deps.Policy.ClampByShareCap(qty, led.Held(symbol))
	if qty <= 0 {
		return suggest("(share cap)")
	}

	fill, err := r.deps.Broker.MarketBuyQty(ctx, symbol, qty)
	if err != nil {
		rec.Action = model.ActionBuyFailed
		rec.Error = err.Error()
		return rec, fmt.Errorf("buy %s: %w", symbol, err)
	}
	if fill.Qty <= 0 {
		fill.Qty = qty
	}
	if fill.AvgPrice <= 0 {
		fill.AvgPrice = price
	}
	rec.Action = model.ActionBuy
	rec.Qty = model.Float(fill.Qty)
	rec.EntryPrice = model.Float(fill.AvgPrice)
	rec.OrderID = fill.OrderID

	_, err = r.deps.Ledger.Update(ctx, func(l ledger.Ledger) error {
		return l.Merge(symbol, h, fill.Qty, fill.AvgPrice, fill.Qty*fill.AvgPrice, r.opts.ResetOnAdd, now, r.opts.MaxHold)
	})
	if err != nil {
		rec.Error = err.Error()
		return rec, fmt.Errorf("record %s fill in ledger: %w", symbol, err)
	}
	return rec, nil
}

// EnforceTimeboxes force-closes every position whose timebox has elapsed.
func (r *Runner) EnforceTimeboxes(ctx context.Context) ([]*model.RunRecord, error) {
	led, err := r.deps.Ledger.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	var (
		out  []*model.RunRecord
		errs []error
	)
	for _, symbol := range led.Expired(r.opts.Now()) {
		rec, err := r.closeExpired(ctx, symbol)
		if rec != nil {
			out = append(out, rec)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

func (r *Runner) closeExpired(ctx context.Context, symbol string) (*model.RunRecord, error) {
	unlock, err := r.lockSymbol(symbol)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := r.opts.Now()
	led, err := r.deps.Ledger.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	pos, ok := led[symbol]
	// a concurrent run may already have closed or extended it
	if !ok || pos.TimeboxUntil == nil || now.Before(pos.TimeboxUntil.Time) {
		return nil, nil
	}

	d := model.Decision{Action: model.SignalSell, Confidence: 1, TargetHorizon: pos.Horizon}
	rec := &model.RunRecord{
		When:     model.At(now),
		Symbol:   symbol,
		Trigger:  model.TriggerTimebox,
		Decision: d,
		Reason:   fmt.Sprintf("timebox expired at %s (horizon=%s)", pos.TimeboxUntil, pos.Horizon),
	}
	rec, runErr := r.sell(ctx, rec, symbol)
	return rec, r.finish(ctx, rec, runErr)
}

// finish appends rec and publishes metrics. Append failures are joined to runErr.
func (r *Runner) finish(ctx context.Context, rec *model.RunRecord, runErr error) error {
	if rec == nil {
		return runErr
	}
	fields := []zap.Field{
		zap.String("symbol", rec.Symbol),
		zap.String("trigger", rec.Trigger),
		zap.String("action", string(rec.Action)),
		zap.Float64("confidence", rec.Decision.Confidence),
	}
	if rec.Error != "" {
		fields = append(fields, zap.String("error", rec.Error))
	}
	if rec.Action.Trades() {
		r.log.Info("run finished", fields...)
	} else {
		r.log.Debug("run finished", fields...)
	}
	metrics.ObserveRun(rec.Action)

	if err := r.deps.Runs.Append(ctx, *rec); err != nil {
		r.log.Error("append run record", zap.String("symbol", rec.Symbol), zap.Error(err))
		runErr = errors.Join(runErr, fmt.Errorf("append run record: %w", err))
	}
	if led, err := r.deps.Ledger.Read(ctx); err == nil {
		metrics.SetOpenPositions(len(led))
	}
	return runErr
}

// lockSymbol holds symbol from the throttle check through the run log append,
// in this process and, with LockDir set, across processes.
func (r *Runner) lockSymbol(symbol string) (func(), error) {
	unlock := r.locks.lock(symbol)
	if r.opts.LockDir == "" {
		return unlock, nil
	}
	fl, err := fsutil.Lock(filepath.Join(r.opts.LockDir, "run-"+lockName(symbol)+".lock"))
	if err != nil {
		unlock()
		return nil, fmt.Errorf("lock %s: %w", symbol, err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			r.log.Warn("release run lock", zap.String("symbol", symbol), zap.Error(err))
		}
		unlock()
	}, nil
}

// lockName maps a symbol such as BTC/USD onto a safe file name.
func lockName(symbol string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.':
			return c
		default:
			return '_'
		}
	}, symbol)
}

// keyedMutex serializes work per symbol.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
