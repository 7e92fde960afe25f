// Package scheduler fires engine runs on cron and answers bot commands.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"HorizonTrader/internal/collector"
	"HorizonTrader/internal/ledger"
	"HorizonTrader/internal/logging"
	"HorizonTrader/internal/model"
	"HorizonTrader/internal/notifier"
	"HorizonTrader/internal/recorder"
	"HorizonTrader/internal/runlog"
)

// Runner is the slice of engine.Runner the scheduler drives.
type Runner interface {
	RunOnce(ctx context.Context, symbol string, isCrypto bool, trigger string) (*model.RunRecord, error)
	EnforceTimeboxes(ctx context.Context) ([]*model.RunRecord, error)
}

// Notifier delivers messages; nil or disabled means silent.
type Notifier interface {
	Enabled() bool
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Submitter runs a named task in the background.
type Submitter interface {
	Go(name string, task func() error) error
}

// Specs holds cron expressions (with seconds) and watchlists.
type Specs struct {
	StocksCron      string
	CryptoCron      string
	SweepCron       string
	WatchlistStocks []string
	WatchlistCrypto []string
	EnableCrypto    bool
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	ledger   ledger.Store
	runs     *runlog.Log
	recorder recorder.Recorder
	notifier Notifier
	pool     Submitter
	specs    Specs
	logger   *zap.Logger
	ctx      context.Context
	now      func() time.Time
}

// Deps bundles the scheduler's collaborators.
type Deps struct {
	Runner   Runner
	Ledger   ledger.Store
	Runs     *runlog.Log
	Recorder recorder.Recorder
	Notifier Notifier
	Pool     Submitter
	Logger   *zap.Logger
}

// NewScheduler creates a Scheduler whose jobs run in loc. Overlapping ticks of the same job are skipped.
func NewScheduler(ctx context.Context, deps Deps, specs Specs, loc *time.Location) *Scheduler {
	logger := deps.Logger.With(zap.String("component", "scheduler"))
	cl := logging.NewCronLogger(deps.Logger)
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:   deps.Runner,
		ledger:   deps.Ledger,
		runs:     deps.Runs,
		recorder: deps.Recorder,
		notifier: deps.Notifier,
		pool:     deps.Pool,
		specs:    specs,
		logger:   logger,
		ctx:      ctx,
		now:      time.Now,
	}
}

// RegisterAll registers the stock, crypto and timebox jobs.
func (s *Scheduler) RegisterAll() error {
	if len(s.specs.WatchlistStocks) > 0 {
		if _, err := s.cron.AddFunc(s.specs.StocksCron, func() { s.runWatchlist(s.specs.WatchlistStocks, false) }); err != nil {
			return fmt.Errorf("register stocks job: %w", err)
		}
	}
	if s.specs.EnableCrypto && len(s.specs.WatchlistCrypto) > 0 {
		if _, err := s.cron.AddFunc(s.specs.CryptoCron, func() { s.runWatchlist(s.specs.WatchlistCrypto, true) }); err != nil {
			return fmt.Errorf("register crypto job: %w", err)
		}
	}
	if _, err := s.cron.AddFunc(s.specs.SweepCron, s.Sweep); err != nil {
		return fmt.Errorf("register timebox sweep: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runWatchlist(symbols []string, isCrypto bool) {
	for _, sym := range symbols {
		if s.ctx.Err() != nil {
			return
		}
		s.RunSymbol(sym, isCrypto || collector.IsCryptoSymbol(sym), model.TriggerBarClose)
	}
}

// RunSymbol runs one symbol and notifies on trade outcomes.
func (s *Scheduler) RunSymbol(symbol string, isCrypto bool, trigger string) *model.RunRecord {
	rec, err := s.runner.RunOnce(s.ctx, symbol, isCrypto, trigger)
	if err != nil {
		s.logger.Error("run failed", zap.String("symbol", symbol), zap.Error(err))
	}
	if rec != nil && (rec.Action.Trades() || err != nil) {
		s.notify(notifier.FormatRun(rec))
	}
	return rec
}

// Sweep force-closes positions whose timebox elapsed.
func (s *Scheduler) Sweep() {
	recs, err := s.runner.EnforceTimeboxes(s.ctx)
	if err != nil {
		s.logger.Error("timebox sweep", zap.Error(err))
	}
	for _, rec := range recs {
		s.notify(notifier.FormatRun(rec))
	}
}

func (s *Scheduler) notify(text string) {
	if s.notifier == nil || !s.notifier.Enabled() || s.pool == nil {
		return
	}
	_ = s.pool.Go("notify", func() error {
		ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
		defer cancel()
		return s.notifier.SendWithRetry(ctx, text, 3)
	})
}

const helpText = "Commands:\n" +
	"/positions - open positions\n" +
	"/runs [SYMBOL] [N] - recent runs\n" +
	"/run SYMBOL - run one symbol now\n" +
	"/sweep - enforce timeboxes now\n" +
	"/stats - action counts for the last 7 days"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// "/cmd@botname" from group chats
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	switch cmd {
	case "/positions":
		led, err := s.ledger.Read(ctx)
		if err != nil {
			return "ledger unavailable: " + err.Error()
		}
		return notifier.FormatPositions(led, s.now())
	case "/runs":
		symbol, limit := "", 10
		for _, a := range args {
			if n, err := strconv.Atoi(a); err == nil && n > 0 {
				limit = n
			} else {
				symbol = a
			}
		}
		recs, err := s.runs.Recent(ctx, symbol, limit)
		if err != nil {
			return "run log unavailable: " + err.Error()
		}
		return notifier.FormatRuns(recs)
	case "/run":
		if len(args) == 0 {
			return "usage: /run SYMBOL"
		}
		sym := strings.ToUpper(args[0])
		rec, err := s.runner.RunOnce(ctx, sym, collector.IsCryptoSymbol(sym), model.TriggerManual)
		if rec == nil {
			return "run failed: " + err.Error()
		}
		return notifier.FormatRun(rec)
	case "/sweep":
		recs, err := s.runner.EnforceTimeboxes(ctx)
		if err != nil && len(recs) == 0 {
			return "sweep failed: " + err.Error()
		}
		if len(recs) == 0 {
			return "no expired positions"
		}
		parts := make([]string, 0, len(recs))
		for _, r := range recs {
			parts = append(parts, notifier.FormatRun(r))
		}
		return strings.Join(parts, "\n\n")
	case "/stats":
		since := s.now().Add(-7 * 24 * time.Hour)
		counts, err := s.recorder.ActionCounts(ctx, since)
		if err != nil {
			return "stats unavailable: " + err.Error()
		}
		return notifier.FormatStats(counts, since)
	default:
		return helpText
	}
}
