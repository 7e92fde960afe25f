package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"HorizonTrader/internal/agent"
	"HorizonTrader/internal/broker"
	"HorizonTrader/internal/collector"
	"HorizonTrader/internal/config"
	"HorizonTrader/internal/engine"
	"HorizonTrader/internal/ledger"
	"HorizonTrader/internal/logging"
	"HorizonTrader/internal/policy"
	"HorizonTrader/internal/recorder"
	"HorizonTrader/internal/runlog"
	"HorizonTrader/internal/tasks"
)

// app holds every long-lived component, wired from one Config.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *collector.Collector
	broker    broker.Broker
	ledger    ledger.Store
	runs      *runlog.Log
	recorder  recorder.Recorder
	pool      *tasks.Pool
	runner    *engine.Runner
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	for _, w := range cfg.Warnings() {
		logger.Warn("config", zap.String("warning", w))
	}

	a := &app{cfg: cfg, logger: logger}

	var fetcher collector.Fetcher
	switch cfg.DataSource.Kind {
	case "mock":
		fetcher = &collector.MockFetcher{Price: cfg.DataSource.MockPrice, Drift: 0.001}
	default:
		fetcher = collector.NewYahooFetcher(cfg.DataSource.BaseURL, cfg.Proxy, cfg.Timeouts.Data)
	}
	a.collector = collector.NewCollector(fetcher, cfg.DataSource.EquitySuffix, logger)
	logger.Info("data source ready", zap.String("source", fetcher.Name()))

	if a.broker, err = broker.New(cfg, a.collector, logger); err != nil {
		return nil, err
	}

	switch cfg.State.LedgerBackend {
	case "sqlite":
		if a.ledger, err = ledger.NewSQLiteStore(cfg.State.SQLitePath); err != nil {
			return nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
	default:
		a.ledger = ledger.NewFileStore(cfg.State.LedgerPath)
	}

	if sr, err := recorder.NewSQLiteRecorder(cfg.State.SQLitePath, logger); err != nil {
		logger.Warn("sqlite recorder unavailable, using noop", zap.Error(err))
		a.recorder = recorder.NewNoopRecorder()
	} else {
		a.recorder = sr
	}

	a.pool = tasks.NewPool(tasks.PoolConfig{Name: "side-effects", MaxWorkers: 4, MaxCapacity: 256}, logger)
	a.runs = runlog.New(cfg.State.RunLogPath,
		runlog.WithLogger(logger),
		runlog.WithMirror(recorder.NewAsyncMirror(a.recorder, a.pool, 5*time.Second)),
	)

	pol := policy.New(policy.Limits{
		HorizonFraction:    cfg.HorizonFractions(),
		MaxSharesPerSymbol: cfg.Risk.MaxSharesPerSymbol,
		BuyCooldown:        cfg.Risk.BuyCooldown,
		MaxBuysPerDay:      cfg.Risk.MaxBuysPerDay,
		Location:           config.Location(cfg.Risk.Timezone),
		WholeShares:        *cfg.Risk.WholeShares,
	})

	a.runner = engine.NewRunner(engine.Deps{
		Provider: a.collector,
		Agents:   agent.Defaults(),
		Broker:   a.broker,
		Ledger:   a.ledger,
		Runs:     a.runs,
		Policy:   pol,
		Logger:   logger,
	}, engine.Options{
		EnterThreshold: cfg.Strategy.EnterThreshold,
		ExitThreshold:  cfg.Strategy.ExitThreshold,
		MaxHold:        cfg.MaxHold(),
		ResetOnAdd:     cfg.Timebox.ResetOnAdd,
		AgentTimeout:   cfg.Timeouts.Agent,
		LockDir:        filepath.Dir(cfg.State.RunLogPath),
	})
	return a, nil
}

// Close drains background tasks before closing the stores they write to.
func (a *app) Close() error {
	a.pool.Stop()
	err := errors.Join(a.recorder.Close(), a.ledger.Close())
	_ = a.logger.Sync()
	return err
}
