// Package tasks runs fire-and-forget side effects on a bounded worker pool.
package tasks

import (
	"fmt"
	"time"

	"github.com/alitto/pond"
	"go.uber.org/zap"
)

// PoolConfig holds configuration for a worker pool.
type PoolConfig struct {
	Name        string
	MaxWorkers  int
	MaxCapacity int
	IdleTimeout time.Duration
}

// Pool wraps alitto/pond. Submit never blocks: a full queue drops the task with a log line.
type Pool struct {
	pool   *pond.WorkerPool
	config PoolConfig
	logger *zap.Logger
}

func NewPool(cfg PoolConfig, logger *zap.Logger) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = 256
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	logger = logger.With(zap.String("component", "task_pool"), zap.String("pool", cfg.Name))

	pool := pond.New(
		cfg.MaxWorkers,
		cfg.MaxCapacity,
		pond.MinWorkers(1),
		pond.IdleTimeout(cfg.IdleTimeout),
		pond.Strategy(pond.Balanced()),
		pond.PanicHandler(func(p interface{}) {
			logger.Error("task panic recovered", zap.Any("panic", p))
		}),
	)
	return &Pool{pool: pool, config: cfg, logger: logger}
}

// Go submits task. The error only reports a full queue; task errors are the task's own business.
func (p *Pool) Go(name string, task func() error) error {
	ok := p.pool.TrySubmit(func() {
		if err := task(); err != nil {
			p.logger.Warn("task failed", zap.String("task", name), zap.Error(err))
		}
	})
	if !ok {
		p.logger.Warn("task dropped, pool full", zap.String("task", name))
		return fmt.Errorf("pool %q is full (capacity %d)", p.config.Name, p.config.MaxCapacity)
	}
	return nil
}

// Stop waits for queued tasks to finish.
func (p *Pool) Stop() {
	p.pool.StopAndWait()
}

// Stats reports pool counters.
func (p *Pool) Stats() map[string]uint64 {
	return map[string]uint64{
		"submitted": p.pool.SubmittedTasks(),
		"waiting":   p.pool.WaitingTasks(),
		"succeeded": p.pool.SuccessfulTasks(),
		"failed":    p.pool.FailedTasks(),
	}
}
