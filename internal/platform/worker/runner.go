// Package worker runs periodic background tasks with at most one execution
// in flight per runner.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Task is one unit of periodic work.
type Task func(ctx context.Context) error

// Runner calls Task every Interval. A tick that arrives while the previous run
// is still executing is skipped.
type Runner struct {
	name     string
	interval time.Duration
	task     Task
	logger   zerolog.Logger
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
}

func NewRunner(name string, interval time.Duration, task Task, logger zerolog.Logger) *Runner {
	return &Runner{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger.With().Str("job", name).Logger(),
		sem:      semaphore.NewWeighted(1),
	}
}

func (r *Runner) Name() string { return r.name }

func (r *Runner) Interval() time.Duration { return r.interval }

// Start runs the task immediately and then on every tick until ctx is done.
// It returns after the last in-flight run has finished.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer r.wg.Wait()

	r.logger.Info().Dur("interval", r.interval).Msg("job started")
	r.dispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("job stopping")
			return
		case <-ticker.C:
			r.dispatch(ctx)
		}
	}
}

func (r *Runner) dispatch(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, _ = r.RunOnce(ctx)
	}()
}

// RunOnce executes the task unless another run is in flight. It reports
// whether the task ran.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	if !r.sem.TryAcquire(1) {
		r.logger.Warn().Msg("previous run still in progress, skipping")
		return false, nil
	}
	defer r.sem.Release(1)

	start := time.Now()
	err := r.run(ctx)
	evt := r.logger.Debug()
	if err != nil {
		evt = r.logger.Error().Err(err)
		if errors.Is(err, context.Canceled) {
			evt = r.logger.Warn().Err(err)
		}
	}
	evt.Dur("took", time.Since(start)).Msg("job run finished")
	return true, err
}

func (r *Runner) run(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return r.task(ctx)
}
