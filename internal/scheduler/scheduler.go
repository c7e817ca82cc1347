// Package scheduler runs a job on wall-clock aligned ticks.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fundingwatch/logger"
)

// Scheduler runs fn once at start and then at every multiple of interval.
// A tick that fires while the previous run is in flight is skipped.
type Scheduler struct {
	interval time.Duration
	fn       func(ctx context.Context)
	log      *logger.Log

	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
	wg      sync.WaitGroup
}

func New(interval time.Duration, fn func(ctx context.Context)) *Scheduler {
	return &Scheduler{interval: interval, fn: fn, log: logger.GetLogger()}
}

// Run blocks until ctx is done and any in-flight run has returned.
func Run(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) error {
	return New(interval, fn).Run(ctx)
}

func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.interval)
	}
	log := s.log.WithComponent("scheduler").WithFields(logger.Fields{"interval": s.interval.String()})
	log.Info("scheduler started")
	defer s.wg.Wait()

	s.trigger(ctx, log)

	now := time.Now()
	timer := time.NewTimer(now.Truncate(s.interval).Add(s.interval).Sub(now))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped due to context cancellation")
			return nil
		case tick := <-timer.C:
			s.trigger(ctx, log)
			next := tick.Truncate(s.interval).Add(s.interval)
			timer.Reset(time.Until(next))
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context, log *logger.Entry) {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		log.Warn("previous run still in progress, skipping tick")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logger.Fields{"panic": fmt.Sprint(r)}).Error("scheduled run panicked")
			}
		}()
		start := time.Now()
		s.fn(ctx)
		s.runs.Add(1)
		logger.LogPerformanceEntry(log, "scheduler", "run", time.Since(start), nil)
	}()
}

// Stats returns the number of completed and skipped runs.
func (s *Scheduler) Stats() (runs, skipped int64) {
	return s.runs.Load(), s.skipped.Load()
}
