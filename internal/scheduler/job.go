// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/metrics"
)

// Run results recorded in metrics and JobStatus.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultPanic   = "panic"
)

// Job is a named recurring task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// JobStatus is a snapshot of one job.
type JobStatus struct {
	Name       string
	Interval   time.Duration
	Running    bool
	Runs       int64
	Skipped    int64
	LastRun    *time.Time
	LastResult string
	LastError  string
}

// jobService is the suture.Service for one Job. Runs happen on their own
// goroutine so a slow run makes later ticks skip instead of queueing.
type jobService struct {
	job     Job
	timeout time.Duration
	logger  zerolog.Logger

	running atomic.Bool
	retired atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64

	mu         sync.RWMutex
	lastRun    *time.Time
	lastResult string
	lastError  string
}

func newJobService(job Job, timeout time.Duration) *jobService {
	return &jobService{
		job:     job,
		timeout: timeout,
		logger:  logging.WithComponent("scheduler").With().Str("job", job.Name).Logger(),
	}
}

// Serve fires immediately, then every Interval, until ctx is done. It
// waits for an in-flight run before returning.
func (j *jobService) Serve(ctx context.Context) error {
	if j.retired.Load() {
		return suture.ErrDoNotRestart
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	ticker := time.NewTicker(j.job.Interval)
	defer ticker.Stop()

	j.tick(ctx, &wg)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if j.retired.Load() {
				return suture.ErrDoNotRestart
			}
			j.tick(ctx, &wg)
		}
	}
}

func (j *jobService) String() string {
	return "job:" + j.job.Name
}

func (j *jobService) tick(ctx context.Context, wg *sync.WaitGroup) {
	if !j.running.CompareAndSwap(false, true) {
		j.skipped.Add(1)
		metrics.SchedulerSkipped.WithLabelValues(j.job.Name).Inc()
		j.logger.Debug().Msg("Previous run still in progress, skipping tick")
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer j.running.Store(false)
		j.runOnce(ctx)
	}()
}

func (j *jobService) runOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, j.timeout)
	defer cancel()
	ctx = logging.ContextWithNewCorrelationID(ctx)

	start := time.Now()
	err := j.call(ctx)

	result := ResultSuccess
	if err != nil {
		result = ResultError
		if _, ok := err.(*panicError); ok {
			result = ResultPanic
		}
	}

	now := time.Now().UTC()
	j.mu.Lock()
	j.lastRun = &now
	j.lastResult = result
	j.lastError = ""
	if err != nil {
		j.lastError = err.Error()
	}
	j.mu.Unlock()

	j.runs.Add(1)
	metrics.SchedulerRuns.WithLabelValues(j.job.Name, result).Inc()

	log := logging.Ctx(ctx).With().Str("job", j.job.Name).Logger()
	if err != nil {
		log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("Scheduled job failed")
		return
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("Scheduled job completed")
}

type panicError struct {
	value interface{}
}

func (p *panicError) Error() string {
	return fmt.Sprintf("job panicked: %v", p.value)
}

// call runs the job, turning a panic into an error so siblings and later
// ticks are unaffected.
func (j *jobService) call(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return j.job.Run(ctx)
}

func (j *jobService) status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return JobStatus{
		Name:       j.job.Name,
		Interval:   j.job.Interval,
		Running:    j.running.Load(),
		Runs:       j.runs.Load(),
		Skipped:    j.skipped.Load(),
		LastRun:    j.lastRun,
		LastResult: j.lastResult,
		LastError:  j.lastError,
	}
}
