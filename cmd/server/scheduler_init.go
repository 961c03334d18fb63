// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package main

import (
	"context"
	"time"

	"github.com/tomtom215/quakewatch/internal/config"
	"github.com/tomtom215/quakewatch/internal/feed"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/scheduler"
)

// fetchJob is one recurring fetch: a job name bound to a feed kind.
type fetchJob struct {
	name     string
	kind     feed.Kind
	interval time.Duration
}

func fetchJobs(cfg *config.SchedulerConfig) []fetchJob {
	return []fetchJob{
		{name: "latest", kind: feed.Kind(cfg.LatestFeed), interval: cfg.LatestInterval},
		{name: "significant", kind: feed.Kind(cfg.SignificantFeed), interval: cfg.SignificantInterval},
		{name: "catch-up", kind: feed.Kind(cfg.CatchUpFeed), interval: cfg.CatchUpInterval},
	}
}

// cycleRunner is satisfied by *sync.Manager.
type cycleRunner interface {
	CycleFunc(kind feed.Kind) func(ctx context.Context) error
}

// initScheduler clears any previously registered jobs and registers the
// three fetch cadences. A disabled scheduler comes back empty, leaving
// manual fetches as the only trigger.
func initScheduler(cfg *config.SchedulerConfig, runner cycleRunner) (*scheduler.Scheduler, error) {
	sched := scheduler.New(cfg.JobTimeout)
	sched.Reset()

	if !cfg.Enabled {
		logging.Warn().Msg("Scheduler disabled, feeds are fetched only on demand")
		return sched, nil
	}

	for _, job := range fetchJobs(cfg) {
		if err := sched.Register(scheduler.Job{
			Name:     job.name,
			Interval: job.interval,
			Run:      runner.CycleFunc(job.kind),
		}); err != nil {
			return nil, err
		}
	}
	return sched, nil
}
