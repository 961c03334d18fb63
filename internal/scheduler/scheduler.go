// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package scheduler runs named recurring jobs under a suture supervisor.
//
// Every job fires once when the scheduler starts and then on its interval.
// Overlap policy is skip-if-running: a tick that finds the previous run of
// the same job still in progress is dropped and counted. Each run gets its
// own timeout and correlation id.
//
//	sched := scheduler.New(60 * time.Second)
//	sched.Reset()
//	_ = sched.Register(scheduler.Job{Name: "latest", Interval: 30 * time.Second, Run: fetchLatest})
//	tree.AddMessagingService(sched)
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/quakewatch/internal/logging"
)

var (
	// ErrInvalidJob is returned by Register for a job missing a name,
	// interval, or run function.
	ErrInvalidJob = errors.New("invalid job")

	// ErrUnknownJob is returned for a name that is not registered.
	ErrUnknownJob = errors.New("unknown job")
)

type managedJob struct {
	token   suture.ServiceToken
	service *jobService
}

// Scheduler owns a supervisor with one service per job.
type Scheduler struct {
	sup        *suture.Supervisor
	jobTimeout time.Duration

	mu   sync.Mutex
	jobs map[string]*managedJob
}

// New creates a scheduler. jobTimeout bounds each run and defaults to 60s.
func New(jobTimeout time.Duration) *Scheduler {
	if jobTimeout <= 0 {
		jobTimeout = 60 * time.Second
	}
	return &Scheduler{
		sup: suture.New("scheduler", suture.Spec{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			Timeout:          jobTimeout + 5*time.Second,
		}),
		jobTimeout: jobTimeout,
		jobs:       make(map[string]*managedJob),
	}
}

// Register installs job, replacing any job with the same name.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Interval <= 0 || job.Run == nil {
		return fmt.Errorf("%w: %q", ErrInvalidJob, job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[job.Name]; ok {
		s.retire(old)
	}

	svc := newJobService(job, s.jobTimeout)
	s.jobs[job.Name] = &managedJob{token: s.sup.Add(svc), service: svc}

	logging.Info().
		Str("job", job.Name).
		Dur("interval", job.Interval).
		Msg("Scheduled job registered")
	return nil
}

// Unregister stops and removes one job.
func (s *Scheduler) Unregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	s.retire(job)
	delete(s.jobs, name)
	return nil
}

// Reset removes every job.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, job := range s.jobs {
		s.retire(job)
		delete(s.jobs, name)
	}
}

// retire stops job whether or not the supervisor is running yet. Caller
// holds s.mu.
func (s *Scheduler) retire(job *managedJob) {
	job.service.retired.Store(true)
	if err := s.sup.Remove(job.token); err != nil {
		logging.Warn().Err(err).Str("job", job.service.job.Name).Msg("Failed to remove scheduled job")
	}
}

// Jobs returns registered job names in sorted order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status returns a snapshot of the named job.
func (s *Scheduler) Status(name string) (JobStatus, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return JobStatus{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return job.service.status(), nil
}

// Serve implements suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	return s.sup.Serve(ctx)
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string {
	return "scheduler"
}
