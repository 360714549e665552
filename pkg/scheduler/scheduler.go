/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package scheduler runs the periodic evaluation pass on a cron schedule.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Evaluator is the engine operation the scheduler drives.
type Evaluator interface {
	EvaluateAll(ctx context.Context) error
}

// Scheduler triggers evaluation passes on a cron expression. Overlapping
// passes are skipped: if a pass is still running when the next tick
// fires, the tick is dropped rather than queued.
type Scheduler struct {
	log     *zap.SugaredLogger
	cron    *cron.Cron
	engine  Evaluator
	spec    string
	running atomic.Bool

	runs  atomic.Int64
	skips atomic.Int64
}

// New creates a scheduler for the given standard cron expression
// (minute granularity) evaluated in loc.
func New(log *zap.SugaredLogger, engine Evaluator, spec string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, errors.Wrapf(err, "invalid cron expression %q", spec)
	}

	return &Scheduler{
		log:    log,
		cron:   cron.New(cron.WithLocation(loc)),
		engine: engine,
		spec:   spec,
	}, nil
}

// Start schedules the evaluation pass and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunNow(context.Background())
	})
	if err != nil {
		return errors.Wrap(err, "failed to schedule evaluation pass")
	}

	s.cron.Start()
	s.log.Infow("Evaluation scheduler started", "cronSpec", s.spec)
	return nil
}

// RunNow triggers an evaluation pass immediately, unless one is already
// in flight.
func (s *Scheduler) RunNow(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.skips.Add(1)
		s.log.Warnw("Skipping evaluation pass, previous pass still running")
		return
	}
	defer s.running.Store(false)

	started := time.Now()
	s.runs.Add(1)
	if err := s.engine.EvaluateAll(ctx); err != nil {
		s.log.Errorw("Evaluation pass failed", "error", err)
		return
	}
	s.log.Infow("Evaluation pass finished", "duration", time.Since(started))
}

// Stop halts the cron loop and waits for a running pass to finish, up to
// the context deadline.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.log.Info("Evaluation scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runs returns how many passes have been started.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// Skips returns how many ticks were dropped due to an in-flight pass.
func (s *Scheduler) Skips() int64 { return s.skips.Load() }
