// Package jobs runs external commands as OS subprocesses with a bound on how
// many run at once.
//
// The Scheduler is driven by a single controlling goroutine: Submit, WaitOne
// and WaitAll must not be called concurrently.
package jobs

import (
	"context"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/pinplay-tools/pinpoints/pinpoints"
)

// Job is one external command invocation.
type Job struct {
	Label   string   // human readable, reported on completion
	Command string   // shell command line
	Dir     string   // working directory; empty for the current one
	Env     []string // extra KEY=VALUE entries appended to the environment
}

// Runner executes a job to completion and returns its exit code. A non-nil
// error means the job could not be run at all.
type Runner interface {
	Run(ctx context.Context, job Job) (int, error)
}

type outcome struct {
	job  Job
	code int
	err  error
}

// Scheduler runs at most Slots jobs concurrently.
type Scheduler struct {
	slots    int
	runner   Runner
	inflight int
	done     chan outcome
}

// Slots returns the configured core count, or the number of CPUs when
// configured is not positive.
func Slots(configured int) int {
	if configured > 0 {
		return configured
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// NewScheduler returns a scheduler with the given number of execution slots.
func NewScheduler(slots int, runner Runner) *Scheduler {
	if slots < 1 {
		slots = 1
	}
	return &Scheduler{slots: slots, runner: runner, done: make(chan outcome, slots)}
}

// Inflight returns the number of jobs started and not yet reaped.
func (s *Scheduler) Inflight() int { return s.inflight }

// Submit starts job in the background. When every slot is busy it first
// waits for one running job to finish; if that job failed, the remaining
// running jobs are waited for, the failure is returned and job is not started.
func (s *Scheduler) Submit(ctx context.Context, job Job) error {
	if s.inflight >= s.slots {
		logrus.Debugf("all %d slots busy, waiting for a job to finish", s.slots)
		if err := s.WaitOne(ctx); err != nil {
			if ctx.Err() == nil {
				s.drain(ctx, err)
			}
			return err
		}
	}
	s.inflight++
	logrus.Infof("Processing: %s", job.Label)
	logrus.Debugf("command: %s", job.Command)
	go func() {
		code, err := s.runner.Run(ctx, job)
		s.done <- outcome{job: job, code: code, err: err}
	}()
	return nil
}

// WaitOne blocks until one running job terminates and reports its failure as
// a *pinpoints.JobFailureError. It returns nil at once when nothing runs.
func (s *Scheduler) WaitOne(ctx context.Context) error {
	if s.inflight == 0 {
		return nil
	}
	select {
	case o := <-s.done:
		s.inflight--
		logrus.Infof("Finished processing: %s", o.job.Label)
		if o.err != nil || o.code != 0 {
			code := o.code
			if code == 0 {
				code = -1
			}
			return &pinpoints.JobFailureError{Label: o.job.Label, ExitCode: code, Err: o.err}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAll blocks until every running job has terminated and returns the first
// failure. Jobs are not cancelled when a sibling fails, so their output files
// may be incomplete.
func (s *Scheduler) WaitAll(ctx context.Context) error {
	for s.inflight > 0 {
		if err := s.WaitOne(ctx); err != nil {
			if ctx.Err() == nil {
				s.drain(ctx, err)
			}
			return err
		}
	}
	return nil
}

// drain waits for the jobs still running after failure. Later failures are
// only logged.
func (s *Scheduler) drain(ctx context.Context, failure error) {
	if s.inflight == 0 {
		return
	}
	logrus.Warnf("%v; waiting for %d remaining job(s), their output may be partial", failure, s.inflight)
	for s.inflight > 0 {
		if err := s.WaitOne(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.Warn(err)
		}
	}
}
