package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pinplay-tools/pinpoints/pinpoints"
	"github.com/pinplay-tools/pinpoints/pinpoints/regions"
)

// Loop reconciles region overlap across streams.
type Loop struct {
	Repo     Repository
	Dispatch Dispatcher
	NewJob   JobFactory

	// Bound caps the number of passes. When zero the largest cluster count
	// among the seeded streams is used.
	Bound int
	// ListOnly dispatches the first pass and returns without detecting overlap.
	ListOnly bool
	RunID    string
}

// Run seeds every stream and iterates materialization and overlap detection
// until no stream reports overlap. It returns a
// *pinpoints.ConvergenceExhaustedError when streams still overlap after
// Bound passes, and the first *pinpoints.JobFailureError of a pass.
func (l *Loop) Run(ctx context.Context, streams []Stream) (*Outcome, error) {
	log := logrus.WithField("run", l.RunID)
	out := &Outcome{}

	active, bound, err := l.seed(out, streams)
	if err != nil {
		return out, err
	}
	if l.Bound > 0 {
		bound = l.Bound
	}
	out.Bound = bound
	if bound < 1 {
		return out, &pinpoints.MissingInputError{
			Path: streamNames(streams),
			What: "regions with at least one cluster",
		}
	}
	log.Infof("reconciling %d stream(s), at most %d pass(es)", len(active), bound)

	pass := 1
	for len(active) > 0 && pass <= bound {
		out.Passes = pass
		if err := l.materialize(ctx, active, pass); err != nil {
			return out, err
		}
		if l.ListOnly {
			return out, nil
		}
		next, err := l.detect(active, pass)
		if err != nil {
			return out, err
		}
		active = next
		if len(active) == 0 {
			break
		}
		pass++
	}

	if len(active) > 0 {
		names := make([]string, len(active))
		for i, st := range active {
			st.State = Exhausted
			names[i] = st.Stream.Name
		}
		return out, &pinpoints.ConvergenceExhaustedError{Bound: bound, Pass: pass, Streams: names}
	}

	for _, st := range out.Statuses {
		if st.State != Converged {
			continue
		}
		if err := l.Repo.Discard(st.Stream); err != nil {
			log.Warnf("cleaning up working files of %s: %v", st.Stream.Name, err)
		}
	}
	return out, nil
}

// seed copies each stream's descriptor to its pass input and computes the
// largest cluster count. Streams without a descriptor, or with an unparsable
// one, are skipped.
func (l *Loop) seed(out *Outcome, streams []Stream) ([]*Status, int, error) {
	var (
		active []*Status
		bound  int
	)
	for _, s := range streams {
		st := &Status{Stream: s, State: Seeding}
		out.Statuses = append(out.Statuses, st)
		log := logrus.WithField("stream", s.Name)

		data, err := l.Repo.Descriptor(s)
		if err != nil {
			if !pinpoints.IsOptionalMissing(err) {
				return nil, 0, err
			}
			log.Warnf("%v; stream will not be processed", err)
			st.State, st.Err = Skipped, err
			continue
		}
		if _, err := regions.Read(bytes.NewReader(data), s.Name); err != nil {
			var pe *pinpoints.ParseError
			if !errors.As(err, &pe) {
				return nil, 0, err
			}
			log.Errorf("%v; stream will not be processed", err)
			st.State, st.Err = Skipped, err
			continue
		}
		n, err := regions.CountClusters(bytes.NewReader(data))
		if err != nil {
			return nil, 0, fmt.Errorf("counting clusters of %s: %w", s.Name, err)
		}
		if err := l.Repo.PutInput(s, data); err != nil {
			return nil, 0, err
		}
		st.Clusters = n
		if n > bound {
			bound = n
		}
		active = append(active, st)
	}
	return active, bound, nil
}

func (l *Loop) materialize(ctx context.Context, active []*Status, pass int) error {
	for _, st := range active {
		st.State, st.Pass = Materializing, pass
		job, err := l.NewJob(st.Stream, pass)
		if err != nil {
			l.abandon(ctx, pass)
			return err
		}
		if err := l.Dispatch.Submit(ctx, job); err != nil {
			l.abandon(ctx, pass)
			return fmt.Errorf("region generation pass %d: %w", pass, err)
		}
	}
	logrus.Infof("Waiting on concurrent region generation (pass %d)", pass)
	if err := l.Dispatch.WaitAll(ctx); err != nil {
		return fmt.Errorf("region generation pass %d: %w", pass, err)
	}
	return nil
}

// abandon waits for the jobs of a failed pass that were already started.
func (l *Loop) abandon(ctx context.Context, pass int) {
	if err := l.Dispatch.WaitAll(ctx); err != nil {
		logrus.Warnf("pass %d: %v", pass, err)
	}
}

// detect checks each stream's overlap report. Streams with overlap are
// relogged: the report becomes the next input and is archived.
func (l *Loop) detect(active []*Status, pass int) ([]*Status, error) {
	var next []*Status
	for _, st := range active {
		st.State = Detecting
		log := logrus.WithFields(logrus.Fields{"stream": st.Stream.Name, "pass": pass})

		report, err := l.Repo.OverlapReport(st.Stream)
		if err != nil {
			return nil, err
		}
		n := 0
		if len(report) > 0 {
			if n, err = regions.CountClusters(bytes.NewReader(report)); err != nil {
				return nil, fmt.Errorf("counting overlap of %s: %w", st.Stream.Name, err)
			}
		}
		st.Overlaps = append(st.Overlaps, n)
		if n == 0 {
			st.State = Converged
			log.Debug("no overlap")
			continue
		}

		log.Infof("Cluster overlap detected, regenerating: %s (%d region(s))", st.Stream.Name, n)
		if err := l.Repo.PutInput(st.Stream, report); err != nil {
			return nil, err
		}
		if err := l.Repo.ArchiveOverlapReport(st.Stream, pass); err != nil {
			return nil, err
		}
		st.State = Relogging
		next = append(next, st)
	}
	return next, nil
}

func streamNames(streams []Stream) string {
	names := make([]string, len(streams))
	for i, s := range streams {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}
