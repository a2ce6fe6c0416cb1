// Package reconcile drives region materialization for many traced streams and
// resolves overlap between the regions of a stream.
//
// After regions are materialized with their warmup, prolog and epilog margins
// two regions of the same stream may collide. The materializer then writes an
// overlap report listing the regions it could not produce; that report becomes
// the input of the next pass. Passes repeat until no stream reports overlap or
// the largest cluster count of any stream is exceeded.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/pinplay-tools/pinpoints/pinpoints/jobs"
)

// Stream is one traced execution.
type Stream struct {
	Name    string // base name without thread id
	Pinball string // path of the trace, without extension
	Dir     string // directory holding the trace
}

func (s Stream) String() string { return s.Name }

// Repository stores the region files of each stream. The file-system
// implementation is FileRepository; tests use an in-memory one.
type Repository interface {
	// Descriptor returns the regions CSV produced by synthesis. An absent file
	// is a *pinpoints.MissingInputError with Optional set.
	Descriptor(s Stream) ([]byte, error)
	// PutInput stores the regions the next materialization pass works on.
	PutInput(s Stream, data []byte) error
	// OverlapReport returns the overlap report of the last pass, or nil when
	// there is none.
	OverlapReport(s Stream) ([]byte, error)
	// ArchiveOverlapReport moves the overlap report aside, tagged with pass.
	ArchiveOverlapReport(s Stream, pass int) error
	// Discard removes the working input and output of a finished stream.
	Discard(s Stream) error
}

// Dispatcher runs materialization jobs; *jobs.Scheduler implements it.
type Dispatcher interface {
	Submit(ctx context.Context, job jobs.Job) error
	WaitAll(ctx context.Context) error
}

// JobFactory builds the materialization job of stream s for pass.
type JobFactory func(s Stream, pass int) (jobs.Job, error)

// State is the position of a stream in the reconciliation state machine.
type State int

const (
	Seeding State = iota
	Materializing
	Detecting
	Relogging
	Converged
	Exhausted
	Skipped
)

func (s State) String() string {
	switch s {
	case Seeding:
		return "seeding"
	case Materializing:
		return "materializing"
	case Detecting:
		return "detecting"
	case Relogging:
		return "relogging"
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status tracks one stream through the loop.
type Status struct {
	Stream   Stream
	State    State
	Clusters int   // regions in the seeded descriptor
	Pass     int   // last pass the stream took part in
	Overlaps []int // overlap lines reported after each pass
	Err      error // reason for Skipped
}

// Outcome summarizes a reconciliation run.
type Outcome struct {
	Bound    int
	Passes   int
	Statuses []*Status
}

// In returns the names of streams in state st, sorted.
func (o *Outcome) In(st State) []string {
	var names []string
	for _, s := range o.Statuses {
		if s.State == st {
			names = append(names, s.Stream.Name)
		}
	}
	sort.Strings(names)
	return names
}
