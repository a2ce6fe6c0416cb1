package pinpoints

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError reports a malformed line in a vector, metadata, assignment,
// weight or regions file. It is fatal for the file being parsed.
type ParseError struct {
	File string // empty when parsing an anonymous stream
	Line int    // 1-based; 0 when not tied to a line
	Msg  string
}

func (e *ParseError) Error() string {
	name := e.File
	if name == "" {
		name = "<input>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s line %d: %s", name, e.Line, e.Msg)
	}
	return fmt.Sprintf("parse error in %s: %s", name, e.Msg)
}

// ConsistencyError reports clustering input whose parts disagree, most
// commonly assignment and weight files naming different region sets.
type ConsistencyError struct {
	Reason            string
	AssignmentRegions []int
	WeightRegions     []int
}

func (e *ConsistencyError) Error() string {
	if e.AssignmentRegions == nil && e.WeightRegions == nil {
		return "inconsistent clustering input: " + e.Reason
	}
	return fmt.Sprintf("inconsistent clustering input: %s\n   Simpoint regions: %v\n   Weight regions:   %v",
		e.Reason, e.AssignmentRegions, e.WeightRegions)
}

// MissingInputError reports an expected file that does not exist. Optional
// inputs are skipped with a warning by callers; required ones are fatal.
type MissingInputError struct {
	Path     string
	What     string
	Optional bool
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s does not exist: %s", e.What, e.Path)
}

// ConvergenceExhaustedError reports streams that still had region overlap
// after the pass bound was spent.
type ConvergenceExhaustedError struct {
	Bound   int
	Pass    int
	Streams []string
}

func (e *ConvergenceExhaustedError) Error() string {
	return fmt.Sprintf("too many iterations: overlap remains after %d passes (bound %d) for: %s",
		e.Pass-1, e.Bound, strings.Join(e.Streams, ", "))
}

// JobFailureError reports an external job that exited non-zero or could not
// be started. ExitCode is copied through to the process exit status.
type JobFailureError struct {
	Label    string
	ExitCode int
	Err      error
}

func (e *JobFailureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job %q failed (exit %d): %v", e.Label, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("job %q failed (exit %d)", e.Label, e.ExitCode)
}

func (e *JobFailureError) Unwrap() error { return e.Err }

// ExitCode maps an error to the process exit status: 0 for nil, the job's own
// code for a failed external job, -1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var jf *JobFailureError
	if errors.As(err, &jf) && jf.ExitCode != 0 {
		return jf.ExitCode
	}
	return -1
}

// IsOptionalMissing reports whether err is a MissingInputError for an input
// that callers may skip.
func IsOptionalMissing(err error) bool {
	var mi *MissingInputError
	return errors.As(err, &mi) && mi.Optional
}
