// Package simpoints reads the output of the external SimPoint clustering tool:
// the simpoints file mapping each region (cluster) to its representative slice,
// and the weights file giving each region's share of execution.
package simpoints

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/pinplay-tools/pinpoints/pinpoints"
)

var (
	// "<slice> <region>"
	assignmentRe = regexp.MustCompile(`^\s*(\d+)\D+(\d+)`)
	// "<0.fraction> <region>"
	weightRe = regexp.MustCompile(`^\s*(\d*\.\d+(?:[eE][-+]?\d+)?)\s+(\d+)`)
	// "1 <region>": a single region carrying all the weight
	unitWeightRe = regexp.MustCompile(`^\s*(\d)\s+(\d+)`)
)

// Assignment maps one region to its representative slice.
type Assignment struct {
	Region int
	Slice  int
}

// Weight is the normalized weight of one region.
type Weight struct {
	Region int
	Value  float64
}

// Clustering is the validated output of one clustering run. Assignments keep
// the order in which regions appear in the simpoints file.
type Clustering struct {
	Assignments []Assignment
	Weights     map[int]float64
}

// WeightOf returns the weight of region.
func (c *Clustering) WeightOf(region int) float64 { return c.Weights[region] }

// TotalWeight returns the sum of all region weights; about 1.0 for a well
// formed clustering.
func (c *Clustering) TotalWeight() float64 {
	vals := make([]float64, 0, len(c.Weights))
	for _, w := range c.Weights {
		vals = append(vals, w)
	}
	return floats.Sum(vals)
}

// ReadAssignments parses a simpoints file. Lines that do not hold two
// integers are ignored, except that the first non-empty line must start with
// an integer.
func ReadAssignments(r io.Reader, name string) ([]Assignment, error) {
	var out []Assignment
	err := scanLines(r, func(n int, line string, first bool) error {
		if first {
			fields := strings.Fields(line)
			if _, err := strconv.Atoi(fields[0]); err != nil {
				return &pinpoints.ParseError{File: name, Line: n, Msg: "not a simpoints file: first field is not an integer"}
			}
		}
		m := assignmentRe.FindStringSubmatch(line)
		if m == nil {
			return nil
		}
		slice, err := strconv.Atoi(m[1])
		if err != nil {
			return &pinpoints.ParseError{File: name, Line: n, Msg: fmt.Sprintf("slice %q: %v", m[1], err)}
		}
		region, err := strconv.Atoi(m[2])
		if err != nil {
			return &pinpoints.ParseError{File: name, Line: n, Msg: fmt.Sprintf("region %q: %v", m[2], err)}
		}
		out = append(out, Assignment{Region: region, Slice: slice})
		return nil
	})
	return out, err
}

// ReadWeights parses a weights file. The first line must either start with a
// decimal weight or be two bare integers (weight 1 for a single region).
func ReadWeights(r io.Reader, name string) ([]Weight, error) {
	var out []Weight
	err := scanLines(r, func(n int, line string, first bool) error {
		if first {
			fields := strings.Fields(line)
			if !strings.Contains(fields[0], ".") && !unitWeightRe.MatchString(line) {
				return &pinpoints.ParseError{File: name, Line: n, Msg: "not a weights file: first field is not a weight"}
			}
		}
		m := weightRe.FindStringSubmatch(line)
		if m == nil {
			m = unitWeightRe.FindStringSubmatch(line)
		}
		if m == nil {
			return nil
		}
		w, err := strconv.ParseFloat(m[1], 64)
		if err != nil || w < 0 || w > 1 {
			return &pinpoints.ParseError{File: name, Line: n, Msg: fmt.Sprintf("weight %q outside [0,1]", m[1])}
		}
		region, err := strconv.Atoi(m[2])
		if err != nil {
			return &pinpoints.ParseError{File: name, Line: n, Msg: fmt.Sprintf("region %q: %v", m[2], err)}
		}
		out = append(out, Weight{Region: region, Value: w})
		return nil
	})
	return out, err
}

// CheckRegions verifies that both files describe the same regions. The region
// id sets must be equal and neither file may repeat a region.
func CheckRegions(assignments []Assignment, weights []Weight) error {
	a := make([]int, len(assignments))
	for i, x := range assignments {
		a[i] = x.Region
	}
	w := make([]int, len(weights))
	for i, x := range weights {
		w[i] = x.Region
	}
	if len(a) != len(w) || !sameSet(a, w) {
		return &pinpoints.ConsistencyError{
			Reason:            "regions in the simpoints and weights files are not identical",
			AssignmentRegions: a,
			WeightRegions:     w,
		}
	}
	return nil
}

// Load reads and cross-checks both files.
func Load(assignments io.Reader, assignName string, weights io.Reader, weightName string) (*Clustering, error) {
	as, err := ReadAssignments(assignments, assignName)
	if err != nil {
		return nil, err
	}
	ws, err := ReadWeights(weights, weightName)
	if err != nil {
		return nil, err
	}
	if len(as) == 0 {
		return nil, &pinpoints.ParseError{File: assignName, Msg: "no regions found"}
	}
	if err := CheckRegions(as, ws); err != nil {
		return nil, err
	}
	c := &Clustering{Assignments: as, Weights: make(map[int]float64, len(ws))}
	for _, w := range ws {
		c.Weights[w.Region] = w.Value
	}
	return c, nil
}

func sameSet(a, b []int) bool {
	sa, sb := setOf(a), setOf(b)
	if len(sa) != len(sb) || len(sa) != len(a) {
		return false
	}
	for k := range sa {
		if _, ok := sb[k]; !ok {
			return false
		}
	}
	return true
}

func setOf(xs []int) map[int]struct{} {
	m := make(map[int]struct{}, len(xs))
	for _, x := range xs {
		m[x] = struct{}{}
	}
	return m
}

func scanLines(r io.Reader, fn func(n int, line string, first bool) error) error {
	sc := bufio.NewScanner(r)
	n, first := 0, true
	for sc.Scan() {
		n++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(n, line, first); err != nil {
			return err
		}
		first = false
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
