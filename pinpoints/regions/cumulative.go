// Package regions turns a frequency-vector trace and a clustering into region
// boundary descriptors, and reads and writes the regions CSV format.
package regions

import (
	"errors"
	"io"

	"github.com/pinplay-tools/pinpoints/pinpoints/fv"
)

// CumulativeTable holds running instruction totals; entry i is the number of
// instructions executed through the i-th slice that executed any.
// Slices with a zero total are not given an entry.
type CumulativeTable []int64

// NewCumulativeTable builds the table from per-slice vectors.
func NewCumulativeTable(vectors []fv.Vector) CumulativeTable {
	var (
		table CumulativeTable
		run   int64
	)
	for _, v := range vectors {
		if sum := v.Total(); sum != 0 {
			run += sum
			table = append(table, run)
		}
	}
	return table
}

// ReadCumulativeTable consumes the slices of r and builds the table without
// holding all vectors in memory.
func ReadCumulativeTable(r *fv.Reader) (CumulativeTable, error) {
	var (
		table CumulativeTable
		run   int64
	)
	for {
		v, err := r.Next()
		if errors.Is(err, io.EOF) {
			return table, nil
		}
		if err != nil {
			return nil, err
		}
		if sum := v.Total(); sum != 0 {
			run += sum
			table = append(table, run)
		}
	}
}

// Slices returns the number of slices with a non-zero total.
func (t CumulativeTable) Slices() int { return len(t) }

// Total returns the instruction count of the whole trace.
func (t CumulativeTable) Total() int64 {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1]
}

// Bounds returns the first and last instruction of slice. The first slice
// starts at instruction 0; every other slice starts one past the previous
// slice's cumulative count.
func (t CumulativeTable) Bounds(slice int) (start, end int64, ok bool) {
	if slice < 0 || slice >= len(t) {
		return 0, 0, false
	}
	if slice > 0 {
		start = t[slice-1] + 1
	}
	return start, t[slice], true
}
