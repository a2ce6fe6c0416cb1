package regions

import (
	"fmt"

	"github.com/pinplay-tools/pinpoints/pinpoints"
	"github.com/pinplay-tools/pinpoints/pinpoints/simpoints"
)

// Descriptor is one representative region: the instruction interval to replay
// and the share of execution it stands for.
type Descriptor struct {
	Comment  string
	ThreadID int
	RegionID int
	Slice    int // representative slice; -1 when read back from a file without the comment
	Start    int64
	End      int64
	Weight   float64
}

// Length returns the number of instructions in the region, inclusive.
func (d Descriptor) Length() int64 { return d.End - d.Start + 1 }

// Result is the output of one synthesis pass.
type Result struct {
	Regions              []Descriptor
	TotalSlices          int
	TotalInstructions    int64
	SelectedInstructions int64
}

// Synthesize emits one descriptor per region of c, in the order the regions
// appear in the simpoints file. Output region ids are positional and start at
// 1; they do not carry the clustering tool's own region numbers. Every region
// gets threadID.
func Synthesize(table CumulativeTable, c *simpoints.Clustering, threadID int) (*Result, error) {
	if table.Slices() == 0 {
		return nil, &pinpoints.ParseError{Msg: "frequency vector file has no slices with instructions"}
	}
	res := &Result{
		TotalSlices:       table.Slices(),
		TotalInstructions: table.Total(),
		Regions:           make([]Descriptor, 0, len(c.Assignments)),
	}
	for i, a := range c.Assignments {
		start, end, ok := table.Bounds(a.Slice)
		if !ok {
			return nil, &pinpoints.ConsistencyError{
				Reason: fmt.Sprintf("region %d uses slice %d but the trace has %d slices with instructions",
					a.Region, a.Slice, table.Slices()),
			}
		}
		id := i + 1
		d := Descriptor{
			Comment:  fmt.Sprintf("Cluster %d from slice %d", id-1, a.Slice),
			ThreadID: threadID,
			RegionID: id,
			Slice:    a.Slice,
			Start:    start,
			End:      end,
			Weight:   c.WeightOf(a.Region),
		}
		res.SelectedInstructions += d.Length()
		res.Regions = append(res.Regions, d)
	}
	return res, nil
}
