package regions

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pinplay-tools/pinpoints/pinpoints"
)

// Columns is the header row of a regions CSV file.
var Columns = []string{
	"comment", "thread-id", "region-id",
	"simulation-region-start-icount", "simulation-region-end-icount", "region-weight",
}

var commentSliceRe = regexp.MustCompile(`from slice (\d+)`)

// Write prints res in the regions CSV format. origin names the command the
// regions were derived from and goes into the leading comment.
func Write(w io.Writer, res *Result, origin string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Regions based on '%s':\n", origin)
	fmt.Fprintln(bw, strings.Join(Columns, ","))
	for _, d := range res.Regions {
		fmt.Fprintf(bw, "# Region = %d Slice = %d Icount = %d Length = %d Weight = %.5f\n",
			d.RegionID, d.Slice, d.Start, d.Length(), d.Weight)
		fmt.Fprintf(bw, "%s,%d,%d,%d,%d,%.5f\n",
			d.Comment, d.ThreadID, d.RegionID, d.Start, d.End, d.Weight)
	}
	fmt.Fprintf(bw, "# Total instructions in %d regions = %d\n", len(res.Regions), res.SelectedInstructions)
	fmt.Fprintf(bw, "# Total instructions in workload = %d\n", res.TotalInstructions)
	fmt.Fprintf(bw, "# Total slices in workload = %d\n", res.TotalSlices)
	return bw.Flush()
}

// WriteFile writes res to path atomically via a temporary file in the same
// directory.
func WriteFile(path string, res *Result, origin string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating regions file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if err := Write(tmp, res, origin); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing regions file %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing regions file %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

// isHeader reports whether fields is the column header row.
func isHeader(fields []string) bool {
	return strings.TrimSpace(fields[0]) == "comment" || strings.TrimSpace(fields[1]) == "thread-id"
}

// CountClusters counts region lines in a regions CSV or overlap report: lines
// with exactly six comma separated fields after stripping '#' comments,
// excluding the column header. Other lines are ignored.
func CountClusters(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	count := 0
	for sc.Scan() {
		line, _, _ := strings.Cut(sc.Text(), "#")
		fields := strings.Split(line, ",")
		if len(fields) == 6 && !isHeader(fields) {
			count++
		}
	}
	return count, sc.Err()
}

// Read parses the region lines of a regions CSV file. Unlike CountClusters it
// rejects region lines whose numeric fields do not parse.
func Read(r io.Reader, name string) ([]Descriptor, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var out []Descriptor
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, &pinpoints.ParseError{File: name, Msg: err.Error()}
		}
		if len(rec) != len(Columns) || isHeader(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)
		d, err := parseDescriptor(rec)
		if err != nil {
			return nil, &pinpoints.ParseError{File: name, Line: line, Msg: err.Error()}
		}
		out = append(out, d)
	}
}

// ReadFile parses the regions CSV file at path.
func ReadFile(path string) ([]Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &pinpoints.MissingInputError{Path: path, What: "regions CSV file"}
		}
		return nil, fmt.Errorf("opening regions file %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only file
	return Read(f, path)
}

func parseDescriptor(rec []string) (Descriptor, error) {
	d := Descriptor{Comment: rec[0], Slice: -1}
	var err error
	if d.ThreadID, err = strconv.Atoi(strings.TrimSpace(rec[1])); err != nil {
		return d, fmt.Errorf("thread-id %q", rec[1])
	}
	if d.RegionID, err = strconv.Atoi(strings.TrimSpace(rec[2])); err != nil {
		return d, fmt.Errorf("region-id %q", rec[2])
	}
	if d.Start, err = strconv.ParseInt(strings.TrimSpace(rec[3]), 10, 64); err != nil {
		return d, fmt.Errorf("start icount %q", rec[3])
	}
	if d.End, err = strconv.ParseInt(strings.TrimSpace(rec[4]), 10, 64); err != nil {
		return d, fmt.Errorf("end icount %q", rec[4])
	}
	if d.Weight, err = strconv.ParseFloat(strings.TrimSpace(rec[5]), 64); err != nil {
		return d, fmt.Errorf("weight %q", rec[5])
	}
	if d.End < d.Start {
		return d, fmt.Errorf("region %d ends (%d) before it starts (%d)", d.RegionID, d.End, d.Start)
	}
	if m := commentSliceRe.FindStringSubmatch(d.Comment); m != nil {
		d.Slice, _ = strconv.Atoi(m[1])
	}
	return d, nil
}
