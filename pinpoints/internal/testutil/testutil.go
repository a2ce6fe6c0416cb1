// Package testutil provides shared fixtures for the pinpoints test packages:
// builders for frequency-vector, simpoints, weights and regions CSV files.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// BBV renders a frequency-vector file in which slice i executes totals[i]
// instructions, spread over a single basic block (i+1).
func BBV(totals ...int64) string {
	var sb strings.Builder
	sb.WriteString("# generated by testutil\n")
	for i, total := range totals {
		fmt.Fprintf(&sb, "T:%d:%d\n", i+1, total)
	}
	return sb.String()
}

// Simpoints renders a simpoints file from (slice, region) pairs.
func Simpoints(pairs ...[2]int) string {
	var sb strings.Builder
	for _, p := range pairs {
		fmt.Fprintf(&sb, "%d %d\n", p[0], p[1])
	}
	return sb.String()
}

// Weights renders a weights file; weights[i] is the weight of region regions[i].
func Weights(regions []int, weights []float64) string {
	var sb strings.Builder
	for i, r := range regions {
		fmt.Fprintf(&sb, "%.6f %d\n", weights[i], r)
	}
	return sb.String()
}

// RegionsCSV renders a regions CSV file with n region lines.
func RegionsCSV(n int) string {
	var sb strings.Builder
	sb.WriteString("# Regions based on 'testutil':\n")
	sb.WriteString("comment,thread-id,region-id,simulation-region-start-icount,simulation-region-end-icount,region-weight\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "# Region = %d Slice = %d Icount = %d Length = 100 Weight = 0.10000\n", i, i, i*100)
		fmt.Fprintf(&sb, "Cluster %d from slice %d,0,%d,%d,%d,0.10000\n", i-1, i, i, i*100, i*100+99)
	}
	return sb.String()
}

// WriteFile writes content to dir/name, creating parent directories, and
// returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}
