package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReport(t *testing.T) {
	// GIVEN one consistent regions file and one whose weights fall short
	dir := t.TempDir()
	good := writeTestFile(t, dir, "good.csv", regionsCSV(4))
	short := writeTestFile(t, dir, "short.csv", "Cluster 0 from slice 1,0,1,0,99,0.50000\n")
	out := filepath.Join(dir, "regions.xlsx")

	// WHEN the report is written without and with --check
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, out, []string{good, short}, false))
	err := writeReport(&bytes.Buffer{}, out, []string{good, short}, true)

	// THEN the workbook exists, the summary names the mismatch and --check fails
	assert.FileExists(t, out)
	assert.Contains(t, buf.String(), "good.csv: 4 regions, weights sum to 1.00000 (ok)")
	assert.Contains(t, buf.String(), "short.csv: 1 regions, weights sum to 0.50000 (MISMATCH)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), short)
}
