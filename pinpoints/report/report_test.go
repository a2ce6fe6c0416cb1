package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pinplay-tools/pinpoints/pinpoints/regions"
)

func descriptors(weights ...float64) []regions.Descriptor {
	out := make([]regions.Descriptor, len(weights))
	for i, w := range weights {
		out[i] = regions.Descriptor{
			Comment: "Cluster", RegionID: i + 1, Slice: i,
			Start: int64(i) * 100, End: int64(i)*100 + 99, Weight: w,
		}
	}
	return out
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
		ok      bool
	}{
		{"exact", []float64{0.25, 0.75}, true},
		{"rounded", []float64{0.33333, 0.33333, 0.33333}, true},
		{"short", []float64{0.5, 0.4}, false},
		{"empty", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := Check(Source{Path: "x.csv", Regions: descriptors(tc.weights...)})
			assert.Equal(t, tc.ok, s.OK)
			assert.Equal(t, len(tc.weights), s.Regions)
		})
	}
}

func TestWrite_Workbook(t *testing.T) {
	// GIVEN two regions files, the second with weights that do not sum to 1
	sources := []Source{
		{Path: "a.csv", Regions: descriptors(0.4, 0.6)},
		{Path: "b.csv", Regions: descriptors(0.5)},
	}

	// WHEN the workbook is written
	var buf bytes.Buffer
	summaries, err := Write(&buf, sources)
	require.NoError(t, err)

	// THEN every region is a row and the summary flags the bad file
	require.Len(t, summaries, 2)
	assert.True(t, summaries[0].OK)
	assert.False(t, summaries[1].OK)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(regionsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, regionColumns, rows[0])
	assert.Equal(t, "a.csv", rows[1][0])
	assert.Equal(t, "2", rows[2][3], "region id")
	assert.Equal(t, "b.csv", rows[3][0])

	sum, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	require.Len(t, sum, 3)
	assert.Equal(t, "ok", sum[1][3])
	assert.Equal(t, "weights do not sum to 1", sum[2][3])
}

func TestWrite_NoSources(t *testing.T) {
	var buf bytes.Buffer
	summaries, err := Write(&buf, nil)
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.NotZero(t, buf.Len())
}
