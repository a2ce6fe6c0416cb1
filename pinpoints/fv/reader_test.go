package fv

import (
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinplay-tools/pinpoints/pinpoints"
)

const sampleBBV = `# SliceSize: 100
T:1:60 :2:40
T:3:0
T:1:150   :4:50
# Dynamic instruction count 300
Block id: 1 0x400000:0x400004 static instructions: 3 block count: 20 block size: 5
Block id: 3 0x400010:0x400018 static instructions: 4 block count: 1 block size: 8
Block id: 4 0x400020:0x400022 static instructions: 1 block count: 50 block size: 2
`

func TestReader_Next_ParsesSlicesUntilBlockSection(t *testing.T) {
	// GIVEN a BBV file with three slices and a metadata section
	r := NewReader(strings.NewReader(sampleBBV), "t.bb")

	// WHEN slices are read until EOF
	var got []Vector
	for {
		v, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, v)
	}

	// THEN every slice is returned with its (dimension, count) pairs
	require.Len(t, got, 3)
	assert.Equal(t, Vector{{Dim: 1, Count: 60}, {Dim: 2, Count: 40}}, got[0])
	assert.Equal(t, int64(0), got[1].Total())
	assert.Equal(t, int64(200), got[2].Total())
	assert.Equal(t, int64(100), r.Header().SliceSize)
}

func TestReader_Blocks_AfterSlices_RebasesAndReads(t *testing.T) {
	r := NewReader(strings.NewReader(sampleBBV), "t.bb")
	vectors, blocks, err := ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, vectors, 3)

	// Ids 1,3,4 in the file become 0,2,3; id 1 is filled in with zero instructions.
	require.Len(t, blocks, 4)
	for i, b := range blocks {
		assert.Equal(t, i, b.ID)
	}
	assert.Equal(t, int64(3), blocks[0].Instructions)
	assert.Equal(t, int64(0), blocks[1].Instructions)
	assert.Equal(t, int64(4), blocks[2].Instructions)
	assert.Equal(t, int64(1), blocks[3].Instructions)
}

func TestReader_Blocks_SkipsUnreadSlices(t *testing.T) {
	r := NewReader(strings.NewReader(sampleBBV), "t.bb")
	blocks, err := r.Blocks()
	require.NoError(t, err)
	assert.Len(t, blocks, 3)
	assert.Equal(t, int64(300), r.Header().DynamicInstructions)
}

func TestReader_NoMetadata_YieldsNoBlocks(t *testing.T) {
	r := NewReader(strings.NewReader("T:1:5\nT:2:6\n"), "")
	vectors, blocks, err := ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Empty(t, blocks)
}

func TestReader_MalformedBlockLine_IsParseError(t *testing.T) {
	input := "T:1:5\nBlock id: 7 0x1:0x2 block count: 3\n"
	r := NewReader(strings.NewReader(input), "bad.bb")
	_, _, err := ReadAll(r)

	var pe *pinpoints.ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, "bad.bb", pe.File)
	assert.Equal(t, 2, pe.Line)
}

func TestReader_Reset_RestartsFromFirstSlice(t *testing.T) {
	r := NewReader(strings.NewReader(sampleBBV), "t.bb")
	first, err := r.Next()
	require.NoError(t, err)
	_, err = r.Blocks()
	require.NoError(t, err)

	require.NoError(t, r.Reset())
	again, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestReader_Reset_NonSeekableSource(t *testing.T) {
	r := NewReader(io.MultiReader(strings.NewReader("T:1:1\n")), "")
	assert.Error(t, r.Reset())
}

func TestRepairBlocks_FillsGapWithZeroInstructions(t *testing.T) {
	// GIVEN metadata for dimensions [0,2,3] in arbitrary order
	in := []Block{{ID: 3, Instructions: 9}, {ID: 0, Instructions: 4}, {ID: 2, Instructions: 7}}

	// WHEN repaired
	got, err := RepairBlocks(in, 4)
	require.NoError(t, err)

	// THEN the sequence is [0,1,2,3] with dimension 1 at zero instructions
	assert.Equal(t, []Block{{0, 4}, {1, 0}, {2, 7}, {3, 9}}, got)
}

func TestRepairBlocks_IDFarBeyondBlocksAndDimensions(t *testing.T) {
	in := []Block{{ID: 0, Instructions: 4}, {ID: 3_999_999_999, Instructions: 1}}

	got, err := RepairBlocks(in, 2)

	var pe *pinpoints.ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Contains(t, pe.Msg, "4000000000")
	assert.Nil(t, got)
}

func TestReader_CorruptBlockID_IsParseError(t *testing.T) {
	// GIVEN a trace whose block metadata names an absurdly large block id
	input := "T:1:5:2:6\nBlock id: 1 0x1:0x2 static instructions: 3 block count: 1\n" +
		"Block id: 4000000000 0x3:0x4 static instructions: 1 block count: 1\n"
	r := NewReader(strings.NewReader(input), "corrupt.bb")

	// WHEN everything is read
	_, _, err := ReadAll(r)

	// THEN the file is rejected instead of allocating billions of blocks
	var pe *pinpoints.ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, "corrupt.bb", pe.File)
}

func TestHasSlices(t *testing.T) {
	ok, err := HasSlices(strings.NewReader("# header\nT:1:2\n"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasSlices(strings.NewReader("# header only\n"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProject_RowsAreDeterministicForSeed(t *testing.T) {
	project := func() [][]float64 {
		r := NewReader(strings.NewReader(sampleBBV), "t.bb")
		m, err := Project(r, 4, rand.New(rand.NewSource(7)))
		require.NoError(t, err)
		rows, cols := m.Dims()
		require.Equal(t, 3, rows)
		require.Equal(t, 4, cols)
		out := make([][]float64, rows)
		for i := range out {
			out[i] = append([]float64(nil), m.RawRowView(i)...)
		}
		return out
	}
	a, b := project(), project()
	assert.Equal(t, a, b)
	// The all-zero slice projects to the origin.
	assert.Equal(t, []float64{0, 0, 0, 0}, a[1])
	for _, v := range a[0] {
		assert.LessOrEqual(t, v, 1.0)
		assert.GreaterOrEqual(t, v, -1.0)
	}
}

func TestWriteMatrix_Format(t *testing.T) {
	r := NewReader(strings.NewReader("T:1:1\n"), "")
	m, err := Project(r, 2, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	var sb strings.Builder
	require.NoError(t, WriteMatrix(&sb, m))
	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Len(t, strings.Fields(lines[0]), 2)
}
