package fv

import (
	"fmt"
	"sort"

	"github.com/pinplay-tools/pinpoints/pinpoints"
)

// blockIDSlack is how far past the known blocks and dimensions an id may lie
// before the metadata is treated as corrupt.
const blockIDSlack = 1024

// RepairBlocks sorts block metadata by id and fills every id missing below the
// largest one with a zero-instruction placeholder, so that blocks[i].ID == i.
// Duplicate ids keep their first entry. maxDim is the largest dimension seen
// in the slices; an id far beyond both it and the number of blocks is a
// *pinpoints.ParseError.
func RepairBlocks(blocks []Block, maxDim int) ([]Block, error) {
	if len(blocks) == 0 {
		return nil, nil
	}
	sorted := append([]Block(nil), blocks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	maxID := sorted[len(sorted)-1].ID
	if limit := 2*max(maxDim, len(blocks)) + blockIDSlack; maxID >= limit {
		return nil, &pinpoints.ParseError{Msg: fmt.Sprintf(
			"block id %d is out of range: %d blocks listed, largest slice dimension %d",
			maxID+1, len(blocks), maxDim)}
	}
	dense := make([]Block, maxID+1)
	seen := make([]bool, maxID+1)
	for i := range dense {
		dense[i] = Block{ID: i}
	}
	for _, b := range sorted {
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		dense[b.ID] = b
	}
	return dense, nil
}

// maxDim returns the largest dimension used by any of vectors.
func maxDim(vectors []Vector) int {
	most := 0
	for _, v := range vectors {
		for _, c := range v {
			most = max(most, c.Dim)
		}
	}
	return most
}
