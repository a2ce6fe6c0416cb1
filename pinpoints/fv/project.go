package fv

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/pinplay-tools/pinpoints/pinpoints"
)

// DefaultProjectDim is the number of dimensions slices are projected onto.
const DefaultProjectDim = 15

// Project normalizes each slice by its total count and projects it onto dim
// random dimensions. Every source dimension gets its own random vector with
// values uniform in [-1, 1), drawn from rng the first time that dimension is
// seen. The result has one row per slice.
func Project(r *Reader, dim int, rng *rand.Rand) (*mat.Dense, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("projection dimension must be > 0, got %d", dim)
	}
	basis := make(map[int][]float64)
	var rows [][]float64
	for {
		v, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]float64, dim)
		total := v.Total()
		if total > 0 {
			for _, c := range v {
				vec, ok := basis[c.Dim]
				if !ok {
					vec = make([]float64, dim)
					for i := range vec {
						vec[i] = rng.Float64()*2 - 1
					}
					basis[c.Dim] = vec
				}
				norm := float64(c.Count) / float64(total)
				for i := range row {
					row[i] += norm * vec[i]
				}
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, &pinpoints.ParseError{File: r.name, Msg: "no slices to project"}
	}

	m := mat.NewDense(len(rows), dim, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m, nil
}

// WriteMatrix prints m one row per line, each value formatted as %6.3f.
func WriteMatrix(w io.Writer, m mat.Matrix) error {
	r, c := m.Dims()
	var sb strings.Builder
	for i := 0; i < r; i++ {
		sb.Reset()
		for j := 0; j < c; j++ {
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%6.3f", m.At(i, j))
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
