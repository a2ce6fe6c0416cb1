// Package report exports region boundary descriptors to an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/floats"

	"github.com/pinplay-tools/pinpoints/pinpoints/regions"
)

// WeightTolerance is how far the weights of one file may sum away from 1.
// Weights are written with five decimals, so rounding alone drifts a little.
const WeightTolerance = 1e-3

const (
	regionsSheet = "Regions"
	summarySheet = "Summary"
)

// Source is one regions file to report.
type Source struct {
	Path    string
	Regions []regions.Descriptor
}

// Summary is the weight check of one Source.
type Summary struct {
	Path      string
	Regions   int
	WeightSum float64
	OK        bool
}

// Check sums the weights of src.
func Check(src Source) Summary {
	w := make([]float64, len(src.Regions))
	for i, d := range src.Regions {
		w[i] = d.Weight
	}
	sum := floats.Sum(w)
	return Summary{
		Path:      src.Path,
		Regions:   len(src.Regions),
		WeightSum: sum,
		OK:        len(w) > 0 && math.Abs(sum-1) <= WeightTolerance,
	}
}

var regionColumns = []string{
	"File", "Comment", "Thread", "Region", "Slice",
	"Start icount", "End icount", "Length", "Weight",
}

var summaryColumns = []string{"File", "Regions", "Weight sum", "Status"}

// Write renders sources as a workbook with a Regions sheet, one row per
// region, and a Summary sheet with the weight check of each file. It returns
// the summaries so callers can fail on bad weights.
func Write(w io.Writer, sources []Source) ([]Summary, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	if err := f.SetSheetName("Sheet1", regionsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}
	if err := writeHeader(f, regionsSheet, regionColumns, st.header); err != nil {
		return nil, err
	}
	f.SetColWidth(regionsSheet, "A", "A", 40) //nolint:errcheck // valid columns
	f.SetColWidth(regionsSheet, "B", "B", 28) //nolint:errcheck
	f.SetColWidth(regionsSheet, "F", "H", 16) //nolint:errcheck

	row := 2
	var summaries []Summary
	for _, src := range sources {
		for _, d := range src.Regions {
			cells := []any{src.Path, d.Comment, d.ThreadID, d.RegionID, slice(d), d.Start, d.End, d.Length(), d.Weight}
			if err := setRow(f, regionsSheet, row, cells); err != nil {
				return nil, err
			}
			weight, _ := excelize.CoordinatesToCellName(len(regionColumns), row)
			if err := f.SetCellStyle(regionsSheet, weight, weight, st.weight); err != nil {
				return nil, err
			}
			row++
		}
		s := Check(src)
		if !s.OK {
			logrus.Warnf("weights in %s sum to %.5f", src.Path, s.WeightSum)
		}
		summaries = append(summaries, s)
	}
	if row > 2 {
		// Shade weights by size, like a heatmap.
		last, _ := excelize.CoordinatesToCellName(len(regionColumns), row-1)
		rng := "I2:" + last
		err := f.SetConditionalFormat(regionsSheet, rng, []excelize.ConditionalFormatOptions{{
			Type: "2_color_scale", Criteria: "=",
			MinType: "min", MaxType: "max",
			MinColor: "#FFFFFF", MaxColor: "#63BE7B",
		}})
		if err != nil {
			return nil, err
		}
	}

	if err := writeHeader(f, summarySheet, summaryColumns, st.header); err != nil {
		return nil, err
	}
	f.SetColWidth(summarySheet, "A", "A", 40) //nolint:errcheck
	for i, s := range summaries {
		status, style := "ok", st.ok
		if !s.OK {
			status, style = "weights do not sum to 1", st.bad
		}
		r := i + 2
		if err := setRow(f, summarySheet, r, []any{s.Path, s.Regions, s.WeightSum, status}); err != nil {
			return nil, err
		}
		cell, _ := excelize.CoordinatesToCellName(len(summaryColumns), r)
		if err := f.SetCellStyle(summarySheet, cell, cell, style); err != nil {
			return nil, err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return summaries, nil
}

type styles struct {
	header, weight, ok, bad int
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	if st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return st, err
	}
	fmtWeight := "0.00000"
	if st.weight, err = f.NewStyle(&excelize.Style{CustomNumFmt: &fmtWeight}); err != nil {
		return st, err
	}
	if st.ok, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
	}); err != nil {
		return st, err
	}
	st.bad, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	})
	return st, err
}

func writeHeader(f *excelize.File, sheet string, cols []string, style int) error {
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	if err := setRow(f, sheet, 1, row); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(cols), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

// slice returns the slice recorded in the comment, or an empty cell.
func slice(d regions.Descriptor) any {
	if d.Slice < 0 {
		return ""
	}
	return d.Slice
}
