package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pinplay-tools/pinpoints/pinpoints/regions"
	"github.com/pinplay-tools/pinpoints/pinpoints/report"
)

var checkWeights bool // Fail when a file's weights do not sum to 1

var reportCmd = &cobra.Command{
	Use:   "report [flags] REGIONS_CSV...",
	Short: "Export regions CSV files to an XLSX workbook",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputPath == "" {
			return fmt.Errorf("--output is required")
		}
		return writeReport(cmd.OutOrStdout(), outputPath, args, checkWeights)
	},
}

// writeReport writes the workbook for paths to output and prints the weight
// check of every file to w.
func writeReport(w io.Writer, output string, paths []string, strict bool) error {
	sources := make([]report.Source, 0, len(paths))
	for _, p := range paths {
		descs, err := regions.ReadFile(p)
		if err != nil {
			return err
		}
		sources = append(sources, report.Source{Path: p, Regions: descs})
	}

	var buf bytes.Buffer
	summaries, err := report.Write(&buf, sources)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}

	var bad []string
	for _, s := range summaries {
		status := "ok"
		if !s.OK {
			status = "MISMATCH"
			bad = append(bad, s.Path)
		}
		fmt.Fprintf(w, "%s: %d regions, weights sum to %.5f (%s)\n", s.Path, s.Regions, s.WeightSum, status)
	}
	if strict && len(bad) > 0 {
		return fmt.Errorf("weights do not sum to 1 in: %s", strings.Join(bad, ", "))
	}
	return nil
}

func init() {
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output XLSX file")
	reportCmd.Flags().BoolVar(&checkWeights, "check", false, "Fail when the weights of a file do not sum to 1")

	rootCmd.AddCommand(reportCmd)
}
