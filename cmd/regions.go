package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pinplay-tools/pinpoints/pinpoints"
	"github.com/pinplay-tools/pinpoints/pinpoints/fv"
	"github.com/pinplay-tools/pinpoints/pinpoints/regions"
	"github.com/pinplay-tools/pinpoints/pinpoints/simpoints"
	"github.com/pinplay-tools/pinpoints/pinpoints/zfile"
)

var (
	fvPath        string // Frequency-vector file
	simpointsPath string // Slice to region assignment
	weightsPath   string // Region weights
	outputPath    string // Output file; stdout when empty
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Synthesize region boundaries from a frequency-vector file and its clustering",
	Long: "Read a frequency-vector file, a simpoints file and a weights file and print one " +
		"region per cluster in the regions CSV format.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		res, err := synthesizeRegions(fvPath, simpointsPath, weightsPath, cfg.ThreadID())
		if err != nil {
			return err
		}
		if outputPath == "" || outputPath == "-" {
			return regions.Write(cmd.OutOrStdout(), res, commandLine())
		}
		return regions.WriteFile(outputPath, res, commandLine())
	},
}

// synthesizeRegions builds the region boundaries of one trace.
func synthesizeRegions(fvFile, simpointsFile, weightsFile string, threadID int) (*regions.Result, error) {
	table, _, err := readCumulativeTable(fvFile)
	if err != nil {
		return nil, err
	}
	c, err := loadClustering(simpointsFile, weightsFile)
	if err != nil {
		return nil, err
	}
	return regions.Synthesize(table, c, threadID)
}

// readCumulativeTable checks that path holds slices and builds its running
// instruction totals. The header values seen while scanning are returned too.
func readCumulativeTable(path string) (regions.CumulativeTable, fv.Header, error) {
	if err := sniffVectors(path); err != nil {
		return nil, fv.Header{}, err
	}
	f, err := zfile.Open(path)
	if err != nil {
		return nil, fv.Header{}, err
	}
	defer f.Close() //nolint:errcheck // read-only file
	r := fv.NewReader(f, path)
	table, err := regions.ReadCumulativeTable(r)
	return table, r.Header(), err
}

func sniffVectors(path string) error {
	f, err := zfile.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // read-only file
	ok, err := fv.HasSlices(f)
	if err != nil {
		return err
	}
	if !ok {
		return &pinpoints.ParseError{File: path, Msg: "no slice lines (T:), not a frequency-vector file"}
	}
	return nil
}

func loadClustering(simpointsFile, weightsFile string) (*simpoints.Clustering, error) {
	a, err := zfile.Open(simpointsFile)
	if err != nil {
		return nil, err
	}
	defer a.Close() //nolint:errcheck // read-only file
	w, err := zfile.Open(weightsFile)
	if err != nil {
		return nil, err
	}
	defer w.Close() //nolint:errcheck // read-only file
	return simpoints.Load(a, simpointsFile, w, weightsFile)
}

func addInputFlags(cmd *cobra.Command, clustering bool) {
	cmd.Flags().StringVar(&fvPath, "fv", "", "Frequency-vector file (plain, gzip, zstd or bzip2)")
	_ = cmd.MarkFlagRequired("fv")
	if clustering {
		cmd.Flags().StringVar(&simpointsPath, "simpoints", "", "Simpoints file (slice, region per line)")
		cmd.Flags().StringVar(&weightsPath, "weights", "", "Weights file (weight, region per line)")
		_ = cmd.MarkFlagRequired("simpoints")
		_ = cmd.MarkFlagRequired("weights")
	}
}

func init() {
	addInputFlags(regionsCmd, true)
	regionsCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output regions CSV file (default stdout)")
	addConfigFlags(regionsCmd.Flags(), "focus_thread")

	rootCmd.AddCommand(regionsCmd)
}
