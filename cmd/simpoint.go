package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pinplay-tools/pinpoints/pinpoints"
	"github.com/pinplay-tools/pinpoints/pinpoints/config"
	"github.com/pinplay-tools/pinpoints/pinpoints/jobs"
	"github.com/pinplay-tools/pinpoints/pinpoints/regions"
)

// Files SimPoint is told to write, relative to the data directory.
const (
	simpointsFile = "t.simpoints"
	weightsFile   = "t.weights"
	labelsFile    = "t.labels"
	simpointLog   = "simpoint.out"
)

var dataDir string // <name>.Data directory of one trace

var simpointCmd = &cobra.Command{
	Use:   "simpoint",
	Short: "Cluster a frequency-vector file with SimPoint and write its regions CSV file",
	Long: "Run the SimPoint binary on a frequency-vector file inside the trace's data " +
		"directory and synthesize <name>.pinpoints.csv from the clustering it writes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		path, err := runSimPoint(cmd.Context(), fvPath, dataDir, cfg)
		if err != nil {
			return err
		}
		logrus.Infof("Regions CSV file: %s", path)
		return nil
	},
}

// runSimPoint clusters fvFile into dir and writes the regions CSV file there.
// It returns the path of that file.
func runSimPoint(ctx context.Context, fvFile, dir string, cfg *config.Config) (string, error) {
	fvAbs, err := filepath.Abs(fvFile)
	if err != nil {
		return "", err
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return "", &pinpoints.MissingInputError{Path: dir, What: "data directory"}
	}

	table, hdr, err := readCumulativeTable(fvAbs)
	if err != nil {
		return "", err
	}
	sliceSize := hdr.SliceSize
	if sliceSize == 0 {
		sliceSize = cfg.SliceSize
	}
	if err := checkSliceSize(sliceSize, hdr.DynamicInstructions); err != nil {
		return "", err
	}
	logrus.Debugf("%s: %d slices, %d instructions", fvFile, table.Slices(), table.Total())

	var out bytes.Buffer
	job := jobs.Job{Label: "simpoint", Command: simpointCommand(cfg, fvAbs), Dir: dir}
	runner := jobs.ExecRunner{Shell: "sh", Stdout: &out, Stderr: &out}
	code, err := runner.Run(ctx, job)
	if werr := os.WriteFile(filepath.Join(dir, simpointLog), out.Bytes(), 0644); werr != nil {
		logrus.Warnf("saving SimPoint output: %v", werr)
	}
	if err != nil || code != 0 {
		return "", &pinpoints.JobFailureError{Label: job.Label, ExitCode: code, Err: err}
	}
	if lines := errorLines(out.Bytes()); len(lines) > 0 {
		return "", fmt.Errorf("SimPoint failed with an error:\n%s", strings.Join(lines, "\n"))
	}

	c, err := loadClustering(filepath.Join(dir, simpointsFile), filepath.Join(dir, weightsFile))
	if err != nil {
		return "", err
	}
	res, err := regions.Synthesize(table, c, cfg.ThreadID())
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filepath.Base(filepath.Clean(dir)), ".Data")
	path := filepath.Join(dir, name+".pinpoints.csv")
	if err := regions.WriteFile(path, res, commandLine()); err != nil {
		return "", err
	}
	return path, nil
}

func simpointCommand(cfg *config.Config, fvFile string) string {
	args := []string{
		jobs.ShellQuote(cfg.SimPointBin),
		"-loadFVFile", jobs.ShellQuote(fvFile),
		"-coveragePct", strconv.FormatFloat(cfg.Cutoff, 'g', -1, 64),
		"-maxK", strconv.Itoa(cfg.MaxK),
		"-saveSimpoints", simpointsFile,
		"-saveSimpointWeights", weightsFile,
		"-saveLabels", labelsFile,
	}
	return strings.Join(args, " ")
}

// checkSliceSize rejects traces shorter than one slice. Zero means the value
// was not recorded in the file.
func checkSliceSize(sliceSize, dynamic int64) error {
	if sliceSize > 0 && dynamic > 0 && sliceSize > dynamic {
		return fmt.Errorf("slice size is greater than the number of instructions, reduce --slice-size"+
			"\n   Instruction count: %14d\n   Slice size:        %14d", dynamic, sliceSize)
	}
	return nil
}

// errorLines returns the lines of SimPoint output that report an error.
func errorLines(out []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if strings.Contains(sc.Text(), "ERROR") {
			lines = append(lines, sc.Text())
		}
	}
	return lines
}

func init() {
	addInputFlags(simpointCmd, false)
	simpointCmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory of the trace (<name>.Data)")
	_ = simpointCmd.MarkFlagRequired("data-dir")
	addConfigFlags(simpointCmd.Flags(), "maxk", "cutoff", "slice_size", "simpoint_bin", "focus_thread")

	rootCmd.AddCommand(simpointCmd)
}
