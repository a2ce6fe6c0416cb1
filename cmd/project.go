package cmd

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/pinplay-tools/pinpoints/pinpoints/fv"
	"github.com/pinplay-tools/pinpoints/pinpoints/zfile"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project frequency vectors onto a few random dimensions",
	Long: "Normalize each slice of a frequency-vector file and project it onto --project-dim " +
		"random dimensions. One row per slice is printed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		if outputPath == "" || outputPath == "-" {
			return projectVectors(cmd.OutOrStdout(), fvPath, cfg.ProjectDim, cfg.Seed)
		}
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outputPath, err)
		}
		if err := projectVectors(f, fvPath, cfg.ProjectDim, cfg.Seed); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	},
}

// projectVectors writes the projection of the frequency-vector file at path.
// The same seed yields the same projection.
func projectVectors(w io.Writer, path string, dim int, seed int64) error {
	if err := sniffVectors(path); err != nil {
		return err
	}
	f, err := zfile.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // read-only file
	m, err := fv.Project(fv.NewReader(f, path), dim, rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}
	return fv.WriteMatrix(w, m)
}

func init() {
	addInputFlags(projectCmd, false)
	projectCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default stdout)")
	addConfigFlags(projectCmd.Flags(), "project_dim", "seed")

	rootCmd.AddCommand(projectCmd)
}
