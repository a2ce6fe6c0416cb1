package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pinplay-tools/pinpoints/pinpoints"
	"github.com/pinplay-tools/pinpoints/pinpoints/config"
	"github.com/pinplay-tools/pinpoints/pinpoints/jobs"
	"github.com/pinplay-tools/pinpoints/pinpoints/reconcile"
)

// StateFileName is the state document gen-regions writes for its jobs.
const StateFileName = "pinpoints.state.yaml"

var (
	wpRoot   string // Directory holding the whole-program directories
	wpPrefix string // Name prefix of whole-program directories
)

var maxClustersCmd = &cobra.Command{
	Use:   "max-clusters",
	Short: "Print the largest region count among the traces' regions CSV files",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := reconcile.ScanMaxClusters(cmd.Context(), wpRoot, wpPrefix)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
		return err
	},
}

var genRegionsCmd = &cobra.Command{
	Use:   "gen-regions",
	Short: "Materialize the regions of every trace, regenerating overlapping regions",
	Long: "Run the materializer command for every trace found under the whole-program " +
		"directories. Traces whose regions overlap are regenerated from the overlap report " +
		"until no overlap remains or the largest cluster count is exceeded.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		_, err = generateRegions(cmd.Context(), wpRoot, wpPrefix, cfg, nil)
		return err
	},
}

// generateRegions discovers the traces under root and reconciles their
// regions. A nil runner runs jobs through the shell, or lists them when
// cfg.List is set.
func generateRegions(ctx context.Context, root, prefix string, cfg *config.Config, runner jobs.Runner) (*reconcile.Outcome, error) {
	repo := &reconcile.FileRepository{Root: root, Filter: cfg.ReplayFilter}
	streams, err := repo.Discover(prefix)
	if err != nil {
		return nil, err
	}
	if len(streams) == 0 {
		return nil, &pinpoints.MissingInputError{Path: filepath.Join(root, prefix+"*"), What: "traces"}
	}

	st := config.NewState(cfg)
	statePath := filepath.Join(root, StateFileName)
	if err := config.WriteState(statePath, st); err != nil {
		return nil, err
	}
	log := logrus.WithField("run", st.RunID)
	log.Infof("state document: %s", statePath)

	if runner == nil {
		runner = jobs.ExecRunner{}
		if cfg.List {
			runner = jobs.ListRunner{}
		}
	}
	newJob, err := reconcile.CommandJobs(repo, cfg, statePath)
	if err != nil {
		return nil, err
	}
	loop := &reconcile.Loop{
		Repo:     repo,
		Dispatch: jobs.NewScheduler(jobs.Slots(cfg.NumCores), runner),
		NewJob:   newJob,
		ListOnly: cfg.List,
		RunID:    st.RunID,
	}
	out, err := loop.Run(ctx, streams)
	if err != nil {
		return out, err
	}
	if !cfg.List {
		log.Infof("regions generated for %d stream(s) in %d pass(es)", len(out.In(reconcile.Converged)), out.Passes)
		if skipped := out.In(reconcile.Skipped); len(skipped) > 0 {
			log.Warnf("skipped: %v", skipped)
		}
	}
	return out, nil
}

func addWholeProgramFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&wpRoot, "root", ".", "Directory holding the whole-program directories")
	cmd.Flags().StringVar(&wpPrefix, "prefix", "whole_program", "Name prefix of whole-program directories")
}

func init() {
	addWholeProgramFlags(maxClustersCmd)
	addWholeProgramFlags(genRegionsCmd)
	addConfigFlags(genRegionsCmd.Flags(),
		"num_cores", "focus_thread", "warmup_length", "prolog_length", "epilog_length",
		"replayer", "list", "replay_filter")

	rootCmd.AddCommand(maxClustersCmd)
	rootCmd.AddCommand(genRegionsCmd)
}
