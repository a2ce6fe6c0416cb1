package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pinplay-tools/pinpoints/pinpoints"
	"github.com/pinplay-tools/pinpoints/pinpoints/config"
)

var (
	logLevel   string // Log verbosity level
	configFile string // YAML config file
	statePath  string // State document handed down by a controlling process
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "pinpoints",
	Short: "Representative region selection for traced program executions",
	Long: "Synthesize simulation region boundaries from SimPoint clusterings and reconcile " +
		"overlapping regions across many traced streams.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q", logLevel)
		}
		logrus.SetLevel(level)
		return nil
	},
}

// Execute runs the CLI root command and exits with the status mapped from
// the returned error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logrus.Error(err)
		os.Exit(pinpoints.ExitCode(err))
	}
}

// resolveConfig layers flags of cmd over the state document, the config file
// and the defaults.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	state := statePath
	if state == "" {
		state = os.Getenv(config.StateEnv)
	}
	return config.Resolve(config.Sources{ConfigFile: configFile, StateFile: state, Flags: cmd.Flags()})
}

var configUsage = map[string]string{
	"num_cores":     "Concurrent jobs (0 = number of CPUs)",
	"focus_thread":  "Thread the regions belong to (-1 = none)",
	"slice_size":    "Instructions per slice",
	"maxk":          "Maximum number of clusters",
	"cutoff":        "Fraction of execution the chosen clusters must cover",
	"warmup_length": "Warmup instructions before each region",
	"prolog_length": "Prolog instructions before each region",
	"epilog_length": "Epilog instructions after each region",
	"replayer":      "Region materializer command template",
	"simpoint_bin":  "SimPoint executable",
	"project_dim":   "Dimensions to project frequency vectors onto",
	"seed":          "Seed for the random projection",
	"list":          "Print commands instead of running them",
	"replay_filter": "Ignore traces whose name contains this string",
}

// addConfigFlags registers one flag per config key, defaulting to the
// built-in value. Only flags set on the command line override other layers.
func addConfigFlags(fs *pflag.FlagSet, keys ...string) {
	def := config.Default()
	for _, key := range keys {
		name, usage := config.FlagName(key), configUsage[key]
		switch key {
		case "num_cores":
			fs.Int(name, def.NumCores, usage)
		case "focus_thread":
			fs.Int(name, def.FocusThread, usage)
		case "slice_size":
			fs.Int64(name, def.SliceSize, usage)
		case "maxk":
			fs.Int(name, def.MaxK, usage)
		case "cutoff":
			fs.Float64(name, def.Cutoff, usage)
		case "warmup_length":
			fs.Int64(name, def.WarmupLength, usage)
		case "prolog_length":
			fs.Int64(name, def.PrologLength, usage)
		case "epilog_length":
			fs.Int64(name, def.EpilogLength, usage)
		case "replayer":
			fs.String(name, def.Replayer, usage)
		case "simpoint_bin":
			fs.String(name, def.SimPointBin, usage)
		case "project_dim":
			fs.Int(name, def.ProjectDim, usage)
		case "seed":
			fs.Int64(name, def.Seed, usage)
		case "list":
			fs.Bool(name, def.List, usage)
		case "replay_filter":
			fs.String(name, def.ReplayFilter, usage)
		default:
			panic("no flag for config key " + key)
		}
	}
}

// commandLine is recorded in the header of generated regions files.
func commandLine() string {
	return strings.Join(os.Args, " ")
}

// init sets up persistent flags
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "State document of a controlling run (default $"+config.StateEnv+")")
}
