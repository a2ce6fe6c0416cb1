package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pinplay-tools/pinpoints/pinpoints/config"
)

var stateCmd = &cobra.Command{
	Use:   "state [STATE_FILE]",
	Short: "Print a state document and the configuration it resolves to",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := statePath
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			path = os.Getenv(config.StateEnv)
		}
		if path == "" {
			return fmt.Errorf("no state document: pass a path, --state or $%s", config.StateEnv)
		}
		return dumpState(cmd.OutOrStdout(), path, configFile)
	},
}

// dumpState prints the state document at path followed by the configuration
// resolved from it and cfgFile.
func dumpState(w io.Writer, path, cfgFile string) error {
	st, err := config.ReadState(path)
	if err != nil {
		return err
	}
	cfg, err := config.Resolve(config.Sources{ConfigFile: cfgFile, StateFile: path})
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(st); err != nil {
		return err
	}
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func init() {
	rootCmd.AddCommand(stateCmd)
}
