// Package config resolves the tool configuration from layered sources.
//
// Precedence, highest first: command line flags, the propagated state
// document handed down by a controlling process, the config file, defaults.
// Resolution happens once at startup; the result is a plain Config value.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the resolved configuration.
type Config struct {
	NumCores     int     `yaml:"num_cores" mapstructure:"num_cores"`         // concurrent jobs; 0 = number of CPUs
	FocusThread  int     `yaml:"focus_thread" mapstructure:"focus_thread"`   // -1 = no focus thread
	SliceSize    int64   `yaml:"slice_size" mapstructure:"slice_size"`       // instructions per slice
	MaxK         int     `yaml:"maxk" mapstructure:"maxk"`                   // clustering: maximum number of clusters
	Cutoff       float64 `yaml:"cutoff" mapstructure:"cutoff"`               // clustering: coverage fraction
	WarmupLength int64   `yaml:"warmup_length" mapstructure:"warmup_length"` // materializer margins
	PrologLength int64   `yaml:"prolog_length" mapstructure:"prolog_length"`
	EpilogLength int64   `yaml:"epilog_length" mapstructure:"epilog_length"`
	Replayer     string  `yaml:"replayer" mapstructure:"replayer"`         // materializer command template
	SimPointBin  string  `yaml:"simpoint_bin" mapstructure:"simpoint_bin"` // clustering executable
	ProjectDim   int     `yaml:"project_dim" mapstructure:"project_dim"`
	Seed         int64   `yaml:"seed" mapstructure:"seed"`
	List         bool    `yaml:"list" mapstructure:"list"` // print commands instead of running them
	ReplayFilter string  `yaml:"replay_filter" mapstructure:"replay_filter"`
}

// DefaultReplayer is the materializer command template used when none is
// configured. Paths go through quote so they survive the shell.
const DefaultReplayer = "replay_dir.py --replay_file {{quote .Stream}} --regions_in {{quote .In}} --regions_out {{quote .Out}}" +
	" --warmup {{.Warmup}} --prolog {{.Prolog}} --epilog {{.Epilog}} --focus_thread {{.FocusThread}}" +
	" --log_basename {{quote .RegionDir}} --state {{quote .State}}"

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		NumCores:    0,
		FocusThread: -1,
		SliceSize:   30_000_000,
		MaxK:        20,
		Cutoff:      1.0,
		Replayer:    DefaultReplayer,
		SimPointBin: "simpoint",
		ProjectDim:  15,
		Seed:        42,
	}
}

// Keys lists every configuration key. The matching command line flag is the
// key with underscores replaced by dashes.
var Keys = []string{
	"num_cores", "focus_thread", "slice_size", "maxk", "cutoff",
	"warmup_length", "prolog_length", "epilog_length",
	"replayer", "simpoint_bin", "project_dim", "seed", "list", "replay_filter",
}

// FlagName returns the command line flag name for key.
func FlagName(key string) string { return strings.ReplaceAll(key, "_", "-") }

// Overrides is one partial configuration layer. Nil fields are unset.
type Overrides struct {
	NumCores     *int     `yaml:"num_cores,omitempty"`
	FocusThread  *int     `yaml:"focus_thread,omitempty"`
	SliceSize    *int64   `yaml:"slice_size,omitempty"`
	MaxK         *int     `yaml:"maxk,omitempty"`
	Cutoff       *float64 `yaml:"cutoff,omitempty"`
	WarmupLength *int64   `yaml:"warmup_length,omitempty"`
	PrologLength *int64   `yaml:"prolog_length,omitempty"`
	EpilogLength *int64   `yaml:"epilog_length,omitempty"`
	Replayer     *string  `yaml:"replayer,omitempty"`
	SimPointBin  *string  `yaml:"simpoint_bin,omitempty"`
	ProjectDim   *int     `yaml:"project_dim,omitempty"`
	Seed         *int64   `yaml:"seed,omitempty"`
	List         *bool    `yaml:"list,omitempty"`
	ReplayFilter *string  `yaml:"replay_filter,omitempty"`
}

// OverridesFrom returns a layer that sets every field of c.
func OverridesFrom(c Config) Overrides {
	return Overrides{
		NumCores: &c.NumCores, FocusThread: &c.FocusThread, SliceSize: &c.SliceSize,
		MaxK: &c.MaxK, Cutoff: &c.Cutoff,
		WarmupLength: &c.WarmupLength, PrologLength: &c.PrologLength, EpilogLength: &c.EpilogLength,
		Replayer: &c.Replayer, SimPointBin: &c.SimPointBin, ProjectDim: &c.ProjectDim,
		Seed: &c.Seed, List: &c.List, ReplayFilter: &c.ReplayFilter,
	}
}

// values returns the set fields keyed by configuration key.
func (o Overrides) values() (map[string]any, error) {
	data, err := yaml.Marshal(o)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// decodeStrict decodes YAML into out, failing on unknown fields so that typos
// in a config file are reported instead of ignored. An empty document is valid.
func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadFile reads a YAML config file layer.
func LoadFile(path string) (Overrides, error) {
	var o Overrides
	data, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := decodeStrict(data, &o); err != nil {
		return o, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return o, nil
}

// Sources names the layers to resolve. Empty paths and a nil flag set are skipped.
type Sources struct {
	ConfigFile string
	StateFile  string
	Flags      *pflag.FlagSet
}

// Resolve merges the layers in src over the defaults and validates the result.
func Resolve(src Sources) (*Config, error) {
	v := viper.New()
	def, err := OverridesFrom(Default()).values()
	if err != nil {
		return nil, err
	}
	for k, val := range def {
		v.SetDefault(k, val)
	}

	if src.ConfigFile != "" {
		o, err := LoadFile(src.ConfigFile)
		if err != nil {
			return nil, err
		}
		if err := merge(v, o); err != nil {
			return nil, err
		}
	}
	if src.StateFile != "" {
		st, err := ReadState(src.StateFile)
		if err != nil {
			return nil, err
		}
		if err := merge(v, st.Config); err != nil {
			return nil, err
		}
	}
	if src.Flags != nil {
		for _, key := range Keys {
			if f := src.Flags.Lookup(FlagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", f.Name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("resolving configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func merge(v *viper.Viper, o Overrides) error {
	m, err := o.values()
	if err != nil {
		return err
	}
	return v.MergeConfigMap(m)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.NumCores < 0:
		return &Error{Field: "num_cores", Message: "must be >= 0"}
	case c.FocusThread < -1:
		return &Error{Field: "focus_thread", Message: "must be >= -1"}
	case c.SliceSize < 0:
		return &Error{Field: "slice_size", Message: "must be >= 0"}
	case c.Cutoff < 0 || c.Cutoff > 1:
		return &Error{Field: "cutoff", Message: "must be within [0, 1]"}
	case c.WarmupLength < 0 || c.PrologLength < 0 || c.EpilogLength < 0:
		return &Error{Field: "warmup_length", Message: "region margins must be >= 0"}
	case c.ProjectDim <= 0:
		return &Error{Field: "project_dim", Message: "must be > 0"}
	}
	return nil
}

// ThreadID returns the focus thread, or 0 when there is none.
func (c *Config) ThreadID() int {
	if c.FocusThread < 0 {
		return 0
	}
	return c.FocusThread
}

// Error reports an invalid configuration value.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
