package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// StateVersion is the schema version of the state document.
const StateVersion = 1

// StateEnv names the environment variable child processes read the state
// document path from when no --state flag is given.
const StateEnv = "PINPOINTS_STATE"

// State is the document a controlling process writes for the jobs it
// launches, carrying its resolved configuration.
type State struct {
	Version   int       `yaml:"version"`
	RunID     string    `yaml:"run_id"`
	CreatedAt time.Time `yaml:"created_at"`
	Config    Overrides `yaml:"config"`
}

// NewState captures cfg under a fresh run id.
func NewState(cfg *Config) *State {
	return &State{
		Version:   StateVersion,
		RunID:     uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Config:    OverridesFrom(*cfg),
	}
}

// WriteState writes s to path.
func WriteState(path string, s *State) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling state document: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing state document %s: %w", path, err)
	}
	return nil
}

// ReadState reads and version-checks a state document.
func ReadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading state document %s: %w", path, err)
	}
	var s State
	if err := decodeStrict(data, &s); err != nil {
		return nil, fmt.Errorf("parsing state document %s: %w", path, err)
	}
	if s.Version != StateVersion {
		return nil, fmt.Errorf("state document %s: unsupported version %d (want %d)", path, s.Version, StateVersion)
	}
	return &s, nil
}
