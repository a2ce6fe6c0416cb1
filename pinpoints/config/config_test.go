package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func flagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	def := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int(FlagName("num_cores"), def.NumCores, "")
	fs.Int(FlagName("focus_thread"), def.FocusThread, "")
	fs.Int(FlagName("maxk"), def.MaxK, "")
	fs.Int64(FlagName("warmup_length"), def.WarmupLength, "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestResolve_DefaultsOnly(t *testing.T) {
	cfg, err := Resolve(Sources{})
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestResolve_Precedence(t *testing.T) {
	// GIVEN a config file, a state document and command line flags that overlap
	file := writeFile(t, "pinpoints.yaml", "num_cores: 2\nmaxk: 30\nwarmup_length: 1000\nfocus_thread: 1\n")
	stateCfg := Default()
	stateCfg.NumCores = 4
	stateCfg.MaxK = 25
	state := NewState(&stateCfg)
	statePath := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, WriteState(statePath, state))
	flags := flagSet(t, "--num-cores=8")

	// WHEN resolved
	cfg, err := Resolve(Sources{ConfigFile: file, StateFile: statePath, Flags: flags})
	require.NoError(t, err)

	// THEN flags beat the state document, which beats the file, which beats defaults
	assert.Equal(t, 8, cfg.NumCores, "flag wins")
	assert.Equal(t, 25, cfg.MaxK, "state document over config file")
	assert.Equal(t, int64(0), cfg.WarmupLength, "state document carries a full config")
	assert.Equal(t, -1, cfg.FocusThread)
}

func TestResolve_FileOverDefault_FlagUnchanged(t *testing.T) {
	file := writeFile(t, "pinpoints.yaml", "maxk: 30\nreplayer: myreplay {{.In}}\n")
	cfg, err := Resolve(Sources{ConfigFile: file, Flags: flagSet(t)})
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.MaxK)
	assert.Equal(t, "myreplay {{.In}}", cfg.Replayer)
	assert.Equal(t, 15, cfg.ProjectDim)
}

func TestResolve_UnknownFieldRejected(t *testing.T) {
	file := writeFile(t, "pinpoints.yaml", "max_k: 30\n")
	_, err := Resolve(Sources{ConfigFile: file})
	assert.Error(t, err)
}

func TestResolve_EmptyFileIsValid(t *testing.T) {
	file := writeFile(t, "pinpoints.yaml", "")
	_, err := Resolve(Sources{ConfigFile: file})
	assert.NoError(t, err)
}

func TestResolve_InvalidValue(t *testing.T) {
	file := writeFile(t, "pinpoints.yaml", "cutoff: 1.5\n")
	_, err := Resolve(Sources{ConfigFile: file})
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cutoff", ce.Field)
}

func TestState_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.EpilogLength = 500
	st := NewState(&cfg)
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, WriteState(path, st))

	got, err := ReadState(path)
	require.NoError(t, err)
	assert.Equal(t, st.RunID, got.RunID)
	require.NotNil(t, got.Config.EpilogLength)
	assert.Equal(t, int64(500), *got.Config.EpilogLength)
}

func TestReadState_WrongVersion(t *testing.T) {
	path := writeFile(t, "state.yaml", "version: 9\nrun_id: x\n")
	_, err := ReadState(path)
	assert.Error(t, err)
}

func TestThreadID(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 0, cfg.ThreadID())
	cfg.FocusThread = 3
	assert.Equal(t, 3, cfg.ThreadID())
}
