package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinplay-tools/pinpoints/pinpoints"
	"github.com/pinplay-tools/pinpoints/pinpoints/config"
	"github.com/pinplay-tools/pinpoints/pinpoints/regions"
)

// fakeSimPoint installs a script standing in for the SimPoint binary.
func fakeSimPoint(t *testing.T, body string) *config.Config {
	t.Helper()
	bin := writeTestFile(t, t.TempDir(), "simpoint", "#!/bin/sh\n"+body)
	require.NoError(t, os.Chmod(bin, 0o755))
	cfg := config.Default()
	cfg.SimPointBin = bin
	return &cfg
}

func TestRunSimPoint_WritesRegionsFile(t *testing.T) {
	// GIVEN a trace's data directory and a clustering tool that picks slices 0 and 2
	root := t.TempDir()
	data := filepath.Join(root, "app.Data")
	require.NoError(t, os.Mkdir(data, 0o755))
	fvFile := writeTestFile(t, root, "app.bb", testBBV)
	cfg := fakeSimPoint(t, "printf '"+`0 0\n2 1\n`+"' > t.simpoints\nprintf '"+`0.4 0\n0.6 1\n`+"' > t.weights\necho clustered\n")

	// WHEN SimPoint is run
	path, err := runSimPoint(context.Background(), fvFile, data, cfg)
	require.NoError(t, err)

	// THEN the regions CSV lands next to the clustering, named after the trace
	assert.Equal(t, filepath.Join(data, "app.pinpoints.csv"), path)
	descs, err := regions.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, 2, descs[1].Slice)
	assert.FileExists(t, filepath.Join(data, simpointLog))
}

func TestRunSimPoint_ErrorInOutput(t *testing.T) {
	root := t.TempDir()
	fvFile := writeTestFile(t, root, "app.bb", testBBV)
	cfg := fakeSimPoint(t, "echo 'ERROR: cannot open file'\n")

	_, err := runSimPoint(context.Background(), fvFile, root, cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot open file")
}

func TestRunSimPoint_ExitCodeCopiedThrough(t *testing.T) {
	root := t.TempDir()
	fvFile := writeTestFile(t, root, "app.bb", testBBV)
	cfg := fakeSimPoint(t, "exit 3\n")

	_, err := runSimPoint(context.Background(), fvFile, root, cfg)

	var jf *pinpoints.JobFailureError
	require.True(t, errors.As(err, &jf))
	assert.Equal(t, 3, pinpoints.ExitCode(err))
}

func TestRunSimPoint_SliceLargerThanTrace(t *testing.T) {
	root := t.TempDir()
	fvFile := writeTestFile(t, root, "app.bb", "SliceSize: 1000\nDynamic instruction count 600\n"+testBBV)
	cfg := fakeSimPoint(t, "exit 0\n")

	_, err := runSimPoint(context.Background(), fvFile, root, cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "slice size is greater")
}

func TestRunSimPoint_MissingDataDir(t *testing.T) {
	root := t.TempDir()
	fvFile := writeTestFile(t, root, "app.bb", testBBV)

	_, err := runSimPoint(context.Background(), fvFile, filepath.Join(root, "nope.Data"), fakeSimPoint(t, ""))

	var mi *pinpoints.MissingInputError
	assert.True(t, errors.As(err, &mi))
}

func TestSimpointCommand(t *testing.T) {
	cfg := config.Default()
	cfg.SimPointBin = "/opt/simpoint/bin/simpoint"
	cfg.Cutoff = 0.9
	cfg.MaxK = 25

	got := simpointCommand(&cfg, "/data/my trace.bb")

	assert.Equal(t, "/opt/simpoint/bin/simpoint -loadFVFile '/data/my trace.bb' -coveragePct 0.9 -maxK 25"+
		" -saveSimpoints t.simpoints -saveSimpointWeights t.weights -saveLabels t.labels", got)
}

func TestErrorLines(t *testing.T) {
	out := []byte("loading\nERROR: bad k\nok\nfatal ERROR again\n")
	assert.Equal(t, []string{"ERROR: bad k", "fatal ERROR again"}, errorLines(out))
}
