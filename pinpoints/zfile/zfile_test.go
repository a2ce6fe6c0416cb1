package zfile

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinplay-tools/pinpoints/pinpoints"
)

const payload = "T:1:100 :2:50\nT:3:7\n"

func TestOpen_PlainFile_IsSeekable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.bb")
	require.NoError(t, os.WriteFile(path, []byte(payload), 0644))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, Plain, f.Format)
	first, err := io.ReadAll(f)
	require.NoError(t, err)
	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	second, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, payload, string(first))
	assert.Equal(t, first, second)
}

func TestOpen_Gzip_DecodesTransparently(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(payload))
	require.NoError(t, zw.Close())
	path := filepath.Join(t.TempDir(), "t.bb.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	data, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestOpen_Zstd_DecodesAndRefusesSeek(t *testing.T) {
	zw, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	encoded := zw.EncodeAll([]byte(payload), nil)
	require.NoError(t, zw.Close())
	path := filepath.Join(t.TempDir(), "t.bb.zst")
	require.NoError(t, os.WriteFile(path, encoded, 0644))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, Zstd, f.Format)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
	_, err = f.Seek(0, io.SeekStart)
	assert.Error(t, err)
}

func TestOpen_MissingFile_ReportsMissingInput(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.bb"))
	var mi *pinpoints.MissingInputError
	require.True(t, errors.As(err, &mi))
	assert.False(t, mi.Optional)
}

func TestDetect_ShortHeaders(t *testing.T) {
	assert.Equal(t, Plain, Detect(nil))
	assert.Equal(t, Plain, Detect([]byte{0x1f}))
	assert.Equal(t, Bzip2, Detect([]byte("BZh9")))
}
