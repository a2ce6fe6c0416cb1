// Package zfile opens input files that may be gzip, zstd or bzip2 compressed.
// The format is detected from the leading magic bytes, not the file name.
package zfile

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/pinplay-tools/pinpoints/pinpoints"
)

// Format identifies the encoding of an input file.
type Format int

const (
	Plain Format = iota
	Gzip
	Zstd
	Bzip2
)

func (f Format) String() string {
	switch f {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case Bzip2:
		return "bzip2"
	default:
		return "plain"
	}
}

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	zstdMagic  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	bzip2Magic = []byte("BZh")
)

// Detect classifies a header of at least four bytes.
func Detect(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return Gzip
	case bytes.HasPrefix(header, zstdMagic):
		return Zstd
	case bytes.HasPrefix(header, bzip2Magic):
		return Bzip2
	default:
		return Plain
	}
}

// File is an opened, possibly decompressing, input.
// Only plain files support Seek.
type File struct {
	io.Reader
	Format  Format
	closers []func() error
}

// Close releases the decoder and the underlying file.
func (f *File) Close() error {
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Seek rewinds plain files. Compressed streams cannot seek.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if s, ok := f.Reader.(io.Seeker); ok && f.Format == Plain {
		return s.Seek(offset, whence)
	}
	return 0, fmt.Errorf("%s stream is not seekable", f.Format)
}

// Open opens path and wraps it in the decoder matching its magic bytes.
// A missing file is reported as *pinpoints.MissingInputError.
func Open(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &pinpoints.MissingInputError{Path: path, What: "input file"}
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	header := make([]byte, 4)
	n, err := io.ReadFull(fh, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		_ = fh.Close()
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		_ = fh.Close()
		return nil, fmt.Errorf("rewinding %s: %w", path, err)
	}

	f := &File{Format: Detect(header[:n]), closers: []func() error{fh.Close}}
	switch f.Format {
	case Gzip:
		zr, err := gzip.NewReader(bufio.NewReader(fh))
		if err != nil {
			_ = fh.Close()
			return nil, fmt.Errorf("gzip header in %s: %w", path, err)
		}
		f.Reader = zr
		f.closers = append(f.closers, zr.Close)
	case Zstd:
		zr, err := zstd.NewReader(fh)
		if err != nil {
			_ = fh.Close()
			return nil, fmt.Errorf("zstd header in %s: %w", path, err)
		}
		f.Reader = zr
		f.closers = append(f.closers, func() error { zr.Close(); return nil })
	case Bzip2:
		f.Reader = bzip2.NewReader(bufio.NewReader(fh))
	default:
		f.Reader = fh
	}
	return f, nil
}

// ReadFile returns the decoded contents of path.
func ReadFile(path string) ([]byte, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only file
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
