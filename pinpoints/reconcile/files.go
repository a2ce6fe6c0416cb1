package reconcile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pinplay-tools/pinpoints/pinpoints"
)

// Marker suffix identifying a trace in a whole-program directory.
const addressExt = ".address"

var tidSuffixRe = regexp.MustCompile(`\.\d+$`)

// FileRepository keeps region files next to the traces:
//
//	<dir>/<name>.Data/<name>.pinpoints.csv                  synthesized regions
//	<dir>/<name>.Data/<name>.pinpoints.in.csv               input of the next pass
//	<dir>/<name>.Data/<name>.pinpoints.out.csv              overlap report of the last pass
//	<dir>/<name>.Data/run-<pass>_missing_<name>.pinpoints.txt  archived overlap reports
type FileRepository struct {
	Root   string // directory holding the whole-program directories
	Filter string // streams whose name contains Filter are ignored
}

// Paths are the files of one stream.
type Paths struct {
	DataDir    string
	Descriptor string
	In         string
	Out        string
	RegionDir  string // where materialized regions are written
}

// Paths returns the file locations of s.
func (r *FileRepository) Paths(s Stream) Paths {
	data := filepath.Join(s.Dir, s.Name+".Data")
	base := filepath.Join(data, s.Name+".pinpoints")
	return Paths{
		DataDir:    data,
		Descriptor: base + ".csv",
		In:         base + ".in.csv",
		Out:        base + ".out.csv",
		RegionDir:  filepath.Join(r.Root, s.Name+".pp"),
	}
}

func (r *FileRepository) archivePath(s Stream, pass int) string {
	return filepath.Join(r.Paths(s).DataDir, fmt.Sprintf("run-%d_missing_%s.pinpoints.txt", pass, s.Name))
}

// Discover finds the traces in every directory under Root whose name starts
// with prefix. A trailing ".<tid>" is stripped from trace names; traces that
// differ only in thread id are one stream. Streams are sorted by name.
func (r *FileRepository) Discover(prefix string) ([]Stream, error) {
	if prefix == "" {
		return nil, fmt.Errorf("whole-program directory prefix must not be empty")
	}
	root := r.Root
	if root == "" {
		root = "."
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}

	seen := map[string]bool{}
	var streams []Stream
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		err := filepath.WalkDir(filepath.Join(root, e.Name()), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), addressExt) {
				return nil
			}
			pinball := strings.TrimSuffix(path, addressExt)
			name := tidSuffixRe.ReplaceAllString(filepath.Base(pinball), "")
			if r.Filter != "" && strings.Contains(name, r.Filter) {
				logrus.Infof("Filtering on string: %s, ignoring trace: %s", r.Filter, pinball)
				return nil
			}
			dir := filepath.Dir(path)
			key := filepath.Join(dir, name)
			if seen[key] {
				logrus.Debugf("trace %s shares stream %s", pinball, key)
				return nil
			}
			seen[key] = true
			streams = append(streams, Stream{Name: name, Pinball: pinball, Dir: dir})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", e.Name(), err)
		}
	}
	sort.Slice(streams, func(i, j int) bool {
		if streams[i].Name != streams[j].Name {
			return streams[i].Name < streams[j].Name
		}
		return streams[i].Dir < streams[j].Dir
	})
	return streams, nil
}

// Descriptor implements Repository.
func (r *FileRepository) Descriptor(s Stream) ([]byte, error) {
	path := r.Paths(s).Descriptor
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &pinpoints.MissingInputError{Path: path, What: "regions CSV file", Optional: true}
	}
	if err != nil {
		return nil, fmt.Errorf("reading regions of %s: %w", s.Name, err)
	}
	return data, nil
}

// PutInput implements Repository.
func (r *FileRepository) PutInput(s Stream, data []byte) error {
	if err := os.WriteFile(r.Paths(s).In, data, 0644); err != nil {
		return fmt.Errorf("writing regions input of %s: %w", s.Name, err)
	}
	return nil
}

// OverlapReport implements Repository.
func (r *FileRepository) OverlapReport(s Stream) ([]byte, error) {
	data, err := os.ReadFile(r.Paths(s).Out)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading overlap report of %s: %w", s.Name, err)
	}
	return data, nil
}

// ArchiveOverlapReport implements Repository.
func (r *FileRepository) ArchiveOverlapReport(s Stream, pass int) error {
	if err := os.Rename(r.Paths(s).Out, r.archivePath(s, pass)); err != nil {
		return fmt.Errorf("archiving overlap report of %s: %w", s.Name, err)
	}
	return nil
}

// Discard implements Repository.
func (r *FileRepository) Discard(s Stream) error {
	p := r.Paths(s)
	var errs []error
	for _, path := range []string{p.In, p.Out} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
