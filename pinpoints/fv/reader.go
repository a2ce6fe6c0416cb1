// Package fv reads frequency-vector files such as basic block vectors (BBV).
//
// Each slice of execution is one line starting with "T:" followed by
// ":dimension:count" tokens. BBV files may end with a block metadata section
// whose lines start with "Block id:" and carry the static instruction count of
// each basic block.
package fv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pinplay-tools/pinpoints/pinpoints"
)

const (
	sliceMarker = "T:"
	blockMarker = "Block id:"
	staticField = "static instructions:"
)

var dimCountRe = regexp.MustCompile(`:\s*(\d+)\s*:\s*(\d+)\s*`)

// Count is one (dimension, count) pair of a slice.
type Count struct {
	Dim   int
	Count int64
}

// Vector is the sparse frequency vector of one slice.
type Vector []Count

// Total returns the sum of all counts in the slice. For BBV files this is the
// number of instructions executed in the slice.
func (v Vector) Total() int64 {
	var sum int64
	for _, c := range v {
		sum += c.Count
	}
	return sum
}

// Block is the static metadata of one dimension (basic block).
type Block struct {
	ID           int   // 0-based
	Instructions int64 // static instructions in the block
}

// Header holds values picked up from non-slice lines while scanning.
type Header struct {
	SliceSize           int64 // from a "SliceSize" line, 0 if absent
	DynamicInstructions int64 // largest "Dynamic" instruction count seen, 0 if absent
}

// Reader yields the slices of a frequency-vector file one at a time, then the
// block metadata. Slice scanning stops at the first "Block id:" line, which is
// kept so Blocks can read the metadata section afterwards.
type Reader struct {
	src  io.Reader
	br   *bufio.Reader
	name string

	line       int
	pending    string
	hasPending bool
	inBlocks   bool
	eof        bool

	header Header
}

// NewReader reads frequency vectors from src. name is used in error messages.
func NewReader(src io.Reader, name string) *Reader {
	return &Reader{src: src, br: bufio.NewReaderSize(src, 1<<16), name: name}
}

// Header returns the header values seen so far.
func (r *Reader) Header() Header { return r.header }

// Reset rewinds the reader to the start of the file. The source must be an
// io.Seeker; compressed inputs have to be reopened instead.
func (r *Reader) Reset() error {
	s, ok := r.src.(io.Seeker)
	if !ok {
		return fmt.Errorf("%s: source is not seekable", r.displayName())
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%s: rewinding: %w", r.displayName(), err)
	}
	r.br.Reset(r.src)
	r.line, r.pending, r.hasPending, r.inBlocks, r.eof = 0, "", false, false, false
	r.header = Header{}
	return nil
}

// Next returns the next slice. It returns io.EOF once the slices are
// exhausted, either at end of file or at the block metadata section.
func (r *Reader) Next() (Vector, error) {
	if r.inBlocks {
		return nil, io.EOF
	}
	for {
		line, err := r.readLine()
		if err != nil {
			return nil, err
		}
		switch {
		case strings.HasPrefix(line, blockMarker):
			r.unread(line)
			r.inBlocks = true
			return nil, io.EOF
		case strings.HasPrefix(line, sliceMarker):
			return r.parseSlice(line)
		default:
			r.noteHeader(line)
		}
	}
}

// Blocks reads the block metadata section. Any slices not yet consumed are
// skipped. A file without metadata yields an empty list.
func (r *Reader) Blocks() ([]Block, error) {
	for !r.inBlocks {
		if _, err := r.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	if !r.inBlocks {
		return nil, nil
	}

	var blocks []Block
	for {
		line, err := r.readLine()
		if errors.Is(err, io.EOF) {
			return blocks, nil
		}
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(line, blockMarker) {
			return blocks, nil
		}
		b, err := r.parseBlock(line)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
}

func (r *Reader) parseSlice(line string) (Vector, error) {
	matches := dimCountRe.FindAllStringSubmatch(line[len(sliceMarker)-1:], -1)
	v := make(Vector, 0, len(matches))
	for _, m := range matches {
		dim, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, r.errorf("dimension %q: %v", m[1], err)
		}
		count, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return nil, r.errorf("count %q: %v", m[2], err)
		}
		v = append(v, Count{Dim: dim, Count: count})
	}
	return v, nil
}

// parseBlock handles lines such as
//
//	Block id: 2233 0x69297ff1:0x69297ff5 static instructions: 2 block count: 1 block size: 5
//
// Block ids are 1-based in the file and returned 0-based.
func (r *Reader) parseBlock(line string) (Block, error) {
	idFields := strings.Fields(strings.TrimPrefix(line, blockMarker))
	if len(idFields) == 0 {
		return Block{}, r.errorf("missing block id")
	}
	id, err := strconv.Atoi(idFields[0])
	if err != nil {
		return Block{}, r.errorf("block id %q: %v", idFields[0], err)
	}
	if id < 1 {
		return Block{}, r.errorf("block id %d must be >= 1", id)
	}
	_, rest, found := strings.Cut(line, staticField)
	if !found {
		return Block{}, r.errorf("missing %q field", staticField)
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Block{}, r.errorf("empty %q field", staticField)
	}
	icount, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || icount < 0 {
		return Block{}, r.errorf("static instruction count %q", fields[0])
	}
	return Block{ID: id - 1, Instructions: icount}, nil
}

func (r *Reader) noteHeader(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	last, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
	if err != nil {
		return
	}
	if strings.Contains(line, "SliceSize") && last > r.header.SliceSize {
		r.header.SliceSize = last
	}
	if strings.Contains(line, "Dynamic") && last > r.header.DynamicInstructions {
		r.header.DynamicInstructions = last
	}
}

func (r *Reader) readLine() (string, error) {
	if r.hasPending {
		r.hasPending = false
		return r.pending, nil
	}
	if r.eof {
		return "", io.EOF
	}
	line, err := r.br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%s: reading: %w", r.displayName(), err)
		}
		r.eof = true
		if line == "" {
			return "", io.EOF
		}
	}
	r.line++
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *Reader) unread(line string) {
	r.pending, r.hasPending = line, true
}

func (r *Reader) errorf(format string, args ...any) error {
	return &pinpoints.ParseError{File: r.name, Line: r.line, Msg: fmt.Sprintf(format, args...)}
}

func (r *Reader) displayName() string {
	if r.name == "" {
		return "<input>"
	}
	return r.name
}

// ReadAll returns every slice and the repaired block metadata of a file.
func ReadAll(r *Reader) ([]Vector, []Block, error) {
	var vectors []Vector
	for {
		v, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		vectors = append(vectors, v)
	}
	blocks, err := r.Blocks()
	if err != nil {
		return nil, nil, err
	}
	repaired, err := RepairBlocks(blocks, maxDim(vectors))
	if err != nil {
		var pe *pinpoints.ParseError
		if errors.As(err, &pe) {
			pe.File = r.name
		}
		return nil, nil, err
	}
	return vectors, repaired, nil
}

// HasSlices reports whether src contains at least one slice line. It is used
// to reject files that are not frequency-vector files before processing.
func HasSlices(src io.Reader) (bool, error) {
	br := bufio.NewReader(src)
	for {
		line, err := br.ReadString('\n')
		if strings.HasPrefix(line, sliceMarker) {
			return true, nil
		}
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}
