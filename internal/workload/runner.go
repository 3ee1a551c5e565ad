// internal/workload/runner.go
package workload

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sungw5/lcfs/internal/filetable"
	"github.com/sungw5/lcfs/internal/fserr"
	"github.com/sungw5/lcfs/internal/logging"
)

// FileSystem is the file API a workload drives.
type FileSystem interface {
	Open(path string) (filetable.Handle, error)
	Close(h filetable.Handle) error
	Read(h filetable.Handle, n int) ([]byte, error)
	Write(h filetable.Handle, data []byte) (int, error)
	Seek(h filetable.Handle, off uint64) (uint64, error)
}

// shadow is the expected content and position of one path.
type shadow struct {
	handle filetable.Handle
	data   []byte
	pos    uint64
}

// Runner executes steps in order against a FileSystem and checks every
// read against a byte model of what was written.
type Runner struct {
	steps []Step
	fs    FileSystem
	log   *slog.Logger

	files map[string]*shadow
}

// New validates steps and returns a Runner. log may be nil.
func New(steps []Step, fs FileSystem, log *slog.Logger) (*Runner, error) {
	if len(steps) == 0 {
		return nil, errors.New("workload: at least one step required")
	}
	for i, s := range steps {
		if err := checkStep(s); err != nil {
			return nil, fmt.Errorf("workload: step %d: %w", i, err)
		}
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Runner{
		steps: steps,
		fs:    fs,
		log:   log,
		files: make(map[string]*shadow),
	}, nil
}

func checkStep(s Step) error {
	switch s.Op {
	case OpOpen, OpClose, OpRead, OpWrite, OpSeek:
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	if s.Path == "" {
		return errors.New("path required")
	}
	if s.Size < 0 {
		return fmt.Errorf("size must be >= 0, got %d", s.Size)
	}
	if s.ExpectError != "" {
		if _, ok := fserr.Kind(s.ExpectError); !ok {
			return fmt.Errorf("unknown expect_error %q", s.ExpectError)
		}
	}
	return nil
}

// Run executes every step once.
// It stops at the first step that fails unexpectedly or reads the wrong bytes.
func (r *Runner) Run() Result {
	res := Result{At: time.Now()}

	for i, s := range r.steps {
		sr := r.step(i, s)
		res.Steps = append(res.Steps, sr)

		if err := r.verdict(s, sr); err != nil {
			res.Err = fmt.Errorf("workload: step %d (%s %s): %w", i, s.Op, s.Path, err)
			r.log.Error("step failed", "step", i, "op", s.Op, "path", s.Path, "err", err)
			return res
		}
		r.log.Debug("step ok", "step", i, "op", s.Op, "path", s.Path, "bytes", sr.Bytes)
	}
	return res
}

// verdict compares the step outcome with its expectation.
func (r *Runner) verdict(s Step, sr StepResult) error {
	if s.ExpectError == "" {
		return sr.Err
	}
	want, _ := fserr.Kind(s.ExpectError)
	if sr.Err == nil {
		return fmt.Errorf("expected %s, got success", s.ExpectError)
	}
	if !errors.Is(sr.Err, want) {
		return fmt.Errorf("expected %s, got %w", s.ExpectError, sr.Err)
	}
	return nil
}

var errMismatch = errors.New("read mismatch")

func (r *Runner) step(i int, s Step) StepResult {
	sr := StepResult{Index: i, Step: s}

	if s.Op == OpOpen {
		h, err := r.fs.Open(s.Path)
		if err != nil {
			sr.Err = err
			return sr
		}
		// reopen truncates
		r.files[s.Path] = &shadow{handle: h}
		return sr
	}

	f, ok := r.files[s.Path]
	if !ok {
		// never opened here: let the file system reject the stale handle
		f = &shadow{handle: -1}
	}

	switch s.Op {
	case OpClose:
		sr.Err = r.fs.Close(f.handle)

	case OpSeek:
		pos, err := r.fs.Seek(f.handle, s.Offset)
		sr.Bytes, sr.Err = pos, err
		if err == nil {
			f.pos = pos
		}

	case OpWrite:
		data := []byte(s.Data)
		if len(data) == 0 {
			data = Pattern(s.Size, byte(i))
		}
		n, err := r.fs.Write(f.handle, data)
		sr.Bytes, sr.Err = uint64(n), err
		if n > 0 {
			f.apply(data[:n])
		}

	case OpRead:
		got, err := r.fs.Read(f.handle, s.Size)
		if err != nil {
			sr.Err = err
			return sr
		}
		sr.Bytes = uint64(len(got))
		want := f.expect(s.Size)
		if !bytes.Equal(got, want) {
			sr.Err = fmt.Errorf("%w at offset %d: %d bytes differ", errMismatch, f.pos, diff(got, want))
			return sr
		}
		f.pos += uint64(len(got))
	}

	return sr
}

// apply records committed bytes at the current position, zero-filling holes.
func (f *shadow) apply(data []byte) {
	end := f.pos + uint64(len(data))
	if end > uint64(len(f.data)) {
		f.data = append(f.data, make([]byte, end-uint64(len(f.data)))...)
	}
	copy(f.data[f.pos:], data)
	f.pos = end
}

// expect returns the n bytes a read at the current position should see.
func (f *shadow) expect(n int) []byte {
	out := make([]byte, n)
	if f.pos < uint64(len(f.data)) {
		copy(out, f.data[f.pos:])
	}
	return out
}

func diff(a, b []byte) int {
	n := 0
	for i := 0; i < max(len(a), len(b)); i++ {
		if i >= len(a) || i >= len(b) || a[i] != b[i] {
			n++
		}
	}
	return n
}

// Pattern returns n deterministic bytes that differ per seed.
func Pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7) + seed*31 + byte(i>>8)
	}
	return out
}
