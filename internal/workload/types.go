// internal/workload/types.go
package workload

import "time"

// Step ops.
const (
	OpOpen  = "open"
	OpClose = "close"
	OpRead  = "read"
	OpWrite = "write"
	OpSeek  = "seek"
)

// Step is one file operation.
// Data wins over Size for writes; Size alone writes a generated pattern.
type Step struct {
	Op          string `yaml:"op"`
	Path        string `yaml:"path"`
	Data        string `yaml:"data"`
	Size        int    `yaml:"size"`
	Offset      uint64 `yaml:"offset"`
	ExpectError string `yaml:"expect_error"`
}

// File is a workload document.
type File struct {
	Steps []Step `yaml:"steps"`
}

// StepResult is the outcome of one executed step.
type StepResult struct {
	Index int
	Step  Step

	// Bytes moved by read or write; new position for seek.
	Bytes uint64

	// Err is what the file system returned, expected or not.
	Err error
}

// Result is produced by one run.
type Result struct {
	At    time.Time
	Steps []StepResult
	Err   error // non-nil means the run stopped early
}

// OK reports whether every step behaved as expected.
func (r Result) OK() bool { return r.Err == nil }
