// internal/workload/builder.go
package workload

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a workload YAML file. Unknown fields are rejected.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workload: %w", err)
	}
	return Parse(raw)
}

// Parse decodes workload YAML.
func Parse(raw []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("workload: decode: %w", err)
	}
	return &f, nil
}

// Build loads path and wires a Runner against fs.
func Build(path string, fs FileSystem, log *slog.Logger) (*Runner, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return New(f.Steps, fs, log)
}
