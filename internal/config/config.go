// internal/config/config.go
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LCFS LCFSConfig `yaml:"lcfs"`
}

type LCFSConfig struct {
	Bus   BusConfig   `yaml:"bus"`
	Files FilesConfig `yaml:"files"`
	Cache CacheConfig `yaml:"cache"`
	Log   LogConfig   `yaml:"log"`
}

// ---- BUS ----

// Bus kinds.
const (
	BusSim       = "sim"
	BusModbusTCP = "modbus_tcp"
	BusModbusRTU = "modbus_rtu"
)

type BusConfig struct {
	Kind      string `yaml:"kind"`
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// Register windows on the controller (modbus only)
	CommandAddress uint16 `yaml:"command_address"`
	DataAddress    uint16 `yaml:"data_address"`

	Serial SerialConfig `yaml:"serial"`

	// Simulated devices (sim only)
	Devices []DeviceConfig `yaml:"devices"`
}

type SerialConfig struct {
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"`
	StopBits int    `yaml:"stop_bits"`
}

type DeviceConfig struct {
	ID      uint8  `yaml:"id"`
	Sectors uint16 `yaml:"sectors"`
	Blocks  uint16 `yaml:"blocks"`
}

// ---- FILES / CACHE / LOG ----

type FilesConfig struct {
	MaxHandles int `yaml:"max_handles"`
}

type CacheConfig struct {
	MaxBlocks int `yaml:"max_blocks"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and decodes a YAML file. Unknown fields are rejected.
// The result is neither validated nor normalized.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML bytes. Unknown fields are rejected.
func Parse(raw []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}
