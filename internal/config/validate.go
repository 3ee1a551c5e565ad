// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/sungw5/lcfs/internal/frame"
	"github.com/sungw5/lcfs/internal/logging"
)

// Register window sizes on a modbus controller.
const (
	CommandWindowRegisters = 4
	DataWindowRegisters    = frame.BlockSize / 2
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: missing")
	}
	c := cfg.LCFS

	// ------------------------------------------------------------
	// BUS
	// ------------------------------------------------------------

	switch c.Bus.Kind {
	case BusSim:
		if err := validateDevices(c.Bus.Devices); err != nil {
			return err
		}

	case BusModbusTCP, BusModbusRTU:
		if c.Bus.Endpoint == "" {
			return fmt.Errorf("bus: kind %s requires endpoint", c.Bus.Kind)
		}
		if len(c.Bus.Devices) > 0 {
			return fmt.Errorf("bus: devices are only valid for kind %s", BusSim)
		}
		if c.Bus.TimeoutMs < 0 {
			return fmt.Errorf("bus: timeout_ms must be >= 0, got %d", c.Bus.TimeoutMs)
		}
		if err := validateWindows(c.Bus.CommandAddress, c.Bus.DataAddress); err != nil {
			return err
		}
		if c.Bus.Kind == BusModbusRTU {
			if err := validateSerial(c.Bus.Serial); err != nil {
				return err
			}
		}

	case "":
		return fmt.Errorf("bus: kind is required")

	default:
		return fmt.Errorf("bus: unknown kind %q", c.Bus.Kind)
	}

	// ------------------------------------------------------------
	// LIMITS
	// ------------------------------------------------------------

	if c.Files.MaxHandles < 0 {
		return fmt.Errorf("files: max_handles must be >= 0, got %d", c.Files.MaxHandles)
	}
	if c.Cache.MaxBlocks < 0 {
		return fmt.Errorf("cache: max_blocks must be >= 0, got %d", c.Cache.MaxBlocks)
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	switch c.Log.Format {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}

	return nil
}

func validateDevices(devs []DeviceConfig) error {
	if len(devs) == 0 {
		return fmt.Errorf("bus: kind %s requires at least one device", BusSim)
	}

	seen := make(map[uint8]bool)
	for _, d := range devs {
		if d.ID >= frame.MaxDevices {
			return fmt.Errorf("device %d: id must be < %d", d.ID, frame.MaxDevices)
		}
		if seen[d.ID] {
			return fmt.Errorf("device %d: duplicate id", d.ID)
		}
		seen[d.ID] = true

		if d.Sectors == 0 || d.Blocks == 0 {
			return fmt.Errorf("device %d: sectors and blocks must be > 0", d.ID)
		}
	}
	return nil
}

// validateWindows rejects overlapping command and data windows (inclusive ranges).
func validateWindows(cmd, data uint16) error {
	cmdStart, cmdEnd := int(cmd), int(cmd)+CommandWindowRegisters-1
	dataStart, dataEnd := int(data), int(data)+DataWindowRegisters-1

	if cmdEnd > 0xFFFF || dataEnd > 0xFFFF {
		return fmt.Errorf("bus: register window past 65535 (command=%d data=%d)", cmd, data)
	}
	if !(cmdEnd < dataStart || cmdStart > dataEnd) {
		return fmt.Errorf(
			"bus: register overlap: command %d-%d overlaps data %d-%d",
			cmdStart, cmdEnd, dataStart, dataEnd,
		)
	}
	return nil
}

func validateSerial(s SerialConfig) error {
	switch s.Parity {
	case "", "N", "E", "O":
	default:
		return fmt.Errorf("serial: parity must be N, E or O, got %q", s.Parity)
	}
	if s.DataBits != 0 && (s.DataBits < 5 || s.DataBits > 8) {
		return fmt.Errorf("serial: data_bits must be 5-8, got %d", s.DataBits)
	}
	if s.StopBits != 0 && s.StopBits != 1 && s.StopBits != 2 {
		return fmt.Errorf("serial: stop_bits must be 1 or 2, got %d", s.StopBits)
	}
	if s.BaudRate < 0 {
		return fmt.Errorf("serial: baud_rate must be >= 0, got %d", s.BaudRate)
	}
	return nil
}
