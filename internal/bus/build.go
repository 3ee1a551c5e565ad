// internal/bus/build.go
package bus

import (
	"fmt"
	"time"

	"github.com/sungw5/lcfs/internal/bus/modbus"
	"github.com/sungw5/lcfs/internal/bus/sim"
	"github.com/sungw5/lcfs/internal/config"
)

// Build constructs the transport a normalized bus config describes.
// The returned close function releases the connection and is never nil.
func Build(cfg config.BusConfig) (Transport, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Kind {
	case config.BusSim:
		specs := make([]sim.DeviceSpec, 0, len(cfg.Devices))
		for _, d := range cfg.Devices {
			specs = append(specs, sim.DeviceSpec{ID: d.ID, Sectors: d.Sectors, Blocks: d.Blocks})
		}
		c, err := sim.New(specs)
		if err != nil {
			return nil, noop, fmt.Errorf("bus: %w", err)
		}
		return c, noop, nil

	case config.BusModbusTCP, config.BusModbusRTU:
		mode := "tcp"
		if cfg.Kind == config.BusModbusRTU {
			mode = "rtu"
		}
		t, err := modbus.New(modbus.Config{
			Mode:           mode,
			Endpoint:       cfg.Endpoint,
			UnitID:         cfg.UnitID,
			Timeout:        time.Duration(cfg.TimeoutMs) * time.Millisecond,
			CommandAddress: cfg.CommandAddress,
			DataAddress:    cfg.DataAddress,
			BaudRate:       cfg.Serial.BaudRate,
			DataBits:       cfg.Serial.DataBits,
			Parity:         cfg.Serial.Parity,
			StopBits:       cfg.Serial.StopBits,
		})
		if err != nil {
			return nil, noop, err
		}
		return t, t.Close, nil
	}

	return nil, noop, fmt.Errorf("bus: unknown kind %q", cfg.Kind)
}
