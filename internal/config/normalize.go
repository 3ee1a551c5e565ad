// internal/config/normalize.go
package config

// Defaults applied by Normalize.
const (
	DefaultMaxHandles = 100
	DefaultTimeoutMs  = 1000
	DefaultBaudRate   = 19200
	DefaultDataBits   = 8
	DefaultParity     = "E"
	DefaultStopBits   = 1
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// Normalize fills in defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	c := &cfg.LCFS

	if c.Files.MaxHandles == 0 {
		c.Files.MaxHandles = DefaultMaxHandles
	}

	// cache.max_blocks = 0 stays 0: no cache

	if c.Bus.Kind == BusModbusTCP || c.Bus.Kind == BusModbusRTU {
		if c.Bus.TimeoutMs == 0 {
			c.Bus.TimeoutMs = DefaultTimeoutMs
		}
	}

	if c.Bus.Kind == BusModbusRTU {
		s := &c.Bus.Serial
		if s.BaudRate == 0 {
			s.BaudRate = DefaultBaudRate
		}
		if s.DataBits == 0 {
			s.DataBits = DefaultDataBits
		}
		if s.Parity == "" {
			s.Parity = DefaultParity
		}
		if s.StopBits == 0 {
			s.StopBits = DefaultStopBits
		}
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
