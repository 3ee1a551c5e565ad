// internal/bus/modbus/transport.go
package modbus

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/sungw5/lcfs/internal/frame"
)

// ---- REGISTER MAP (protocol-locked) ----

// CommandRegisters is the size of the command window: one 64-bit frame,
// register 0 holding frame bits 63..48.
const CommandRegisters = 4

// DataRegisters is the size of the data window: one block.
const DataRegisters = frame.BlockSize / 2

// ChunkRegisters is how many data registers move per request.
// Modbus caps a single request well below DataRegisters.
const ChunkRegisters = 64

// registerClient is the subset of modbus.Client the transport uses.
type registerClient interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
	ReadWriteMultipleRegisters(readAddress, readQuantity, writeAddress, writeQuantity uint16, value []byte) ([]byte, error)
}

// Config is minimal transport config.
type Config struct {
	Mode     string // "tcp" or "rtu"
	Endpoint string // host:port for tcp, serial device path for rtu
	UnitID   uint8
	Timeout  time.Duration

	CommandAddress uint16
	DataAddress    uint16

	// rtu only
	BaudRate int
	DataBits int
	Parity   string
	StopBits int
}

// Transport maps the register frame protocol onto Modbus holding registers.
// It serializes requests: one command and its data window form one transaction.
type Transport struct {
	mu     sync.Mutex
	closer io.Closer
	client registerClient

	cmdAddr  uint16
	dataAddr uint16
}

// New connects a Modbus TCP or RTU handler and wraps it.
func New(cfg Config) (*Transport, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("bus modbus: endpoint required")
	}

	switch cfg.Mode {
	case "tcp":
		h := modbus.NewTCPClientHandler(cfg.Endpoint)
		h.Timeout = cfg.Timeout
		h.SlaveId = cfg.UnitID

		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("bus modbus: connect %s: %w", cfg.Endpoint, err)
		}
		return NewWithClient(cfg, modbus.NewClient(h), h), nil

	case "rtu":
		h := modbus.NewRTUClientHandler(cfg.Endpoint)
		h.BaudRate = cfg.BaudRate
		h.DataBits = cfg.DataBits
		h.Parity = cfg.Parity
		h.StopBits = cfg.StopBits
		h.SlaveId = cfg.UnitID
		h.Timeout = cfg.Timeout

		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("bus modbus: open %s: %w", cfg.Endpoint, err)
		}
		return NewWithClient(cfg, modbus.NewClient(h), h), nil
	}

	return nil, fmt.Errorf("bus modbus: unknown mode %q", cfg.Mode)
}

// NewWithClient wraps an already connected client. closer may be nil.
func NewWithClient(cfg Config, client registerClient, closer io.Closer) *Transport {
	return &Transport{
		closer:   closer,
		client:   client,
		cmdAddr:  cfg.CommandAddress,
		dataAddr: cfg.DataAddress,
	}
}

// Close closes the underlying handler.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// Transfer implements bus.Transport.
//
// Write transfers push the data window first, then the command.
// Read transfers pull the data window only after an acknowledged response.
func (t *Transport) Transfer(fr frame.Frame, buf []byte) (frame.Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	req := frame.Decode(fr)
	xfer := uint8(req.Opcode) == frame.OpBlockXfer

	if xfer && uint8(req.Direction) == frame.XferWrite {
		if len(buf) < frame.BlockSize {
			return frame.Failure, errors.New("bus modbus: write buffer shorter than a block")
		}
		if err := t.writeData(buf[:frame.BlockSize]); err != nil {
			return frame.Failure, err
		}
	}

	raw, err := t.client.ReadWriteMultipleRegisters(
		t.cmdAddr, CommandRegisters,
		t.cmdAddr, CommandRegisters,
		packFrame(fr),
	)
	if err != nil {
		return frame.Failure, fmt.Errorf("bus modbus: command round trip: %w", err)
	}
	if len(raw) < 2*CommandRegisters {
		return frame.Failure, fmt.Errorf("bus modbus: short command response: %d bytes", len(raw))
	}

	resp := unpackFrame(raw)

	if xfer && uint8(req.Direction) == frame.XferRead && frame.Decode(resp).Acked(frame.OpBlockXfer) {
		if len(buf) < frame.BlockSize {
			return frame.Failure, errors.New("bus modbus: read buffer shorter than a block")
		}
		if err := t.readData(buf[:frame.BlockSize]); err != nil {
			return frame.Failure, err
		}
	}

	return resp, nil
}

// ---- data window ----

func (t *Transport) writeData(block []byte) error {
	for reg := 0; reg < DataRegisters; reg += ChunkRegisters {
		addr := t.dataAddr + uint16(reg)
		chunk := block[2*reg : 2*(reg+ChunkRegisters)]

		if _, err := t.client.WriteMultipleRegisters(addr, ChunkRegisters, chunk); err != nil {
			return fmt.Errorf("bus modbus: write data addr=%d: %w", addr, err)
		}
	}
	return nil
}

func (t *Transport) readData(block []byte) error {
	for reg := 0; reg < DataRegisters; reg += ChunkRegisters {
		addr := t.dataAddr + uint16(reg)

		raw, err := t.client.ReadHoldingRegisters(addr, ChunkRegisters)
		if err != nil {
			return fmt.Errorf("bus modbus: read data addr=%d: %w", addr, err)
		}
		if len(raw) < 2*ChunkRegisters {
			return fmt.Errorf("bus modbus: short data read addr=%d: %d bytes", addr, len(raw))
		}
		copy(block[2*reg:], raw[:2*ChunkRegisters])
	}
	return nil
}

// ---- helpers (pure geometry) ----

func frameRegisters(fr frame.Frame) []uint16 {
	v := uint64(fr)
	return []uint16{
		uint16(v >> 48),
		uint16(v >> 32),
		uint16(v >> 16),
		uint16(v),
	}
}

func packFrame(fr frame.Frame) []byte {
	return packRegisters(frameRegisters(fr))
}

func unpackFrame(raw []byte) frame.Frame {
	var v uint64
	for _, r := range unpackRegisters(raw[:2*CommandRegisters]) {
		v = v<<16 | uint64(r)
	}
	return frame.Frame(v)
}

// Modbus register memory order (BIG-ENDIAN)
func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
