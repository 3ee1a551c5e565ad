// internal/device/manager.go
package device

import (
	"fmt"
	"log/slog"
	"math/bits"

	"github.com/sungw5/lcfs/internal/bus"
	"github.com/sungw5/lcfs/internal/frame"
	"github.com/sungw5/lcfs/internal/fserr"
	"github.com/sungw5/lcfs/internal/logging"
)

// State is the power / discovery state of the Manager.
type State uint8

const (
	StateOff State = iota
	StateProbing
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateProbing:
		return "probing"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Manager drives discovery and moves blocks over the bus.
// Not safe for concurrent use.
type Manager struct {
	tr  bus.Transport
	log *slog.Logger

	state   State
	devices []*Descriptor
}

// NewManager builds a Manager in the Off state.
func NewManager(tr bus.Transport, log *slog.Logger) *Manager {
	if log == nil {
		log = logging.Discard()
	}
	return &Manager{
		tr:  tr,
		log: log.With("component", logging.ComponentDevice),
	}
}

// State returns the current state.
func (m *Manager) State() State { return m.state }

// Ready reports whether discovery completed.
func (m *Manager) Ready() bool { return m.state == StateReady }

// Devices returns the descriptors in discovery order.
func (m *Manager) Devices() []*Descriptor { return m.devices }

// Index returns the discovery position of a device id.
func (m *Manager) Index(id uint8) (int, bool) {
	for i, d := range m.devices {
		if d.ID == id {
			return i, true
		}
	}
	return 0, false
}

// PowerOn runs power-on, probe and per-device init.
// All-or-nothing: any failure leaves the Manager Off with no devices.
func (m *Manager) PowerOn() error {
	if m.state == StateReady {
		return nil
	}

	devices, err := m.discover()
	if err != nil {
		m.state = StateOff
		m.devices = nil
		m.log.Error("power on failed", "err", err)
		return err
	}

	m.devices = devices
	m.state = StateReady
	m.log.Info("devices ready", "count", len(devices))
	return nil
}

func (m *Manager) discover() ([]*Descriptor, error) {
	if _, err := m.command("power on", frame.OpPowerOn, 0); err != nil {
		return nil, err
	}
	m.state = StateProbing
	probe, err := m.command("probe", frame.OpProbe, 0)
	if err != nil {
		return nil, err
	}

	ids := DecodeProbeMask(uint16(probe.Param0))
	if len(ids) == 0 {
		return nil, &fserr.ProtocolError{Op: "probe", Reason: "no devices present"}
	}

	devices := make([]*Descriptor, 0, len(ids))
	for _, id := range ids {
		m.state = StateInitializing

		resp, err := m.command("devinit", frame.OpDevInit, id)
		if err != nil {
			return nil, err
		}

		sectors, blocks := uint16(resp.Param0), uint16(resp.Param1)
		if sectors == 0 || blocks == 0 {
			return nil, &fserr.ProtocolError{
				Op:     "devinit",
				Device: id,
				Reason: fmt.Sprintf("empty geometry secs=%d blks=%d", sectors, blocks),
			}
		}

		m.log.Info("found device", "did", id, "secs", sectors, "blks", blocks)
		devices = append(devices, NewDescriptor(id, sectors, blocks))
	}

	return devices, nil
}

// PowerOff sends power-off and releases every descriptor.
// The descriptors are released even when the bus reports a failure.
func (m *Manager) PowerOff() error {
	_, err := m.command("power off", frame.OpPowerOff, 0)

	m.devices = nil
	m.state = StateOff

	if err != nil {
		m.log.Error("power off failed", "err", err)
		return err
	}
	m.log.Info("powered off")
	return nil
}

// ReadBlock fills buf (frame.BlockSize bytes) from one device block.
func (m *Manager) ReadBlock(a Address, buf []byte) error {
	return m.xfer("read", frame.XferRead, a, buf)
}

// WriteBlock stores buf (frame.BlockSize bytes) into one device block.
func (m *Manager) WriteBlock(a Address, buf []byte) error {
	return m.xfer("write", frame.XferWrite, a, buf)
}

func (m *Manager) xfer(op string, dir uint8, a Address, buf []byte) error {
	if m.state != StateReady {
		return fserr.ErrNotPowered
	}
	if len(buf) != frame.BlockSize {
		return fmt.Errorf("device: %s %s: buffer is %d bytes: %w", op, a, len(buf), fserr.ErrInvalidArgument)
	}

	fail := func(reason string) error {
		m.log.Error("block transfer failed", "op", op, "did", a.Device, "sec", a.Sector, "blk", a.Block, "reason", reason)
		return &fserr.ProtocolError{Op: op, Device: a.Device, Sector: a.Sector, Block: a.Block, Reason: reason}
	}

	resp, err := m.tr.Transfer(frame.Command(frame.OpBlockXfer, a.Device, dir, a.Sector, a.Block), buf)
	if bus.Failed(resp, err) {
		return fail(transportReason(err))
	}
	if f := frame.Decode(resp); !f.Acked(frame.OpBlockXfer) {
		return fail("not acknowledged: " + f.String())
	}

	m.log.Debug("block transfer", "op", op, "did", a.Device, "sec", a.Sector, "blk", a.Block)
	return nil
}

// command performs one control round trip and checks the acknowledgment.
func (m *Manager) command(name string, opcode, deviceID uint8) (frame.Fields, error) {
	resp, err := m.tr.Transfer(frame.Command(opcode, deviceID, 0, 0, 0), nil)
	if bus.Failed(resp, err) {
		return frame.Fields{}, &fserr.ProtocolError{Op: name, Device: deviceID, Reason: transportReason(err)}
	}

	f := frame.Decode(resp)
	if !f.Acked(opcode) {
		return frame.Fields{}, &fserr.ProtocolError{Op: name, Device: deviceID, Reason: "not acknowledged: " + f.String()}
	}

	m.log.Debug("bus command", "op", name, "did", deviceID, "resp", f.String())
	return f, nil
}

func transportReason(err error) string {
	if err != nil {
		return "transport: " + err.Error()
	}
	return "transport failure"
}

// DecodeProbeMask extracts device ids from a presence bitmask by repeatedly
// isolating the lowest set bit. Ids come out in ascending order.
func DecodeProbeMask(mask uint16) []uint8 {
	var ids []uint8
	for mask != 0 {
		low := mask & -mask
		ids = append(ids, uint8(bits.TrailingZeros16(low)))
		mask &^= low
	}
	return ids
}
