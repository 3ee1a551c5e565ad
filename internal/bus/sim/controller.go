// internal/bus/sim/controller.go
package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sungw5/lcfs/internal/frame"
)

// DeviceSpec describes one simulated device.
type DeviceSpec struct {
	ID      uint8
	Sectors uint16
	Blocks  uint16
}

// Controller is an in-memory bus controller speaking the register frame protocol.
// Device contents survive power cycles for the life of the Controller.
type Controller struct {
	mu sync.Mutex

	powered bool
	devices map[uint8]*device

	// FailWhen, when set, makes matching requests return the frame.Failure sentinel.
	FailWhen func(frame.Fields) bool

	requests []frame.Fields
}

type device struct {
	spec        DeviceSpec
	initialized bool
	blocks      map[uint32][]byte
}

// New builds a controller. Ids must be unique and below frame.MaxDevices.
func New(specs []DeviceSpec) (*Controller, error) {
	if len(specs) == 0 {
		return nil, errors.New("sim: at least one device required")
	}

	c := &Controller{devices: make(map[uint8]*device, len(specs))}
	for _, s := range specs {
		if int(s.ID) >= frame.MaxDevices {
			return nil, fmt.Errorf("sim: device id %d out of range", s.ID)
		}
		if s.Sectors == 0 || s.Blocks == 0 {
			return nil, fmt.Errorf("sim: device %d has empty geometry", s.ID)
		}
		if _, dup := c.devices[s.ID]; dup {
			return nil, fmt.Errorf("sim: duplicate device id %d", s.ID)
		}
		c.devices[s.ID] = &device{spec: s, blocks: make(map[uint32][]byte)}
	}
	return c, nil
}

// Transfer implements bus.Transport.
func (c *Controller) Transfer(fr frame.Frame, buf []byte) (frame.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := frame.Decode(fr)
	c.requests = append(c.requests, req)

	if c.FailWhen != nil && c.FailWhen(req) {
		return frame.Failure, nil
	}

	nack := frame.Response(req, false, 0, 0)

	if req.Dir0 != uint64(frame.DirRequest) || req.Dir1 != uint64(frame.DirRequest) {
		return nack, nil
	}

	op := uint8(req.Opcode)

	switch op {
	case frame.OpPowerOn:
		c.powered = true
		for _, d := range c.devices {
			d.initialized = false
		}
		return frame.Response(req, true, 0, 0), nil

	case frame.OpPowerOff:
		if !c.powered {
			return nack, nil
		}
		c.powered = false
		return frame.Response(req, true, 0, 0), nil
	}

	if !c.powered {
		return nack, nil
	}

	switch op {
	case frame.OpProbe:
		var presence uint16
		for id := range c.devices {
			presence |= 1 << id
		}
		return frame.Response(req, true, presence, 0), nil

	case frame.OpDevInit:
		d, ok := c.devices[uint8(req.DeviceID)]
		if !ok {
			return nack, nil
		}
		d.initialized = true
		return frame.Response(req, true, d.spec.Sectors, d.spec.Blocks), nil

	case frame.OpBlockXfer:
		d, ok := c.devices[uint8(req.DeviceID)]
		if !ok || !d.initialized {
			return nack, nil
		}
		sector, block := uint16(req.Param0), uint16(req.Param1)
		if sector >= d.spec.Sectors || block >= d.spec.Blocks {
			return nack, nil
		}
		if len(buf) < frame.BlockSize {
			return nack, nil
		}

		key := d.key(sector, block)
		switch uint8(req.Direction) {
		case frame.XferWrite:
			blk := make([]byte, frame.BlockSize)
			copy(blk, buf)
			d.blocks[key] = blk
		case frame.XferRead:
			blk, ok := d.blocks[key]
			if !ok {
				clear(buf[:frame.BlockSize])
			} else {
				copy(buf, blk)
			}
		default:
			return nack, nil
		}
		return frame.Response(req, true, sector, block), nil
	}

	return nack, nil
}

func (d *device) key(sector, block uint16) uint32 {
	return uint32(sector)*uint32(d.spec.Blocks) + uint32(block)
}

// ---- test / inspection helpers ----

// Peek returns a copy of one stored block. Never written blocks read as zeros.
func (c *Controller) Peek(id uint8, sector, block uint16) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.locate(id, sector, block)
	if err != nil {
		return nil, err
	}
	out := make([]byte, frame.BlockSize)
	if blk, ok := d.blocks[d.key(sector, block)]; ok {
		copy(out, blk)
	}
	return out, nil
}

// Poke stores data directly into a block, bypassing the protocol.
func (c *Controller) Poke(id uint8, sector, block uint16, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.locate(id, sector, block)
	if err != nil {
		return err
	}
	blk := make([]byte, frame.BlockSize)
	copy(blk, data)
	d.blocks[d.key(sector, block)] = blk
	return nil
}

// Requests returns every request frame seen so far, in order.
func (c *Controller) Requests() []frame.Fields {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]frame.Fields, len(c.requests))
	copy(out, c.requests)
	return out
}

// Powered reports the controller power state.
func (c *Controller) Powered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.powered
}

func (c *Controller) locate(id uint8, sector, block uint16) (*device, error) {
	d, ok := c.devices[id]
	if !ok {
		return nil, fmt.Errorf("sim: no device %d", id)
	}
	if sector >= d.spec.Sectors || block >= d.spec.Blocks {
		return nil, fmt.Errorf("sim: block [%d/%d/%d] out of range", id, sector, block)
	}
	return d, nil
}
