// internal/alloc/allocator.go
package alloc

import (
	"fmt"

	"github.com/sungw5/lcfs/internal/device"
	"github.com/sungw5/lcfs/internal/fserr"
)

// Allocator hands out blocks across devices.
//
// Fresh blocks are striped round-robin in discovery order. A file whose last
// block is still only partially written gets that block back, and the cursor is
// pinned to its device so the file keeps filling the same device.
type Allocator struct {
	devices []*device.Descriptor

	cursor    int
	allocated int
	capacity  int
}

// New builds an allocator over the discovered devices. The cursor starts at
// the first device.
func New(devices []*device.Descriptor) *Allocator {
	a := &Allocator{devices: devices}
	for _, d := range devices {
		a.capacity += d.Capacity()
		a.allocated += d.Capacity() - d.Count(device.Free)
	}
	return a
}

// Allocate returns the block the next write should land in.
//
// continuing is the requesting file's last block, or nil.
func (a *Allocator) Allocate(continuing *device.Address) (device.Address, error) {
	if continuing != nil && a.State(*continuing) == device.Allocated {
		if idx, ok := a.index(continuing.Device); ok {
			a.cursor = idx
			return *continuing, nil
		}
	}

	if len(a.devices) == 0 || a.allocated >= a.capacity {
		return device.Address{}, fmt.Errorf("alloc: %d/%d blocks in use: %w", a.allocated, a.capacity, fserr.ErrOutOfSpace)
	}

	for i := 0; i < len(a.devices); i++ {
		idx := (a.cursor + i) % len(a.devices)
		d := a.devices[idx]

		sector, block, ok := d.FirstFree()
		if !ok {
			continue
		}

		d.SetState(sector, block, device.Allocated)
		a.allocated++
		a.cursor = (idx + 1) % len(a.devices)

		return device.Address{Device: d.ID, Sector: sector, Block: block}, nil
	}

	return device.Address{}, fmt.Errorf("alloc: no free block on %d devices: %w", len(a.devices), fserr.ErrOutOfSpace)
}

// MarkFull records that addr was written up to the block boundary.
func (a *Allocator) MarkFull(addr device.Address) {
	d := a.descriptor(addr.Device)
	if d == nil || d.State(addr.Sector, addr.Block) != device.Allocated {
		return
	}
	d.SetState(addr.Sector, addr.Block, device.Full)
}

// State returns the occupancy of addr. Unknown devices read as Full.
func (a *Allocator) State(addr device.Address) device.BlockState {
	d := a.descriptor(addr.Device)
	if d == nil {
		return device.Full
	}
	return d.State(addr.Sector, addr.Block)
}

// Cursor is the discovery index the next fresh block is taken from.
func (a *Allocator) Cursor() int { return a.cursor }

// Allocated is the number of blocks handed out.
func (a *Allocator) Allocated() int { return a.allocated }

// Capacity is the number of blocks across all devices.
func (a *Allocator) Capacity() int { return a.capacity }

// Devices returns the devices in discovery order.
func (a *Allocator) Devices() []*device.Descriptor { return a.devices }

func (a *Allocator) index(id uint8) (int, bool) {
	for i, d := range a.devices {
		if d.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (a *Allocator) descriptor(id uint8) *device.Descriptor {
	if i, ok := a.index(id); ok {
		return a.devices[i]
	}
	return nil
}
