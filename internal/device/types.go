// internal/device/types.go
package device

import "fmt"

// BlockState is the occupancy of one device block.
type BlockState uint8

const (
	Free      BlockState = iota // never handed out
	Allocated                   // handed out, written short of the block boundary
	Full                        // written up to the block boundary
)

func (s BlockState) String() string {
	switch s {
	case Free:
		return "free"
	case Allocated:
		return "allocated"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Address is the physical location of one block.
type Address struct {
	Device uint8
	Sector uint16
	Block  uint16
}

func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Device, a.Sector, a.Block)
}

// Descriptor is one device found at power-on, with its occupancy grid.
// The grid is sector-major: occupancy[sector*Blocks+block].
type Descriptor struct {
	ID      uint8
	Sectors uint16
	Blocks  uint16

	occupancy []BlockState
}

// NewDescriptor allocates an all-Free occupancy grid for the given geometry.
func NewDescriptor(id uint8, sectors, blocks uint16) *Descriptor {
	return &Descriptor{
		ID:        id,
		Sectors:   sectors,
		Blocks:    blocks,
		occupancy: make([]BlockState, int(sectors)*int(blocks)),
	}
}

// Capacity is the number of blocks on the device.
func (d *Descriptor) Capacity() int { return len(d.occupancy) }

// Contains reports whether sector/block lie inside the device geometry.
func (d *Descriptor) Contains(sector, block uint16) bool {
	return sector < d.Sectors && block < d.Blocks
}

// State returns the occupancy of one block. Out of range reads as Full
// so that no caller can ever be handed it.
func (d *Descriptor) State(sector, block uint16) BlockState {
	if !d.Contains(sector, block) {
		return Full
	}
	return d.occupancy[d.index(sector, block)]
}

// SetState records the occupancy of one block. Out of range is ignored.
func (d *Descriptor) SetState(sector, block uint16, s BlockState) {
	if !d.Contains(sector, block) {
		return
	}
	d.occupancy[d.index(sector, block)] = s
}

// FirstFree scans in sector-major, then block order.
func (d *Descriptor) FirstFree() (sector, block uint16, ok bool) {
	for i, s := range d.occupancy {
		if s == Free {
			return uint16(i / int(d.Blocks)), uint16(i % int(d.Blocks)), true
		}
	}
	return 0, 0, false
}

// Count returns how many blocks are in state s.
func (d *Descriptor) Count(s BlockState) int {
	n := 0
	for _, v := range d.occupancy {
		if v == s {
			n++
		}
	}
	return n
}

func (d *Descriptor) index(sector, block uint16) int {
	return int(sector)*int(d.Blocks) + int(block)
}
