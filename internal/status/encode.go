// internal/status/encode.go
package status

import (
	"fmt"

	"github.com/sungw5/lcfs/internal/device"
)

// Rows renders a device occupancy grid, one string per sector.
// No IO. No side effects.
func Rows(d *device.Descriptor) []string {
	rows := make([]string, 0, d.Sectors)
	line := make([]byte, d.Blocks)

	for sec := uint16(0); sec < d.Sectors; sec++ {
		for blk := uint16(0); blk < d.Blocks; blk++ {
			line[blk] = glyph(d.State(sec, blk))
		}
		rows = append(rows, string(line))
	}
	return rows
}

// Summary renders one line per device plus a total line.
func Summary(s Snapshot) []string {
	out := make([]string, 0, len(s.Devices)+1)
	for _, d := range s.Devices {
		out = append(out, fmt.Sprintf(
			"device %2d  secs=%d blks=%d  free=%d allocated=%d full=%d",
			d.ID, d.Sectors, d.Blocks, d.Free, d.Allocated, d.Full,
		))
	}
	out = append(out, fmt.Sprintf("total      %d/%d blocks in use", s.Used, s.Capacity))
	return out
}
