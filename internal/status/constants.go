// internal/status/constants.go
package status

import "github.com/sungw5/lcfs/internal/device"

// Occupancy map glyphs. One glyph per block, one row per sector.
const (
	GlyphFree      = '.'
	GlyphAllocated = '+'
	GlyphFull      = '#'
)

// Legend describes the glyphs.
const Legend = ". free   + allocated (partial)   # full"

func glyph(s device.BlockState) byte {
	switch s {
	case device.Free:
		return GlyphFree
	case device.Allocated:
		return GlyphAllocated
	default:
		return GlyphFull
	}
}
