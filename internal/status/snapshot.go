// internal/status/snapshot.go
package status

import "github.com/sungw5/lcfs/internal/device"

// DeviceUsage is the occupancy of one device at snapshot time.
type DeviceUsage struct {
	ID      uint8
	Sectors uint16
	Blocks  uint16

	Free      int
	Allocated int
	Full      int

	// Rows holds one glyph string per sector.
	Rows []string
}

// Snapshot is a point-in-time copy of device occupancy.
// It holds no references into live state.
type Snapshot struct {
	Devices  []DeviceUsage
	Used     int
	Capacity int
}

// FromDevices copies occupancy out of the descriptors, in discovery order.
func FromDevices(devs []*device.Descriptor) Snapshot {
	var s Snapshot

	for _, d := range devs {
		u := DeviceUsage{
			ID:        d.ID,
			Sectors:   d.Sectors,
			Blocks:    d.Blocks,
			Free:      d.Count(device.Free),
			Allocated: d.Count(device.Allocated),
			Full:      d.Count(device.Full),
			Rows:      Rows(d),
		}
		s.Devices = append(s.Devices, u)
		s.Used += u.Allocated + u.Full
		s.Capacity += d.Capacity()
	}

	return s
}
