// internal/cache/cache.go
package cache

import "github.com/sungw5/lcfs/internal/device"

// Cache holds copies of device blocks keyed by address.
// A cache may miss at any time; the caller must then go to the device.
type Cache interface {
	Lookup(a device.Address) ([]byte, bool)
	Insert(a device.Address, block []byte) error
	Close() error
}

// New returns a Nop cache for maxBlocks <= 0 and an LRU otherwise.
func New(maxBlocks int) Cache {
	if maxBlocks <= 0 {
		return Nop{}
	}
	return NewLRU(maxBlocks)
}

// Nop never holds anything.
type Nop struct{}

func (Nop) Lookup(device.Address) ([]byte, bool) { return nil, false }
func (Nop) Insert(device.Address, []byte) error { return nil }
func (Nop) Close() error { return nil }
