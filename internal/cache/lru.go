// internal/cache/lru.go
package cache

import (
	"container/list"
	"errors"

	"github.com/sungw5/lcfs/internal/device"
)

// Stats counts lookups.
type Stats struct {
	Hits   int
	Misses int
}

// LRU is a bounded least-recently-used block cache.
// Blocks are copied on the way in and on the way out.
type LRU struct {
	max     int
	order   *list.List
	entries map[device.Address]*list.Element
	stats   Stats
}

type lruEntry struct {
	addr  device.Address
	block []byte
}

// NewLRU builds an LRU holding at most maxBlocks blocks.
func NewLRU(maxBlocks int) *LRU {
	return &LRU{
		max:     maxBlocks,
		order:   list.New(),
		entries: make(map[device.Address]*list.Element, maxBlocks),
	}
}

func (c *LRU) Lookup(a device.Address) ([]byte, bool) {
	el, ok := c.entries[a]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	c.order.MoveToFront(el)

	src := el.Value.(*lruEntry).block
	out := make([]byte, len(src))
	copy(out, src)
	return out, true
}

func (c *LRU) Insert(a device.Address, block []byte) error {
	if c.entries == nil {
		return errors.New("cache: closed")
	}

	cp := make([]byte, len(block))
	copy(cp, block)

	if el, ok := c.entries[a]; ok {
		el.Value.(*lruEntry).block = cp
		c.order.MoveToFront(el)
		return nil
	}

	c.entries[a] = c.order.PushFront(&lruEntry{addr: a, block: cp})

	for c.order.Len() > c.max {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.entries, last.Value.(*lruEntry).addr)
	}
	return nil
}

// Close drops every block. Inserting after Close fails.
func (c *LRU) Close() error {
	c.order.Init()
	c.entries = nil
	return nil
}

// Len is the number of cached blocks.
func (c *LRU) Len() int { return c.order.Len() }

// Stats returns hit and miss counters.
func (c *LRU) Stats() Stats { return c.stats }
