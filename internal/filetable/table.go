// internal/filetable/table.go
package filetable

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sungw5/lcfs/internal/device"
	"github.com/sungw5/lcfs/internal/fserr"
)

// DefaultCapacity is the number of entries a table holds when none is given.
const DefaultCapacity = 100

// Handle identifies a file entry. It equals the entry's slot index.
type Handle int

// Entry is the state of one path. A closed entry keeps its handle, length
// bookkeeping and block mapping for a later reopen.
type Entry struct {
	Handle   Handle
	Path     string
	Open     bool
	Position uint64
	Length   uint64

	// LastBlock is the block the most recent write landed in, nil before any write.
	LastBlock *device.Address

	blocks map[uint64]device.Address
}

// Block returns the physical block backing logical block index li.
func (e *Entry) Block(li uint64) (device.Address, bool) {
	a, ok := e.blocks[li]
	return a, ok
}

// MapBlock records that logical block li lives at a.
func (e *Entry) MapBlock(li uint64, a device.Address) {
	if e.blocks == nil {
		e.blocks = make(map[uint64]device.Address)
	}
	e.blocks[li] = a
}

// Indexes returns the mapped logical block indexes in ascending order.
func (e *Entry) Indexes() []uint64 {
	out := make([]uint64, 0, len(e.blocks))
	for li := range e.blocks {
		out = append(out, li)
	}
	slices.Sort(out)
	return out
}

// Clone returns a deep copy that shares nothing with e.
func (e *Entry) Clone() Entry {
	c := *e
	if e.LastBlock != nil {
		last := *e.LastBlock
		c.LastBlock = &last
	}
	c.blocks = maps.Clone(e.blocks)
	return c
}

// Blocks is the number of mapped logical blocks.
func (e *Entry) Blocks() int { return len(e.blocks) }

// Table is a fixed capacity, flat, path-keyed file table.
// Not safe for concurrent use.
type Table struct {
	slots  []*Entry
	byPath map[string]*Entry
}

// New builds an empty table. capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		slots:  make([]*Entry, capacity),
		byPath: make(map[string]*Entry),
	}
}

// Capacity is the number of slots.
func (t *Table) Capacity() int { return len(t.slots) }

// Open opens path, creating an entry in the first unused slot if needed.
// Reopening a closed path keeps its handle and resets position and length to 0.
func (t *Table) Open(path string) (Handle, error) {
	if path == "" {
		return -1, fmt.Errorf("filetable: empty path: %w", fserr.ErrInvalidArgument)
	}

	if e, ok := t.byPath[path]; ok {
		if e.Open {
			return -1, fmt.Errorf("filetable: %q: %w", path, fserr.ErrAlreadyOpen)
		}
		e.Open = true
		e.Position = 0
		e.Length = 0
		return e.Handle, nil
	}

	for i, slot := range t.slots {
		if slot != nil {
			continue
		}
		e := &Entry{
			Handle: Handle(i),
			Path:   path,
			Open:   true,
		}
		t.slots[i] = e
		t.byPath[path] = e
		return e.Handle, nil
	}

	return -1, fmt.Errorf("filetable: %d entries in use: %w", len(t.slots), fserr.ErrTooManyFiles)
}

// Close marks an open entry closed.
func (t *Table) Close(h Handle) error {
	e, err := t.lookup(h)
	if err != nil {
		return err
	}
	if !e.Open {
		return fmt.Errorf("filetable: handle %d: %w", h, fserr.ErrAlreadyClosed)
	}
	e.Open = false
	return nil
}

// Get returns the open entry for h.
func (t *Table) Get(h Handle) (*Entry, error) {
	e, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	if !e.Open {
		return nil, fmt.Errorf("filetable: handle %d not open: %w", h, fserr.ErrInvalidHandle)
	}
	return e, nil
}

// Lookup returns the entry for path, open or closed.
func (t *Table) Lookup(path string) (*Entry, bool) {
	e, ok := t.byPath[path]
	return e, ok
}

// Entries returns every entry in slot order.
func (t *Table) Entries() []*Entry {
	var out []*Entry
	for _, e := range t.slots {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets every entry.
func (t *Table) Reset() {
	clear(t.slots)
	clear(t.byPath)
}

func (t *Table) lookup(h Handle) (*Entry, error) {
	if h < 0 || int(h) >= len(t.slots) || t.slots[h] == nil {
		return nil, fmt.Errorf("filetable: handle %d: %w", h, fserr.ErrInvalidHandle)
	}
	return t.slots[h], nil
}
