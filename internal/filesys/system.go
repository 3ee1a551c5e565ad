// internal/filesys/system.go
package filesys

import (
	"fmt"
	"log/slog"

	"github.com/sungw5/lcfs/internal/alloc"
	"github.com/sungw5/lcfs/internal/bus"
	"github.com/sungw5/lcfs/internal/cache"
	"github.com/sungw5/lcfs/internal/device"
	"github.com/sungw5/lcfs/internal/filetable"
	"github.com/sungw5/lcfs/internal/fserr"
	"github.com/sungw5/lcfs/internal/logging"
	"github.com/sungw5/lcfs/internal/status"
)

// Config carries the optional parts of a System.
type Config struct {
	MaxFiles int
	Cache    cache.Cache
	Logger   *slog.Logger
}

// System is one block file store instance: the devices behind one bus,
// their occupancy, the file table and the block cache.
// Not safe for concurrent use.
type System struct {
	dev   *device.Manager
	alloc *alloc.Allocator
	files *filetable.Table
	cache cache.Cache
	log   *slog.Logger
}

// New builds a powered-off System on top of tr.
func New(tr bus.Transport, cfg Config) *System {
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	c := cfg.Cache
	if c == nil {
		c = cache.Nop{}
	}

	return &System{
		dev:   device.NewManager(tr, log),
		files: filetable.New(cfg.MaxFiles),
		cache: c,
		log:   log.With("component", logging.ComponentFilesys),
	}
}

// ---- POWER ----

// Powered reports whether devices are discovered and initialized.
func (s *System) Powered() bool { return s.dev.Ready() }

// PowerOn discovers and initializes devices and starts a fresh file table.
// It is a no-op when already powered.
func (s *System) PowerOn() error {
	if s.dev.Ready() {
		return nil
	}

	if err := s.dev.PowerOn(); err != nil {
		return err
	}

	s.alloc = alloc.New(s.dev.Devices())
	s.files.Reset()

	s.log.Info("powered on",
		"devices", len(s.dev.Devices()),
		"capacity", s.alloc.Capacity(),
	)
	return nil
}

// PowerOff powers the bus down and drops occupancy state.
func (s *System) PowerOff() error {
	err := s.dev.PowerOff()
	s.alloc = nil
	return err
}

// Shutdown powers off if needed and releases the cache.
func (s *System) Shutdown() error {
	var err error
	if s.dev.Ready() {
		err = s.PowerOff()
	}
	if cerr := s.cache.Close(); err == nil {
		err = cerr
	}
	return err
}

// ---- FILES ----

// Open opens path for reading and writing, powering on first if needed.
func (s *System) Open(path string) (filetable.Handle, error) {
	if err := s.PowerOn(); err != nil {
		return -1, err
	}

	h, err := s.files.Open(path)
	if err != nil {
		return -1, err
	}

	s.log.Info("open", "path", path, "handle", h)
	return h, nil
}

// Close closes an open handle. Its blocks and handle are kept for a reopen.
func (s *System) Close(h filetable.Handle) error {
	if err := s.files.Close(h); err != nil {
		return err
	}
	s.log.Info("close", "handle", h)
	return nil
}

// Seek moves the position of h to off. Offsets past the end are allowed;
// a later write there zero-fills the gap, so it reads back as zeros.
func (s *System) Seek(h filetable.Handle, off uint64) (uint64, error) {
	e, err := s.entry(h)
	if err != nil {
		return 0, err
	}
	e.Position = off
	return e.Position, nil
}

// Stat returns a deep copy of the entry for path.
func (s *System) Stat(path string) (filetable.Entry, bool) {
	e, ok := s.files.Lookup(path)
	if !ok {
		return filetable.Entry{}, false
	}
	return e.Clone(), true
}

// Files returns deep copies of every known entry in handle order.
func (s *System) Files() []filetable.Entry {
	var out []filetable.Entry
	for _, e := range s.files.Entries() {
		out = append(out, e.Clone())
	}
	return out
}

// Snapshot copies the current device occupancy.
func (s *System) Snapshot() status.Snapshot {
	if s.alloc == nil {
		return status.Snapshot{}
	}
	return status.FromDevices(s.alloc.Devices())
}

func (s *System) entry(h filetable.Handle) (*filetable.Entry, error) {
	if !s.dev.Ready() {
		return nil, fmt.Errorf("filesys: handle %d: %w", h, fserr.ErrNotPowered)
	}
	return s.files.Get(h)
}
