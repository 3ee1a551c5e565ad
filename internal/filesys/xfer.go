// internal/filesys/xfer.go
package filesys

import (
	"fmt"
	"math"

	"github.com/sungw5/lcfs/internal/device"
	"github.com/sungw5/lcfs/internal/filetable"
	"github.com/sungw5/lcfs/internal/frame"
	"github.com/sungw5/lcfs/internal/fserr"
)

const blockSize = frame.BlockSize

// Read returns exactly n bytes from the current position of h.
// A read that would pass the end of the file fails and moves nothing.
func (s *System) Read(h filetable.Handle, n int) ([]byte, error) {
	e, err := s.entry(h)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("filesys: read %d bytes: %w", n, fserr.ErrInvalidArgument)
	}
	if e.Position > e.Length || uint64(n) > e.Length-e.Position {
		return nil, fmt.Errorf("filesys: read %d bytes at %d of %d: %w",
			n, e.Position, e.Length, fserr.ErrInvalidArgument)
	}

	out := make([]byte, n)
	done := 0

	for done < n {
		li := e.Position / blockSize
		intra := int(e.Position % blockSize)
		chunk := min(n-done, blockSize-intra)

		addr, mapped := e.Block(li)
		if mapped {
			block, err := s.readBlock(addr)
			if err != nil {
				return nil, err
			}
			copy(out[done:done+chunk], block[intra:])
		}
		// unmapped blocks are holes; out is already zero

		done += chunk
		e.Position += uint64(chunk)
	}

	s.log.Info("read", "path", e.Path, "bytes", n, "pos", e.Position)
	return out, nil
}

// Write writes data at the current position of h and returns the number
// of bytes committed. On failure the bytes of blocks written before the
// failing one stay written and are reflected in position and length.
func (s *System) Write(h filetable.Handle, data []byte) (int, error) {
	e, err := s.entry(h)
	if err != nil {
		return 0, err
	}

	if uint64(len(data)) > math.MaxUint64-e.Position {
		return 0, fmt.Errorf("filesys: write %d bytes at %d: %w", len(data), e.Position, fserr.ErrInvalidArgument)
	}
	if len(data) > 0 && e.Position > e.Length {
		if err := s.clearGap(e, e.Length, e.Position-e.Position%blockSize); err != nil {
			return 0, err
		}
	}

	written := 0
	for written < len(data) {
		li := e.Position / blockSize
		intra := int(e.Position % blockSize)
		chunk := min(len(data)-written, blockSize-intra)

		addr, err := s.target(e, li)
		if err != nil {
			return written, err
		}

		block, err := s.readBlock(addr)
		if err != nil {
			return written, err
		}
		if start := li * blockSize; e.Length < e.Position {
			// gap between the old end and this write
			clear(block[max(e.Length, start)-start : intra])
		}
		copy(block[intra:], data[written:written+chunk])

		if err := s.writeBlock(addr, block); err != nil {
			return written, err
		}
		if intra+chunk == blockSize {
			s.alloc.MarkFull(addr)
		}

		last := addr
		e.LastBlock = &last
		e.Position += uint64(chunk)
		written += chunk
		if e.Position > e.Length {
			e.Length = e.Position
		}
	}

	s.log.Info("write", "path", e.Path, "bytes", written, "length", e.Length)
	return written, nil
}

// clearGap zeroes the mapped bytes of e in [from, to). Bytes between the
// end of a file and a write past it must read back as zeros, even when a
// block still holds data from before a reopen.
func (s *System) clearGap(e *filetable.Entry, from, to uint64) error {
	for _, li := range e.Indexes() {
		start := li * blockSize
		if start >= to || start+(blockSize-1) < from {
			continue
		}
		addr, _ := e.Block(li)
		block, err := s.readBlock(addr)
		if err != nil {
			return err
		}
		clear(block[max(from, start)-start : min(to-start, blockSize)])
		if err := s.writeBlock(addr, block); err != nil {
			return err
		}
	}
	return nil
}

// target picks the block that backs logical block li of e.
func (s *System) target(e *filetable.Entry, li uint64) (device.Address, error) {
	if addr, ok := e.Block(li); ok {
		if e.LastBlock != nil && *e.LastBlock == addr && s.alloc.State(addr) == device.Allocated {
			return s.alloc.Allocate(e.LastBlock)
		}
		return addr, nil
	}

	addr, err := s.alloc.Allocate(nil)
	if err != nil {
		return device.Address{}, fmt.Errorf("filesys: %s block %d: %w", e.Path, li, err)
	}
	e.MapBlock(li, addr)
	s.log.Debug("allocated", "path", e.Path, "block", li, "addr", addr.String())
	return addr, nil
}

// readBlock returns a private copy of the block at addr.
func (s *System) readBlock(addr device.Address) ([]byte, error) {
	if b, ok := s.cache.Lookup(addr); ok {
		return b, nil
	}

	buf := make([]byte, blockSize)
	if err := s.dev.ReadBlock(addr, buf); err != nil {
		return nil, err
	}
	s.remember(addr, buf)
	return buf, nil
}

func (s *System) writeBlock(addr device.Address, buf []byte) error {
	if err := s.dev.WriteBlock(addr, buf); err != nil {
		return err
	}
	s.remember(addr, buf)
	return nil
}

func (s *System) remember(addr device.Address, buf []byte) {
	if err := s.cache.Insert(addr, buf); err != nil {
		s.log.Warn("cache insert failed", "addr", addr.String(), "err", err)
	}
}
