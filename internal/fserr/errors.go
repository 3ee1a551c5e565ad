// internal/fserr/errors.go
package fserr

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the file store. Match with errors.Is.
var (
	ErrProtocol        = errors.New("protocol failure")
	ErrInvalidHandle   = errors.New("invalid file handle")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOutOfSpace      = errors.New("out of space")
	ErrAlreadyOpen     = errors.New("file already open")
	ErrAlreadyClosed   = errors.New("file already closed")
	ErrTooManyFiles    = errors.New("file table full")
	ErrNotPowered      = errors.New("devices not powered on")
)

// ProtocolError is a failed bus round trip, with the block it concerned.
// Sector and Block are meaningful only for block transfers.
type ProtocolError struct {
	Op     string
	Device uint8
	Sector uint16
	Block  uint16
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s [%d/%d/%d]: %s", ErrProtocol, e.Op, e.Device, e.Sector, e.Block, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// Code maps the error to a stable numeric code (used for process exit status).
func (e *ProtocolError) Code() uint16 { return Code(ErrProtocol) }

// Code returns a small stable code for an error kind.
// Unknown errors map to 1, nil to 0.
func Code(err error) uint16 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrProtocol):
		return 10
	case errors.Is(err, ErrInvalidHandle):
		return 11
	case errors.Is(err, ErrInvalidArgument):
		return 12
	case errors.Is(err, ErrOutOfSpace):
		return 13
	case errors.Is(err, ErrAlreadyOpen):
		return 14
	case errors.Is(err, ErrAlreadyClosed):
		return 15
	case errors.Is(err, ErrTooManyFiles):
		return 16
	case errors.Is(err, ErrNotPowered):
		return 17
	default:
		return 1
	}
}

// Kind parses an error kind name as used in workload files.
func Kind(name string) (error, bool) {
	switch name {
	case "protocol":
		return ErrProtocol, true
	case "invalid_handle":
		return ErrInvalidHandle, true
	case "invalid_argument":
		return ErrInvalidArgument, true
	case "out_of_space":
		return ErrOutOfSpace, true
	case "already_open":
		return ErrAlreadyOpen, true
	case "already_closed":
		return ErrAlreadyClosed, true
	case "too_many_files":
		return ErrTooManyFiles, true
	case "not_powered":
		return ErrNotPowered, true
	}
	return nil, false
}
