// internal/frame/constants.go
package frame

// Register frame layout and command constants.
// These values define the bus protocol and MUST NOT be configurable.

// ---- FIELD WIDTHS (bits) ----

const (
	Dir0Bits      = 4
	Dir1Bits      = 4
	OpcodeBits    = 8
	DeviceIDBits  = 8
	DirectionBits = 8
	Param0Bits    = 16
	Param1Bits    = 16
)

// ---- FIELD POSITIONS (shift of the least significant bit) ----

const (
	Dir0Shift      = 60
	Dir1Shift      = 56
	OpcodeShift    = 48
	DeviceIDShift  = 40
	DirectionShift = 32
	Param0Shift    = 16
	Param1Shift    = 0
)

// ---- OPCODES ----

// OpPowerOn powers the controller and all attached devices on.
const OpPowerOn uint8 = 0

// OpPowerOff powers the controller off.
const OpPowerOff uint8 = 1

// OpProbe asks the controller which device ids are present.
// The response carries a presence bitmask in param0.
const OpProbe uint8 = 2

// OpDevInit initializes one device.
// The response carries the sector count in param0 and the block count in param1.
const OpDevInit uint8 = 3

// OpBlockXfer moves one block between the host buffer and a device.
const OpBlockXfer uint8 = 4

// ---- TRANSFER DIRECTION ----

const (
	XferWrite uint8 = 0
	XferRead  uint8 = 1
)

// ---- DIRECTION / STATUS NIBBLES ----

// Requests carry dir0=0, dir1=0. An acknowledged response carries dir0=1, dir1=1.
const (
	DirRequest  uint8 = 0
	DirResponse uint8 = 1
	StatusOK    uint8 = 1
	StatusFail  uint8 = 0
)

// ---- GEOMETRY ----

// BlockSize is the size in bytes of one device block, identical on every device.
const BlockSize = 256

// MaxDevices is the number of device ids the probe bitmask can express.
const MaxDevices = Param0Bits

// Failure is the sentinel a transport returns when the round trip itself failed.
const Failure Frame = ^Frame(0)
