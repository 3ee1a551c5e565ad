// internal/frame/encode.go
package frame

import "fmt"

// Frame is one packed 64-bit command or status word.
type Frame uint64

// Fields is the unpacked view of a Frame.
//
// Values wider than their field are masked on Encode. This truncation is part of
// the protocol contract: callers keep values in range, the codec never reports
// overflow.
type Fields struct {
	Dir0      uint64
	Dir1      uint64
	Opcode    uint64
	DeviceID  uint64
	Direction uint64
	Param0    uint64
	Param1    uint64
}

func mask(bits uint) uint64 { return 1<<bits - 1 }

// Encode packs f into a Frame.
// No IO. No side effects.
func Encode(f Fields) Frame {
	var v uint64

	v |= (f.Dir0 & mask(Dir0Bits)) << Dir0Shift
	v |= (f.Dir1 & mask(Dir1Bits)) << Dir1Shift
	v |= (f.Opcode & mask(OpcodeBits)) << OpcodeShift
	v |= (f.DeviceID & mask(DeviceIDBits)) << DeviceIDShift
	v |= (f.Direction & mask(DirectionBits)) << DirectionShift
	v |= (f.Param0 & mask(Param0Bits)) << Param0Shift
	v |= (f.Param1 & mask(Param1Bits)) << Param1Shift

	return Frame(v)
}

// Decode unpacks a Frame. It always succeeds.
func Decode(fr Frame) Fields {
	v := uint64(fr)

	return Fields{
		Dir0:      (v >> Dir0Shift) & mask(Dir0Bits),
		Dir1:      (v >> Dir1Shift) & mask(Dir1Bits),
		Opcode:    (v >> OpcodeShift) & mask(OpcodeBits),
		DeviceID:  (v >> DeviceIDShift) & mask(DeviceIDBits),
		Direction: (v >> DirectionShift) & mask(DirectionBits),
		Param0:    (v >> Param0Shift) & mask(Param0Bits),
		Param1:    (v >> Param1Shift) & mask(Param1Bits),
	}
}

// Command builds a request frame (dir0=0, dir1=0).
func Command(opcode, deviceID, direction uint8, param0, param1 uint16) Frame {
	return Encode(Fields{
		Dir0:      uint64(DirRequest),
		Dir1:      uint64(DirRequest),
		Opcode:    uint64(opcode),
		DeviceID:  uint64(deviceID),
		Direction: uint64(direction),
		Param0:    uint64(param0),
		Param1:    uint64(param1),
	})
}

// Response builds the status frame a controller answers req with.
func Response(req Fields, ok bool, param0, param1 uint16) Frame {
	status := StatusFail
	if ok {
		status = StatusOK
	}
	return Encode(Fields{
		Dir0:      uint64(DirResponse),
		Dir1:      uint64(status),
		Opcode:    req.Opcode,
		DeviceID:  req.DeviceID,
		Direction: req.Direction,
		Param0:    uint64(param0),
		Param1:    uint64(param1),
	})
}

// Acked reports whether f is a successful response to opcode.
func (f Fields) Acked(opcode uint8) bool {
	return f.Dir0 == uint64(DirResponse) &&
		f.Dir1 == uint64(StatusOK) &&
		f.Opcode == uint64(opcode)
}

func (f Fields) String() string {
	return fmt.Sprintf(
		"b0=%d b1=%d op=%d dev=%d dir=%d p0=%d p1=%d",
		f.Dir0, f.Dir1, f.Opcode, f.DeviceID, f.Direction, f.Param0, f.Param1,
	)
}
