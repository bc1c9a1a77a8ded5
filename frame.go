package cyphal

import (
	"fmt"
	"time"
)

const (
	tailStartOfTransfer = 0b1000_0000
	tailEndOfTransfer   = 0b0100_0000
	tailToggle          = 0b0010_0000
)

// Tail is the last byte of every frame payload and contains transfer control data: start/end of transfer flags,
// toggle bit and transfer id.
type Tail byte

// NewTail creates tail byte from its parts.
func NewTail(start, end, toggle bool, tid TransferID) Tail {
	t := Tail(tid & TransferIDMax) // bits 0-4
	if toggle {
		t |= tailToggle // bit 5
	}
	if end {
		t |= tailEndOfTransfer // bit 6
	}
	if start {
		t |= tailStartOfTransfer // bit 7
	}
	return t
}

func (t Tail) IsStart() bool          { return t&tailStartOfTransfer != 0 }
func (t Tail) IsEnd() bool            { return t&tailEndOfTransfer != 0 }
func (t Tail) IsToggled() bool        { return t&tailToggle != 0 }
func (t Tail) TransferID() TransferID { return TransferID(t & TransferIDMax) }

// IsSingleFrame reports if tail belongs to transfer that fits into one frame.
func (t Tail) IsSingleFrame() bool { return t.IsStart() && t.IsEnd() }

func (t Tail) String() string {
	return fmt.Sprintf("start=%v end=%v toggle=%v tid=%v", t.IsStart(), t.IsEnd(), t.IsToggled(), t.TransferID())
}

// Frame is single CAN frame carrying part of Cyphal transfer. Frame is immutable after creation with NewFrame.
type Frame struct {
	// time is when frame was read from bus. Filled by drivers.
	time time.Time

	id     uint32
	length uint8 // 0-64
	data   [MTUFD]byte
}

// NewFrame creates frame with given 29-bit CAN ID and data. Data longer than given MTU is an error.
func NewFrame(canID uint32, data []byte, mtu MTU) (Frame, error) {
	if canID&^CANIDMask != 0 {
		return Frame{}, ErrOutOfRange
	}
	if len(data) > int(mtu) || len(data) > int(MTUFD) {
		return Frame{}, ErrFrameTooLarge
	}
	f := Frame{
		id:     canID,
		length: uint8(len(data)),
	}
	copy(f.data[:], data)
	return f, nil
}

// ID returns 29-bit CAN ID of the frame.
func (f Frame) ID() uint32 { return f.id }

// Len returns number of data bytes in the frame (tail byte included).
func (f Frame) Len() int { return int(f.length) }

// Data returns copy of frame data (tail byte included).
func (f Frame) Data() []byte {
	return f.data[:f.length]
}

// Payload returns frame data without tail byte.
func (f Frame) Payload() []byte {
	if f.length == 0 {
		return nil
	}
	return f.data[:f.length-1]
}

// Tail returns tail byte of the frame. Second return value is false for empty frames as they have no tail byte.
func (f Frame) Tail() (Tail, bool) {
	if f.length == 0 {
		return 0, false
	}
	return Tail(f.data[f.length-1]), true
}

// Time returns moment when frame was received.
func (f Frame) Time() time.Time { return f.time }

// WithTime returns copy of the frame with receive time set.
func (f Frame) WithTime(t time.Time) Frame {
	f.time = t
	return f
}

func (f Frame) String() string {
	return fmt.Sprintf("%08X [%d] % X", f.id, f.length, f.data[:f.length])
}

// canFDLengths are valid CAN FD frame data lengths indexed by DLC.
var canFDLengths = [16]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

// roundUpFrameLength returns smallest valid CAN (FD) data length that can hold n bytes.
func roundUpFrameLength(n int) int {
	for _, l := range canFDLengths {
		if int(l) >= n {
			return int(l)
		}
	}
	return int(MTUFD)
}

// LengthToDLC converts frame data length to CAN data length code. Length is rounded up to nearest valid length.
func LengthToDLC(length int) uint8 {
	for dlc, l := range canFDLengths {
		if int(l) >= length {
			return uint8(dlc)
		}
	}
	return 15
}

// DLCToLength converts CAN data length code to frame data length.
func DLCToLength(dlc uint8) int {
	return int(canFDLengths[dlc&0x0f])
}
