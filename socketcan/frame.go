package socketcan

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aldas/go-cyphal-can"
)

const (
	// canMTU is size of Linux `struct can_frame`
	canMTU = 16
	// canFDMTU is size of Linux `struct canfd_frame`
	canFDMTU = 72

	// canIDERRFlag is bit 29 in CAN ID and means ERR error message flag (0 = data frame, 1 = error message)
	canIDERRFlag = uint32(1 << 29)
	// canIDRTRFlag is bit 30 in CAN ID and means RTR remote transmission request (1 = rtr frame)
	canIDRTRFlag = uint32(1 << 30)
	// canIDEFFFlag is bit 31 in CAN ID and means EFF extended frame format / IDE identifier extension flag (0 = standard 11 bit, 1 = extended 29 bit)
	canIDEFFFlag = uint32(1 << 31)

	// canFDFlagBRS is `canfd_frame.flags` bit for bit rate switch (second bitrate for payload data)
	canFDFlagBRS = 0x01
)

var (
	errRTRFrame      = errors.New("read CAN remote transmission request frame")
	errErrorFrame    = errors.New("read CAN error message frame")
	errStandardFrame = errors.New("read CAN standard (11 bit) frame")
)

// isSkippedFrameErr reports if read frame can not carry Cyphal transfer and reader should continue with next frame.
// Error frames are not skipped as they are received only when error mask is set on socket.
func isSkippedFrameErr(err error) bool {
	return errors.Is(err, errStandardFrame) || errors.Is(err, errRTRFrame)
}

// marshalFrame encodes frame to Linux SocketCAN `struct can_frame` or `struct canfd_frame` layout.
//
// Can frame structure: https://github.com/linux-can/can-utils/blob/affdc1b79973c7497bb8607603c24734e11a91aa/include/linux/can.h#L107
//
//	0..3   can_id (with EFF/RTR/ERR flags)
//	4      len (data length)
//	5      flags (CAN FD only)
//	6..7   reserved
//	8..    data (8 bytes classic, 64 bytes CAN FD)
func marshalFrame(frame cyphal.Frame, fd bool, bitRateSwitch bool) ([]byte, error) {
	size := canMTU
	if fd {
		size = canFDMTU
	} else if frame.Len() > int(cyphal.MTUClassic) {
		return nil, fmt.Errorf("frame data length %d does not fit into classic CAN frame", frame.Len())
	}
	raw := make([]byte, size)

	canID := frame.ID() | canIDEFFFlag             // canID + EFF flag
	binary.LittleEndian.PutUint32(raw[0:4], canID) // FIXME: for big-endian arch (mips64, ppc64) we should use big-endian
	raw[4] = uint8(frame.Len())
	if fd && bitRateSwitch {
		raw[5] = canFDFlagBRS
	}
	copy(raw[8:], frame.Data())
	return raw, nil
}

// unmarshalFrame decodes frame read from SocketCAN socket. Number of read bytes tells if it is classic or FD frame.
func unmarshalFrame(raw []byte) (cyphal.Frame, error) {
	var mtu cyphal.MTU
	switch len(raw) {
	case canMTU:
		mtu = cyphal.MTUClassic
	case canFDMTU:
		mtu = cyphal.MTUFD
	default:
		return cyphal.Frame{}, fmt.Errorf("read unexpected amount of bytes for CAN frame: %d", len(raw))
	}

	canID := binary.LittleEndian.Uint32(raw[0:4])
	switch {
	case canID&canIDRTRFlag != 0:
		return cyphal.Frame{}, errRTRFrame
	case canID&canIDERRFlag != 0:
		return cyphal.Frame{}, errErrorFrame
	case canID&canIDEFFFlag == 0:
		return cyphal.Frame{}, errStandardFrame
	}
	length := int(raw[4])
	if length > int(mtu) {
		return cyphal.Frame{}, fmt.Errorf("invalid CAN frame data length: %d", length)
	}
	return cyphal.NewFrame(canID&cyphal.CANIDMask, raw[8:8+length], mtu)
}
