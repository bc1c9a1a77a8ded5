package cyphal

import (
	"fmt"
)

// Fragment splits transfer payload into frames that all carry given CAN ID.
//
// Payload that fits into single frame (len <= mtu-1) is sent as single-frame transfer. Longer payloads are sent as
// multi-frame transfer: each frame carries mtu-1 bytes of data followed by tail byte, and after the payload comes
// CRC-16/CCITT-FALSE of the payload in big-endian order. CRC bytes may spill over into an additional frame when the
// last data frame has no room for them.
//
// For CAN FD last frame is zero padded up to next valid frame length. Padding is placed before CRC and is included
// in CRC calculation.
func Fragment(canID uint32, payload []byte, tid TransferID, mtu MTU) ([]Frame, error) {
	if mtu != MTUClassic && mtu != MTUFD {
		return nil, fmt.Errorf("%w: mtu %d: %w", ErrTransport, mtu, ErrOutOfRange)
	}
	perFrame := int(mtu) - 1 // one byte is reserved for tail
	if len(payload) <= perFrame {
		return fragmentSingleFrame(canID, payload, tid, mtu)
	}
	return fragmentMultiFrame(canID, payload, tid, mtu)
}

// FrameCount returns number of frames payload of given size will be split to.
func FrameCount(payloadSize int, mtu MTU) int {
	perFrame := int(mtu) - 1
	if payloadSize <= perFrame {
		return 1
	}
	return (payloadSize + crcSize + perFrame - 1) / perFrame
}

func fragmentSingleFrame(canID uint32, payload []byte, tid TransferID, mtu MTU) ([]Frame, error) {
	frameSize := roundUpFrameLength(len(payload) + 1)
	buf := make([]byte, frameSize) // zero padded
	copy(buf, payload)
	buf[frameSize-1] = byte(NewTail(true, true, true, tid))

	f, err := NewFrame(canID, buf, mtu)
	if err != nil {
		return nil, fmt.Errorf("%w: single frame: %w", ErrTransport, err)
	}
	return []Frame{f}, nil
}

func fragmentMultiFrame(canID uint32, payload []byte, tid TransferID, mtu MTU) ([]Frame, error) {
	perFrame := int(mtu) - 1
	payloadSize := len(payload)
	payloadSizeWithCRC := payloadSize + crcSize
	crc := ComputeCRC(payload)

	frames := make([]Frame, 0, FrameCount(payloadSize, mtu))
	buf := make([]byte, mtu)
	toggle := true
	offset := 0 // position in payload+CRC stream
	for offset < payloadSizeWithCRC {
		frameSize := perFrame + 1
		if remaining := payloadSizeWithCRC - offset; remaining < perFrame {
			frameSize = roundUpFrameLength(remaining + 1)
		}
		frameDataSize := frameSize - 1

		n := 0
		if offset < payloadSize {
			n = copy(buf[:frameDataSize], payload[offset:])
			offset += n
		}
		if offset >= payloadSize {
			// last frame(s) contain padding and CRC
			for n+crcSize < frameDataSize && offset == payloadSize {
				buf[n] = 0
				crc = crc.AddByte(0)
				n++
			}
			if n < frameDataSize && offset == payloadSize {
				buf[n] = byte(crc >> 8)
				n++
				offset++
			}
			if n < frameDataSize && offset == payloadSize+1 {
				buf[n] = byte(crc)
				n++
				offset++
			}
		}
		if n != frameDataSize {
			return nil, fmt.Errorf("%w: frame %d data size %d does not match expected %d", ErrTransport, len(frames), n, frameDataSize)
		}
		isStart := len(frames) == 0
		isEnd := offset >= payloadSizeWithCRC
		buf[n] = byte(NewTail(isStart, isEnd, toggle, tid))
		toggle = !toggle

		f, err := NewFrame(canID, buf[:frameSize], mtu)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %w", ErrTransport, len(frames), err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}
