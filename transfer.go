package cyphal

import (
	"fmt"
	"time"
)

// Transfer is complete received transfer (message, service request or service response).
type Transfer struct {
	// Time is when the first frame of transfer was received.
	Time time.Time

	Identifier Identifier
	TransferID TransferID
	// Payload is transfer data without tail bytes and CRC. For CAN FD transfers payload may end with zero padding.
	Payload []byte
	// FrameCount is number of frames transfer was assembled from.
	FrameCount int
}

// IsMessage reports if transfer is published message.
func (t Transfer) IsMessage() bool {
	_, ok := t.Identifier.(MessageIdentifier)
	return ok
}

// ServiceIdentifier returns service identifier of the transfer. Second value is false for message transfers.
func (t Transfer) ServiceIdentifier() (ServiceIdentifier, bool) {
	sid, ok := t.Identifier.(ServiceIdentifier)
	return sid, ok
}

// DecodeTransfer reconstructs transfer from frames collected by Reassembler. For multi-frame transfers toggle bit
// continuity, start/end flag placement and CRC are checked.
func DecodeTransfer(frames []Frame) (Transfer, error) {
	if len(frames) == 0 {
		return Transfer{}, ErrLengthMismatch
	}
	first := frames[0]
	id, err := ParseCANID(first.ID())
	if err != nil {
		return Transfer{}, err
	}
	firstTail, ok := first.Tail()
	if !ok {
		return Transfer{}, ErrLengthMismatch
	}
	result := Transfer{
		Time:       first.Time(),
		Identifier: id,
		TransferID: firstTail.TransferID(),
		FrameCount: len(frames),
	}

	if len(frames) == 1 {
		if !firstTail.IsSingleFrame() {
			return Transfer{}, ErrUnexpectedEnd
		}
		result.Payload = first.Payload()
		return result, nil
	}

	last := len(frames) - 1
	size := 0
	for _, f := range frames {
		size += f.Len() - 1
	}
	payload := make([]byte, 0, size)
	expectToggle := true
	for i, f := range frames {
		tail, ok := f.Tail()
		if !ok {
			return Transfer{}, fmt.Errorf("frame %d: %w", i, ErrLengthMismatch)
		}
		switch {
		case f.ID() != first.ID():
			return Transfer{}, fmt.Errorf("frame %d: %w", i, ErrInvalidID)
		case tail.IsStart() != (i == 0):
			return Transfer{}, fmt.Errorf("frame %d: misplaced start of transfer: %w", i, ErrUnexpectedEnd)
		case tail.IsEnd() != (i == last):
			return Transfer{}, fmt.Errorf("frame %d: %w", i, ErrUnexpectedEnd)
		case tail.IsToggled() != expectToggle:
			return Transfer{}, fmt.Errorf("frame %d: %w", i, ErrToggleMismatch)
		}
		expectToggle = !expectToggle
		payload = append(payload, f.Payload()...)
	}
	if len(payload) < crcSize {
		return Transfer{}, ErrLengthMismatch
	}
	if ComputeCRC(payload) != crcResidue {
		return Transfer{}, ErrCRCMismatch
	}
	result.Payload = payload[:len(payload)-crcSize]
	return result, nil
}

// fitPayload checks that transfer payload matches expected serialized size. Single-frame transfers may be longer than
// expected (padding). Multi-frame transfers must match exactly except for CAN FD zero padding of the last frame.
func fitPayload(t Transfer, expectedSize int, mtu MTU) ([]byte, error) {
	p := t.Payload
	if len(p) < expectedSize {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrLengthMismatch, len(p), expectedSize)
	}
	if t.FrameCount == 1 || len(p) == expectedSize {
		return p[:expectedSize], nil
	}
	padding := p[expectedSize:]
	if mtu <= MTUClassic || len(padding) >= int(mtu) {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrLengthMismatch, len(p), expectedSize)
	}
	for _, b := range padding {
		if b != 0 {
			return nil, fmt.Errorf("%w: non-zero padding", ErrLengthMismatch)
		}
	}
	return p[:expectedSize], nil
}
