package cyphal

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidID is returned when CAN ID does not belong to requested identifier kind (message vs service) or
	// violates reserved bit pattern of service identifier.
	ErrInvalidID = errors.New("cyphal: invalid identifier")
	// ErrOutOfRange is returned when identifier field or encoded identifier is outside of allowed range.
	ErrOutOfRange = errors.New("cyphal: value out of range")
	// ErrTransport wraps every failure returned from Transport methods.
	ErrTransport = errors.New("cyphal: transport error")

	// ErrFrameTooLarge is returned when frame data does not fit into MTU.
	ErrFrameTooLarge = errors.New("cyphal: frame data exceeds MTU")
	// ErrAnonymousMultiFrame is returned when anonymous node publishes message that needs more than one frame.
	ErrAnonymousMultiFrame = errors.New("cyphal: anonymous transfer must fit into single frame")
	// ErrToggleMismatch is returned when toggle bit of transfer frame does not alternate.
	ErrToggleMismatch = errors.New("cyphal: toggle bit mismatch")
	// ErrUnexpectedEnd is returned when frame sequence does not start with start frame, has end or start frame in
	// the middle or does not finish with end frame.
	ErrUnexpectedEnd = errors.New("cyphal: unexpected end of transfer")
	// ErrLengthMismatch is returned when frame is empty or too short to carry CRC, or when transfer payload size
	// differs from expected size.
	ErrLengthMismatch = errors.New("cyphal: transfer length does not match expected size")
	// ErrCRCMismatch is returned when CRC of multi-frame transfer does not match its payload.
	ErrCRCMismatch = errors.New("cyphal: transfer CRC mismatch")
	// ErrNotService is returned when service operation is given transfer with message identifier.
	ErrNotService = errors.New("cyphal: expected service transfer")
)

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %v: %w", ErrTransport, op, err)
}
