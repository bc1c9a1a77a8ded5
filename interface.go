package cyphal

import (
	"context"
)

// FrameReader reads CAN frames from bus. ReadFrame blocks until frame arrives, context is cancelled or driver fails.
type FrameReader interface {
	ReadFrame(ctx context.Context) (Frame, error)
}

// FrameWriter writes CAN frames to bus. WriteFrame blocks until driver has room for the frame.
type FrameWriter interface {
	WriteFrame(ctx context.Context, frame Frame) error
}

type FrameReadWriter interface {
	FrameReader
	FrameWriter
}

// Device is CAN driver (SocketCAN interface, serial adapter etc) that Transport sends frames through.
type Device interface {
	FrameReadWriter
	Initialize() error
	Close() error
}

// Message is data type published on a subject.
type Message interface {
	SubjectID() SubjectID
	MarshalBinary() ([]byte, error)
}

// Request is data type sent as service request.
type Request interface {
	ServiceID() ServiceID
	MarshalBinary() ([]byte, error)
}

// Response is data type received as service response. Size is statically known serialized size of the type.
type Response interface {
	Size() int
	UnmarshalBinary(data []byte) error
}
