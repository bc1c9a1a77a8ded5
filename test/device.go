package test_test

import (
	"context"
	"sync"

	"github.com/aldas/go-cyphal-can"
)

// MockDevice is scripted cyphal.Device for tests. Frames in Incoming are returned by ReadFrame in order. When
// Incoming is exhausted ReadFrame returns ReadErr or, if ReadErr is nil, blocks until context is done.
type MockDevice struct {
	mu sync.Mutex

	Incoming []cyphal.Frame
	ReadErr  error

	// WriteErr is returned by WriteFrame after FailAfterWrites successful writes
	WriteErr        error
	FailAfterWrites int
	// OnWrite is called for each written frame and returned frames are appended to Incoming
	OnWrite func(frame cyphal.Frame) []cyphal.Frame

	Written []cyphal.Frame

	Initialized bool
	Closed      bool
}

func (d *MockDevice) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Initialized = true
	return nil
}

func (d *MockDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

func (d *MockDevice) WriteFrame(ctx context.Context, frame cyphal.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.WriteErr != nil && len(d.Written) >= d.FailAfterWrites {
		return d.WriteErr
	}
	d.Written = append(d.Written, frame)
	if d.OnWrite != nil {
		d.Incoming = append(d.Incoming, d.OnWrite(frame)...)
	}
	return nil
}

func (d *MockDevice) ReadFrame(ctx context.Context) (cyphal.Frame, error) {
	d.mu.Lock()
	if len(d.Incoming) > 0 {
		f := d.Incoming[0]
		d.Incoming = d.Incoming[1:]
		d.mu.Unlock()
		return f, nil
	}
	err := d.ReadErr
	d.mu.Unlock()

	if err != nil {
		return cyphal.Frame{}, err
	}
	<-ctx.Done()
	return cyphal.Frame{}, ctx.Err()
}

// MustFrame creates frame and panics on invalid input.
func MustFrame(canID uint32, data []byte, mtu cyphal.MTU) cyphal.Frame {
	f, err := cyphal.NewFrame(canID, data, mtu)
	if err != nil {
		panic(err)
	}
	return f
}
