package socketcan

import (
	"context"
	"errors"
	"time"

	"github.com/aldas/go-cyphal-can"
)

// pollInterval is max time single socket read or write blocks so context cancellation can be checked between calls.
const pollInterval = 50 * time.Millisecond

// DeviceConfig configures SocketCAN device.
type DeviceConfig struct {
	// InterfaceName is SocketCAN interface name. For example: can0, vcan0
	InterfaceName string
	// FD enables CAN FD frames on socket. Interface must be configured with `ip link set can0 type can ... fd on`.
	FD bool
	// BitRateSwitch sets BRS flag on sent CAN FD frames.
	BitRateSwitch bool

	// ReceiveDataTimeout is to limit amount of time reads can result no data. to timeout the connection when there is no
	// interaction in bus. This is different from for example serial device readTimeout which limits how much time Read
	// call blocks but we want to Reads block small amount of time to be able to check if context was cancelled during read
	// but at the same time we want to be able to detect when there are no coming from bus for excessive amount of time.
	// Zero disables the limit.
	ReceiveDataTimeout time.Duration
}

// Device is cyphal.Device implementation for Linux SocketCAN interfaces.
type Device struct {
	conn   *Connection
	config DeviceConfig

	timeNow func() time.Time
}

var errNotInitialized = errors.New("socketcan device is not initialized")

func NewDevice(config DeviceConfig) *Device {
	return &Device{
		config:  config,
		timeNow: time.Now,
	}
}

func (d *Device) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

func (d *Device) Initialize() error {
	conn, err := NewConnection(d.config.InterfaceName, d.config.FD, d.config.BitRateSwitch)
	if err != nil {
		return err
	}
	d.conn = conn
	return nil
}

// WriteFrame writes frame to socket. Writes are retried while socket send buffer is full until context is done.
func (d *Device) WriteFrame(ctx context.Context, frame cyphal.Frame) error {
	if d.conn == nil {
		return errNotInitialized
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := d.conn.SetSendTimeout(pollInterval); err != nil { // max 50ms block time for write per iteration
			return err
		}
		err := d.conn.SendFrame(frame)
		if errors.Is(err, errWriteTimeout) {
			continue
		}
		return err
	}
}

// ReadFrame reads next extended data frame from socket. Standard (11 bit) and remote transmission request frames are
// skipped as they can not carry Cyphal transfers.
func (d *Device) ReadFrame(ctx context.Context) (cyphal.Frame, error) {
	if d.conn == nil {
		return cyphal.Frame{}, errNotInitialized
	}
	start := d.timeNow()
	for {
		select {
		case <-ctx.Done():
			return cyphal.Frame{}, ctx.Err()
		default:
		}

		if err := d.conn.SetReadTimeout(pollInterval); err != nil { // max 50ms block time for read per iteration
			return cyphal.Frame{}, err
		}
		frame, err := d.conn.ReadFrame()

		now := d.timeNow()
		if err != nil {
			if errors.Is(err, errReadTimeout) {
				if d.config.ReceiveDataTimeout > 0 && now.Sub(start) > d.config.ReceiveDataTimeout {
					return cyphal.Frame{}, err
				}
				continue
			}
			if isSkippedFrameErr(err) {
				continue
			}
			return cyphal.Frame{}, err
		}
		return frame, nil
	}
}
