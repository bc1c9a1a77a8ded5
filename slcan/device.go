package slcan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aldas/go-cyphal-can"
	"github.com/aldas/go-cyphal-can/internal/utils"
	"go.uber.org/zap"
)

const defaultReceiveDataTimeout = 5 * time.Second

// Config configures SLCAN device.
type Config struct {
	// Bitrate is CAN bus bitrate in bits/s sent to adapter with `S<n>` command on Initialize. Zero keeps bitrate
	// adapter is already configured with.
	Bitrate int

	// ReceiveDataTimeout is maximum duration reads from device can produce no data until we error out (idle).
	//
	// It is to limit amount of time reads can result no data. to timeout the connection when there is no
	// interaction in bus. This is different from for example serial device readTimeout which limits how much time Read
	// call blocks. We want to `Read` calls block small amount of time to be able to check if context was cancelled
	// during read but at the same time we want to be able to detect when there are no coming from bus for excessive
	// amount of time. Defaults to 5 seconds.
	ReceiveDataTimeout time.Duration

	// DebugLogRawMessageBytes instructs device to log all sent/received raw lines
	DebugLogRawMessageBytes bool
	// Logger is used for debug logging. Nil disables logging.
	Logger *zap.Logger
}

// Device is SLCAN adapter connected over serial port (or anything else implementing io.ReadWriter). SLCAN supports
// only classic CAN frames.
type Device struct {
	device  io.ReadWriter
	timeNow func() time.Time
	logger  *zap.Logger

	readBuffer []byte

	config Config
}

// NewDevice creates new instance of SLCAN device.
func NewDevice(rw io.ReadWriter, config Config) *Device {
	if config.ReceiveDataTimeout == 0 {
		config.ReceiveDataTimeout = defaultReceiveDataTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Device{
		device:     rw,
		timeNow:    time.Now,
		logger:     logger,
		readBuffer: make([]byte, 0, 2*maxLineLength),
		config:     config,
	}
}

// Initialize closes CAN channel (in case adapter was left open), sets bitrate and opens channel. Reply to each
// command is read before next command is sent.
func (d *Device) Initialize() error {
	commands := [][]byte{{'C', commandTerminator}}
	if d.config.Bitrate != 0 {
		cmd, err := bitrateCommand(d.config.Bitrate)
		if err != nil {
			return err
		}
		commands = append(commands, cmd)
	}
	commands = append(commands, []byte{'O', commandTerminator})

	for i, cmd := range commands {
		if err := d.write(cmd); err != nil {
			return err
		}
		ok, err := d.readReply()
		if err != nil {
			return fmt.Errorf("slcan command %q: %w", cmd[0], err)
		}
		// adapter replies BEL to close command when channel is already closed
		if !ok && i != 0 {
			return fmt.Errorf("slcan command %q: %w", cmd[0], ErrCommandFailed)
		}
	}
	return nil
}

// Close closes CAN channel and underlying device when it implements io.Closer.
func (d *Device) Close() error {
	err := d.write([]byte{'C', commandTerminator})
	if c, ok := d.device.(io.Closer); ok {
		return errors.Join(err, c.Close())
	}
	return err
}

func (d *Device) write(raw []byte) error {
	if d.config.DebugLogRawMessageBytes {
		d.logger.Debug("slcan write", zap.String("raw", utils.EscapeControl(raw)))
	}
	_, err := d.device.Write(raw)
	return err
}

func (d *Device) WriteFrame(ctx context.Context, frame cyphal.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeFrame(frame)
	if err != nil {
		return err
	}
	return d.write(raw)
}

// ReadFrame reads lines from adapter until extended data frame is received. Acknowledgements, standard and remote
// frames are skipped. Error reply (BEL) results ErrCommandFailed.
func (d *Device) ReadFrame(ctx context.Context) (cyphal.Frame, error) {
	buf := make([]byte, 64)
	lastReadWithDataTime := d.timeNow()
	for {
		frame, ok, err := d.nextFrame()
		if err != nil {
			return cyphal.Frame{}, err
		}
		if ok {
			return frame.WithTime(d.timeNow()), nil
		}

		select {
		case <-ctx.Done():
			return cyphal.Frame{}, ctx.Err()
		default:
		}

		if lastReadWithDataTime, err = d.fill(buf, lastReadWithDataTime); err != nil {
			return cyphal.Frame{}, err
		}
	}
}

// readReply waits for reply to setup command. Returns false when adapter replied with BEL. Lines received before
// reply (frames from still open channel, transmit acks) are discarded.
func (d *Device) readReply() (bool, error) {
	buf := make([]byte, 64)
	lastReadWithDataTime := d.timeNow()
	for {
		for {
			line, terminator, ok := d.nextLine()
			if !ok {
				break
			}
			if terminator == errorReply {
				return false, nil
			}
			if len(line) == 0 {
				return true, nil
			}
		}

		var err error
		if lastReadWithDataTime, err = d.fill(buf, lastReadWithDataTime); err != nil {
			return false, err
		}
	}
}

// fill reads from device into read buffer. Returns time of the last read that produced data. Errors out when device
// fails or has not produced data for longer than ReceiveDataTimeout.
func (d *Device) fill(buf []byte, lastReadWithDataTime time.Time) (time.Time, error) {
	n, err := d.device.Read(buf)
	// on read errors we do not return immediately as for:
	// os.ErrDeadlineExceeded - we set new deadline on next iteration
	// io.EOF - serial port read timeout without data
	if err != nil && !(errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, io.EOF)) {
		return lastReadWithDataTime, err
	}

	now := d.timeNow()
	if n == 0 {
		if err != nil && now.Sub(lastReadWithDataTime) > d.config.ReceiveDataTimeout {
			return lastReadWithDataTime, err
		}
		return lastReadWithDataTime, nil
	}

	d.readBuffer = append(d.readBuffer, buf[:n]...)
	if len(d.readBuffer) > maxLineLength && bytes.IndexAny(d.readBuffer, "\r\a") == -1 {
		// garbage from the wire, or we started reading in the middle of long line
		d.readBuffer = d.readBuffer[:0]
	}
	return now, nil
}

// nextLine removes next complete line from read buffer. Returned line does not include terminator.
func (d *Device) nextLine() ([]byte, byte, bool) {
	end := bytes.IndexAny(d.readBuffer, "\r\a")
	if end == -1 {
		return nil, 0, false
	}
	if d.config.DebugLogRawMessageBytes {
		d.logger.Debug("slcan read", zap.String("raw", utils.EscapeControl(d.readBuffer[:end+1])))
	}
	line := append([]byte(nil), d.readBuffer[:end]...)
	terminator := d.readBuffer[end]

	// keep whatever was read past current line. probably nothing but could be start of next line
	rest := copy(d.readBuffer, d.readBuffer[end+1:])
	d.readBuffer = d.readBuffer[:rest]
	return line, terminator, true
}

// nextFrame extracts next frame from lines already in read buffer.
func (d *Device) nextFrame() (cyphal.Frame, bool, error) {
	for {
		line, terminator, ok := d.nextLine()
		if !ok {
			return cyphal.Frame{}, false, nil
		}
		if terminator == errorReply {
			return cyphal.Frame{}, false, ErrCommandFailed
		}
		frame, skip, err := parseLine(line)
		if skip {
			if err != nil {
				d.logger.Debug("slcan line skipped", zap.Error(err))
			}
			continue
		}
		if err != nil {
			return cyphal.Frame{}, false, err
		}
		return frame, true, nil
	}
}
