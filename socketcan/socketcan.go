package socketcan

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/aldas/go-cyphal-can"
	"golang.org/x/sys/unix"
)

const canRaw = 1

// Connection is raw SocketCAN socket bound to single CAN interface.
type Connection struct {
	socketFD int
	fd       bool
	brs      bool
	timeNow  func() time.Time
}

// NewConnection opens raw CAN socket for given interface. When fd is true socket is switched to CAN FD mode
// (CAN_RAW_FD_FRAMES) and accepts both classic and FD frames.
func NewConnection(ifName string, fd bool, bitRateSwitch bool) (*Connection, error) {
	ifi, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("bad ifName: %w", err)
	}

	sock, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, canRaw)
	if err != nil {
		return nil, fmt.Errorf("could not create CAN socket: %w", err)
	}

	if fd {
		if err := unix.SetsockoptInt(sock, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 1); err != nil {
			_ = unix.Close(sock)
			return nil, fmt.Errorf("could not enable CAN FD frames: %w", err)
		}
	}

	addr := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err = unix.Bind(sock, addr); err != nil {
		_ = unix.Close(sock)
		return nil, fmt.Errorf("could not bind CAN socket: %w", err)
	}

	return &Connection{
		socketFD: sock,
		fd:       fd,
		brs:      bitRateSwitch,
		timeNow:  time.Now,
	}, nil
}

func isContinuableSocketErr(err error) bool {
	// EWOULDBLOCK - If you set a timeout on the socket with SO_RCVTIMEO or SO_SNDTIMEO - in this case, a receive or
	// send will return with EWOULDBLOCK if the timeout elapses while no input data becomes available or the output
	// buffer remains full

	// EINTR - If a signal occurs during a blocking operation, then the operation will either (a) return partial
	// completion, or (b) return failure, do nothing, and set errno to EINTR.

	return err == syscall.EWOULDBLOCK || err == syscall.EINTR
}

var errReadTimeout = errors.New("read timeout")
var errWriteTimeout = errors.New("write timeout")

func (i Connection) SetReadTimeout(timeout time.Duration) error {
	return i.setSocketTimeout(unix.SO_RCVTIMEO, timeout)
}

func (i Connection) SetSendTimeout(timeout time.Duration) error {
	return i.setSocketTimeout(unix.SO_SNDTIMEO, timeout)
}

func (i Connection) setSocketTimeout(opt int, timeout time.Duration) error {
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	return unix.SetsockoptTimeval(i.socketFD, unix.SOL_SOCKET, opt, &tv)
}

func (i Connection) Close() error {
	return unix.Close(i.socketFD)
}

func (i Connection) SendFrame(frame cyphal.Frame) error {
	raw, err := marshalFrame(frame, i.fd, i.brs)
	if err != nil {
		return err
	}
	_, err = unix.Write(i.socketFD, raw)
	if isContinuableSocketErr(err) {
		return errWriteTimeout
	}
	return err
}

func (i Connection) ReadFrame() (cyphal.Frame, error) {
	raw := make([]byte, canFDMTU)
	n, err := unix.Read(i.socketFD, raw)
	if err != nil {
		if isContinuableSocketErr(err) {
			return cyphal.Frame{}, errReadTimeout
		}
		return cyphal.Frame{}, err
	}
	f, err := unmarshalFrame(raw[:n])
	if err != nil {
		return cyphal.Frame{}, err
	}
	return f.WithTime(i.timeNow()), nil
}
