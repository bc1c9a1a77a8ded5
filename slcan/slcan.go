// Package slcan implements cyphal.Device for serial-line CAN adapters speaking LAWICEL (SLCAN) ASCII protocol.
package slcan

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/aldas/go-cyphal-can"
)

const (
	// commandTerminator ends every SLCAN command and successful reply
	commandTerminator = '\r'
	// errorReply is sent by adapter instead of commandTerminator when command failed
	errorReply = '\a'

	// maxLineLength is longest line adapter can send: `T` + 8 hex id + dlc + 16 hex data + 4 hex timestamp
	maxLineLength = 1 + 8 + 1 + 16 + 4
)

// ErrCommandFailed is returned when adapter replies with BEL to a command or to a transmitted frame.
var ErrCommandFailed = errors.New("slcan adapter replied with error")

// bitrateCommands maps CAN bitrate in bits/s to SLCAN `S<n>` setup command.
var bitrateCommands = map[int]byte{
	10_000:    '0',
	20_000:    '1',
	50_000:    '2',
	100_000:   '3',
	125_000:   '4',
	250_000:   '5',
	500_000:   '6',
	800_000:   '7',
	1_000_000: '8',
}

func bitrateCommand(bitrate int) ([]byte, error) {
	n, ok := bitrateCommands[bitrate]
	if !ok {
		return nil, fmt.Errorf("unsupported SLCAN bitrate: %d", bitrate)
	}
	return []byte{'S', n, commandTerminator}, nil
}

const hextable = "0123456789ABCDEF"

// encodeFrame converts frame to SLCAN extended data frame command. Example: `T107D552A3010203\r`
func encodeFrame(frame cyphal.Frame) ([]byte, error) {
	if frame.Len() > int(cyphal.MTUClassic) {
		return nil, fmt.Errorf("frame data length %d does not fit into classic CAN frame", frame.Len())
	}
	f := make([]byte, 0, 1+8+1+2*frame.Len()+1)
	f = append(f, 'T')
	canID := frame.ID()
	for shift := 28; shift >= 0; shift -= 4 {
		f = append(f, hextable[(canID>>shift)&0x0f])
	}
	f = append(f, byte('0'+frame.Len()))
	for _, v := range frame.Data() {
		f = append(f, hextable[v>>4], hextable[v&0x0f])
	}
	return append(f, commandTerminator), nil
}

// parseLine decodes single line received from adapter (without terminator). Second return value tells if line is
// not a Cyphal frame (acks, standard or remote frames, garbage) and must be skipped.
func parseLine(line []byte) (cyphal.Frame, bool, error) {
	if len(line) == 0 { // successful reply to setup command
		return cyphal.Frame{}, true, nil
	}
	switch line[0] {
	case 'T':
	case 'z', 'Z': // transmit acknowledgement
		return cyphal.Frame{}, true, nil
	case 't', 'r', 'R':
		return cyphal.Frame{}, true, errors.New("slcan line is not extended data frame")
	default:
		return cyphal.Frame{}, true, fmt.Errorf("unknown slcan line type: %q", line[0])
	}

	// Example: `T107D552A801000000000000E0` and optional 4 hex timestamp in the end
	if len(line) < 10 {
		return cyphal.Frame{}, false, errors.New("slcan frame too short")
	}
	canID, err := strconv.ParseUint(string(line[1:9]), 16, 32)
	if err != nil {
		return cyphal.Frame{}, false, fmt.Errorf("invalid slcan frame CAN ID: %w", err)
	}
	dlc := int(line[9]) - '0'
	if dlc < 0 || dlc > int(cyphal.MTUClassic) {
		return cyphal.Frame{}, false, fmt.Errorf("invalid slcan frame DLC: %q", line[9])
	}
	hexData := line[10:]
	if len(hexData) != 2*dlc && len(hexData) != 2*dlc+4 {
		return cyphal.Frame{}, false, fmt.Errorf("slcan frame data length does not match DLC %d", dlc)
	}
	data := make([]byte, dlc)
	if _, err := hex.Decode(data, hexData[:2*dlc]); err != nil {
		return cyphal.Frame{}, false, fmt.Errorf("invalid slcan frame data: %w", err)
	}
	frame, err := cyphal.NewFrame(uint32(canID), data, cyphal.MTUClassic)
	if err != nil {
		return cyphal.Frame{}, false, fmt.Errorf("invalid slcan frame: %w", err)
	}
	return frame, false, nil
}
