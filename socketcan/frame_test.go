package socketcan

import (
	"testing"

	"github.com/aldas/go-cyphal-can"
	"github.com/stretchr/testify/assert"
)

func TestMarshalFrame(t *testing.T) {
	var testCases = []struct {
		name        string
		whenData    []byte
		whenMTU     cyphal.MTU
		whenFD      bool
		whenBRS     bool
		expect      []byte
		expectError string
	}{
		{
			name:     "ok, classic frame",
			whenData: []byte{0x01, 0x02, 0xE0},
			whenMTU:  cyphal.MTUClassic,
			expect: []byte{
				0x2A, 0x55, 0x7D, 0x90, // can_id with EFF flag
				0x03, 0x00, 0x00, 0x00,
				0x01, 0x02, 0xE0, 0x00, 0x00, 0x00, 0x00, 0x00,
			},
		},
		{
			name:        "nok, FD sized frame to classic socket",
			whenData:    make([]byte, 12),
			whenMTU:     cyphal.MTUFD,
			expectError: "frame data length 12 does not fit into classic CAN frame",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := cyphal.NewFrame(0x107D552A, tc.whenData, tc.whenMTU)
			assert.NoError(t, err)

			raw, err := marshalFrame(frame, tc.whenFD, tc.whenBRS)
			if tc.expectError != "" {
				assert.EqualError(t, err, tc.expectError)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expect, raw)
		})
	}
}

func TestMarshalFrame_FD(t *testing.T) {
	data := make([]byte, 12)
	data[11] = 0xE1
	frame, err := cyphal.NewFrame(0x107D552A, data, cyphal.MTUFD)
	assert.NoError(t, err)

	raw, err := marshalFrame(frame, true, true)
	assert.NoError(t, err)
	assert.Len(t, raw, canFDMTU)
	assert.Equal(t, []byte{0x2A, 0x55, 0x7D, 0x90, 12, canFDFlagBRS, 0, 0}, raw[:8])
	assert.Equal(t, byte(0xE1), raw[8+11])
}

func TestUnmarshalFrame(t *testing.T) {
	var testCases = []struct {
		name        string
		when        []byte
		expectID    uint32
		expectData    []byte
		expectError   string
		expectSkipped bool
	}{
		{
			name: "ok, classic extended frame",
			when: []byte{
				0x2A, 0x55, 0x7D, 0x90,
				0x03, 0x00, 0x00, 0x00,
				0x01, 0x02, 0xE0, 0x00, 0x00, 0x00, 0x00, 0x00,
			},
			expectID:   0x107D552A,
			expectData: []byte{0x01, 0x02, 0xE0},
		},
		{
			name: "nok, standard frame",
			when: []byte{
				0x23, 0x01, 0x00, 0x00,
				0x01, 0x00, 0x00, 0x00,
				0xE0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			},
			expectError:   "read CAN standard (11 bit) frame",
			expectSkipped: true,
		},
		{
			name: "nok, RTR frame",
			when: []byte{
				0x2A, 0x55, 0x7D, 0xD0,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			},
			expectError:   "read CAN remote transmission request frame",
			expectSkipped: true,
		},
		{
			name: "nok, error frame",
			when: []byte{
				0x04, 0x00, 0x00, 0x20,
				0x08, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			},
			expectError: "read CAN error message frame",
		},
		{
			name: "nok, classic frame with too long length",
			when: []byte{
				0x2A, 0x55, 0x7D, 0x90,
				0x09, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			},
			expectError: "invalid CAN frame data length: 9",
		},
		{
			name:        "nok, unexpected read size",
			when:        []byte{0x2A, 0x55, 0x7D, 0x90},
			expectError: "read unexpected amount of bytes for CAN frame: 4",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := unmarshalFrame(tc.when)
			if tc.expectError != "" {
				assert.EqualError(t, err, tc.expectError)
				assert.Equal(t, tc.expectSkipped, isSkippedFrameErr(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expectID, frame.ID())
			assert.Equal(t, tc.expectData, frame.Data())
		})
	}
}

func TestUnmarshalFrame_FD(t *testing.T) {
	frame, err := cyphal.NewFrame(0x107D552A, append(make([]byte, 47), 0xE1), cyphal.MTUFD)
	assert.NoError(t, err)

	raw, err := marshalFrame(frame, true, false)
	assert.NoError(t, err)

	got, err := unmarshalFrame(raw)
	assert.NoError(t, err)
	assert.Equal(t, uint32(0x107D552A), got.ID())
	assert.Equal(t, 48, got.Len())
	tail, ok := got.Tail()
	assert.True(t, ok)
	assert.True(t, tail.IsSingleFrame())
}
