package main

import (
	"encoding/binary"
	"time"

	"github.com/aldas/go-cyphal-can"
)

// heartbeatSubjectID is fixed subject of uavcan.node.Heartbeat.1.0
const heartbeatSubjectID cyphal.SubjectID = 7509

const (
	healthNominal  uint8 = 0
	healthAdvisory uint8 = 1
	healthCaution  uint8 = 2
	healthWarning  uint8 = 3
)

// heartbeat is uavcan.node.Heartbeat.1.0 message.
type heartbeat struct {
	Uptime                   uint32
	Health                   uint8
	Mode                     uint8
	VendorSpecificStatusCode uint8
}

func (h heartbeat) SubjectID() cyphal.SubjectID { return heartbeatSubjectID }

func (h heartbeat) MarshalBinary() ([]byte, error) {
	b := make([]byte, 7)
	binary.LittleEndian.PutUint32(b[0:4], h.Uptime)
	b[4] = h.Health & 0b11
	b[5] = h.Mode & 0b111
	b[6] = h.VendorSpecificStatusCode
	return b, nil
}

func (h *heartbeat) UnmarshalBinary(data []byte) error {
	// implicit zero extension of truncated message
	var b [7]byte
	copy(b[:], data)
	h.Uptime = binary.LittleEndian.Uint32(b[0:4])
	h.Health = b[4] & 0b11
	h.Mode = b[5] & 0b111
	h.VendorSpecificStatusCode = b[6]
	return nil
}

func uptimeSeconds(start, now time.Time) uint32 {
	return uint32(now.Sub(start) / time.Second)
}
