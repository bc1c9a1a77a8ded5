package cyphal

import (
	"strconv"
)

// Parameter ranges are inclusive, the lower bound is zero for all of them.
const (
	// SubjectIDMax is largest subject (topic) id in CAN message subject space. 13 bits.
	SubjectIDMax = 8191
	// ServiceIDMax is largest service id in CAN service space. 9 bits.
	ServiceIDMax = 511
	// NodeIDMax is largest node address on CAN bus. 7 bits.
	NodeIDMax = 127
	// PriorityMax is lowest priority level (PriorityOptional).
	PriorityMax = 7

	transferIDBitLength = 5
	// TransferIDMax is largest transfer id value after which counter wraps back to 0.
	TransferIDMax = (1 << transferIDBitLength) - 1
)

// MTU is maximum number of data bytes in single CAN frame (tail byte included).
type MTU int

const (
	// MTUClassic is data size of classic CAN 2.0 frame
	MTUClassic MTU = 8
	// MTUFD is data size of CAN FD frame
	MTUFD MTU = 64
)

// NodeID is node address on CAN bus (0-127).
type NodeID uint8

// NodeIDUnset marks node that has no address (anonymous node).
const NodeIDUnset NodeID = 0xff

// IsSet reports if node id is valid address (0-127).
func (n NodeID) IsSet() bool { return n <= NodeIDMax }

// SubjectID identifies topic for published messages (0-8191).
type SubjectID uint16

// ServiceID identifies request/response service (0-511).
type ServiceID uint16

// TransferID is modulo-32 counter distinguishing consecutive transfers of same session.
type TransferID uint8

// Next returns following transfer id. After 31 comes 0.
func (t TransferID) Next() TransferID {
	return (t + 1) & TransferIDMax
}

// Priority is transfer priority level. Lower value means higher priority and value is stored as is in CAN ID bits
// 26-28.
type Priority uint8

// Transfer priority level mnemonics per the recommendations given in the Cyphal Specification.
const (
	PriorityExceptional Priority = iota
	PriorityImmediate
	PriorityFast
	PriorityHigh
	PriorityNominal // Nominal priority level should be the default.
	PriorityLow
	PrioritySlow
	PriorityOptional
)

const numberOfPriorities = PriorityMax + 1

var priorityNames = [numberOfPriorities]string{
	"exceptional",
	"immediate",
	"fast",
	"high",
	"nominal",
	"low",
	"slow",
	"optional",
}

func (p Priority) String() string {
	if p > PriorityMax {
		return "priority(" + strconv.Itoa(int(p)) + ")"
	}
	return priorityNames[p]
}

// ParsePriority converts mnemonic (`nominal`) or ordinal (`4`) to Priority
func ParsePriority(s string) (Priority, error) {
	for i, n := range priorityNames {
		if n == s {
			return Priority(i), nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > PriorityMax {
		return 0, ErrOutOfRange
	}
	return Priority(n), nil
}
