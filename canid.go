package cyphal

// Cyphal/CAN 29-bit extended CAN identifier layout (bit 0 = LSB)
//
//	| Bits  | Message             | Service              |
//	|-------|---------------------|----------------------|
//	| 28-26 | priority            | priority             |
//	| 25    | 0                   | 1                    |
//	| 24    | anonymous flag      | request flag         |
//	| 23    | reserved = 0        | reserved = 0         |
//	| 22-21 | reserved = 1,1      | service id (14-22)   |
//	| 20-8  | subject id          | destination (7-13)   |
//	| 7     | reserved = 0        |                      |
//	| 6-0   | source node id      | source node id       |
const (
	flagServiceNotMessage  = uint32(1 << 25)
	flagAnonymousMessage   = uint32(1 << 24)
	flagRequestNotResponse = uint32(1 << 24)
	flagReserved23         = uint32(1 << 23)
	flagReserved22         = uint32(1 << 22)
	flagReserved21         = uint32(1 << 21)
	flagReserved07         = uint32(1 << 7)

	offsetPriority  = 26
	offsetSubjectID = 8
	offsetServiceID = 14
	offsetDstNodeID = 7

	// CANIDMask is mask for 29 bits of extended CAN identifier
	CANIDMask = uint32(1<<29) - 1
)

// Identifier is decoded Cyphal CAN ID. It is either MessageIdentifier or ServiceIdentifier.
type Identifier interface {
	// Uint32 encodes identifier into 29-bit extended CAN ID.
	Uint32() uint32
	// GetPriority returns priority of transfer.
	GetPriority() Priority

	isIdentifier()
}

// MessageIdentifier is CAN ID of published message (subject) transfer.
type MessageIdentifier struct {
	Priority Priority
	// Anonymous marks transfer from node without address. Source value is meaningless in that case.
	Anonymous bool
	Subject   SubjectID
	Source    NodeID
}

// ServiceIdentifier is CAN ID of service request or response transfer.
type ServiceIdentifier struct {
	Priority    Priority
	IsRequest   bool
	Service     ServiceID
	Destination NodeID
	Source      NodeID
}

func (MessageIdentifier) isIdentifier() {}
func (ServiceIdentifier) isIdentifier() {}

// GetPriority returns priority of transfer.
func (m MessageIdentifier) GetPriority() Priority { return m.Priority }

// GetPriority returns priority of transfer.
func (s ServiceIdentifier) GetPriority() Priority { return s.Priority }

// NewMessageIdentifier creates message identifier and checks that all fields fit into their bit ranges. Anonymous
// messages get source node 0.
//
// NB: Cyphal specification says anonymous source should be pseudorandom. We use fixed placeholder instead.
func NewMessageIdentifier(priority Priority, subject SubjectID, source NodeID, anonymous bool) (MessageIdentifier, error) {
	if anonymous {
		source = 0
	}
	if priority > PriorityMax || subject > SubjectIDMax || source > NodeIDMax {
		return MessageIdentifier{}, ErrOutOfRange
	}
	return MessageIdentifier{
		Priority:  priority,
		Anonymous: anonymous,
		Subject:   subject,
		Source:    source,
	}, nil
}

// NewServiceIdentifier creates service identifier and checks that all fields fit into their bit ranges.
func NewServiceIdentifier(priority Priority, service ServiceID, destination NodeID, source NodeID, isRequest bool) (ServiceIdentifier, error) {
	if priority > PriorityMax || service > ServiceIDMax || destination > NodeIDMax || source > NodeIDMax {
		return ServiceIdentifier{}, ErrOutOfRange
	}
	return ServiceIdentifier{
		Priority:    priority,
		IsRequest:   isRequest,
		Service:     service,
		Destination: destination,
		Source:      source,
	}, nil
}

// Uint32 encodes message identifier to 29-bit CAN ID. Source of anonymous message is always encoded as 0.
func (m MessageIdentifier) Uint32() uint32 {
	canID := uint32(0)
	if !m.Anonymous {
		canID = uint32(m.Source) & NodeIDMax // bits 0-6
	}
	canID |= (uint32(m.Subject) & SubjectIDMax) << offsetSubjectID // bits 8-20
	canID |= flagReserved21 | flagReserved22                       // bits 21,22 are always 1
	canID |= uint32(m.Priority&PriorityMax) << offsetPriority      // bits 26,27,28
	if m.Anonymous {
		canID |= flagAnonymousMessage // bit 24
	}
	return canID
}

// Uint32 encodes service identifier to 29-bit CAN ID.
func (s ServiceIdentifier) Uint32() uint32 {
	canID := uint32(s.Source) & NodeIDMax                           // bits 0-6
	canID |= (uint32(s.Destination) & NodeIDMax) << offsetDstNodeID // bits 7-13
	canID |= (uint32(s.Service) & ServiceIDMax) << offsetServiceID  // bits 14-22
	canID |= flagServiceNotMessage                                  // bit 25
	canID |= uint32(s.Priority&PriorityMax) << offsetPriority       // bits 26,27,28
	if s.IsRequest {
		canID |= flagRequestNotResponse // bit 24
	}
	return canID
}

// ParseCANID decodes 29-bit CAN ID into message or service identifier depending on bit 25.
func ParseCANID(canID uint32) (Identifier, error) {
	if canID&flagServiceNotMessage != 0 {
		return ParseServiceIdentifier(canID)
	}
	return ParseMessageIdentifier(canID)
}

// ParseMessageIdentifier decodes message identifier from CAN ID. Returns ErrInvalidID when CAN ID is service ID and
// ErrOutOfRange when reserved bits do not have their fixed values.
func ParseMessageIdentifier(canID uint32) (MessageIdentifier, error) {
	if canID&^CANIDMask != 0 {
		return MessageIdentifier{}, ErrOutOfRange
	}
	if canID&flagServiceNotMessage != 0 {
		return MessageIdentifier{}, ErrInvalidID
	}
	if canID&flagReserved07 != 0 ||
		canID&flagReserved23 != 0 ||
		canID&flagReserved22 == 0 ||
		canID&flagReserved21 == 0 {
		return MessageIdentifier{}, ErrOutOfRange
	}
	return MessageIdentifier{
		Priority:  Priority(canID>>offsetPriority) & PriorityMax,
		Anonymous: canID&flagAnonymousMessage != 0,
		Subject:   SubjectID(canID>>offsetSubjectID) & SubjectIDMax,
		Source:    NodeID(canID) & NodeIDMax,
	}, nil
}

// ParseServiceIdentifier decodes service identifier from CAN ID. Returns ErrInvalidID when CAN ID is message ID or
// reserved bit 23 is set.
func ParseServiceIdentifier(canID uint32) (ServiceIdentifier, error) {
	if canID&^CANIDMask != 0 {
		return ServiceIdentifier{}, ErrOutOfRange
	}
	if canID&flagServiceNotMessage == 0 || canID&flagReserved23 != 0 {
		return ServiceIdentifier{}, ErrInvalidID
	}
	return ServiceIdentifier{
		Priority:    Priority(canID>>offsetPriority) & PriorityMax,
		IsRequest:   canID&flagRequestNotResponse != 0,
		Service:     ServiceID(canID>>offsetServiceID) & ServiceIDMax,
		Destination: NodeID(canID>>offsetDstNodeID) & NodeIDMax,
		Source:      NodeID(canID) & NodeIDMax,
	}, nil
}

// priorityOf extracts priority bits from raw CAN ID without validating rest of the identifier.
func priorityOf(canID uint32) Priority {
	return Priority(canID>>offsetPriority) & PriorityMax
}
