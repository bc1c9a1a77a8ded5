package cyphal

// RawMessage is message with already serialized payload.
type RawMessage struct {
	Subject SubjectID
	Data    []byte
}

func (m RawMessage) SubjectID() SubjectID { return m.Subject }

func (m RawMessage) MarshalBinary() ([]byte, error) {
	return m.Data, nil
}

// RawRequest is service request with already serialized payload.
type RawRequest struct {
	Service ServiceID
	Data    []byte
}

func (r RawRequest) ServiceID() ServiceID { return r.Service }

func (r RawRequest) MarshalBinary() ([]byte, error) {
	return r.Data, nil
}

// RawResponse receives service response payload of fixed size as is.
type RawResponse struct {
	Length int
	Data   []byte
}

func (r *RawResponse) Size() int { return r.Length }

func (r *RawResponse) UnmarshalBinary(data []byte) error {
	r.Data = append(r.Data[:0], data...)
	return nil
}

// BytesMarshaler adapts already serialized bytes to encoding.BinaryMarshaler, i.e. to be used with Transport.Respond
type BytesMarshaler []byte

func (b BytesMarshaler) MarshalBinary() ([]byte, error) {
	return b, nil
}
