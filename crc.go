package cyphal

// CRC is CRC-16/CCITT-FALSE (CRC-16/IBM-3740) checksum used by multi-frame transfers.
// Polynomial 0x1021, initial value 0xFFFF, no reflection, no final xor.
type CRC uint16

const (
	crcInitial    CRC = 0xFFFF
	crcPolynomial     = 0x1021
	crcSize           = 2
	// crcResidue is value CRC has after running over data followed by its own big-endian CRC.
	crcResidue CRC = 0x0000
)

var crcTable = makeCRCTable()

func makeCRCTable() (table [256]CRC) {
	for i := range table {
		crc := CRC(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// NewCRC returns CRC at its initial value.
func NewCRC() CRC {
	return crcInitial
}

// ComputeCRC returns CRC-16/CCITT-FALSE of data.
func ComputeCRC(data []byte) CRC {
	return NewCRC().Add(data)
}

// AddByte returns CRC updated with single byte.
func (c CRC) AddByte(b byte) CRC {
	return c<<8 ^ crcTable[byte(c>>8)^b]
}

// Add returns CRC updated with all bytes of data.
func (c CRC) Add(data []byte) CRC {
	for _, b := range data {
		c = c.AddByte(b)
	}
	return c
}

// Bytes returns CRC in big-endian (network) byte order as it is transmitted on the wire.
func (c CRC) Bytes() [crcSize]byte {
	return [crcSize]byte{byte(c >> 8), byte(c)}
}
