package protocol

import "github.com/sigurn/crc16"

// crcTable is computed once; CCITT_FALSE matches this protocol's CRC
// parameters (poly 0x1021, init 0xFFFF, no reflection, no final xor) exactly.
var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// crc16CCITT computes CRC-16/CCITT-FALSE over data.
func crc16CCITT(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
