// Package crc implements the two checksums used by the FSoE safety layer:
// the 16 bit CRC_0 that chains every Safety PDU to its session, and the
// optional 32 bit SRA-CRC used to protect application parameters.
package crc

// CRC16 is a CCITT-style 16 bit CRC (polynomial 0x1021, MSB first, no
// reflection, externally-seeded). It is the building block for CRC_0:
// FSoE does not use it directly over a raw byte stream, it chains it over
// the specific fields listed in ETG.5100 ch. 8.1.3 via CRC0 below.
type CRC16 uint16

const poly16 = 0x1021

// Single folds one byte into the running CRC.
func (c *CRC16) Single(b byte) {
	crc := uint16(*c)
	crc ^= uint16(b) << 8
	for i := 0; i < 8; i++ {
		if crc&0x8000 != 0 {
			crc = (crc << 1) ^ poly16
		} else {
			crc = crc << 1
		}
	}
	*c = CRC16(crc)
}

// Block folds every byte of data into the running CRC, in order.
func (c *CRC16) Block(data []byte) {
	for _, b := range data {
		c.Single(b)
	}
}

// CRC0 computes the FSoE safety CRC for one data-pair slot of a frame.
//
// prevCrc is LastCrc (the CRC_0 of the previous frame sent or received on
// this connection); cmd and data are the command byte and the 2 data bytes
// of this slot; seqNo and connID are the frame's sequence number and
// connection ID; otherSessionID is the *other* side's Session ID (Master
// uses SlaveSessionID and vice versa) — this is what binds every
// subsequent CRC_0 to the session established when the connection started.
func CRC0(prevCrc uint16, cmd byte, data [2]byte, seqNo uint16, connID uint16, otherSessionID uint16) uint16 {
	c := CRC16(prevCrc)
	c.Single(cmd)
	c.Single(data[0])
	c.Single(data[1])
	c.Single(byte(seqNo))
	c.Single(byte(seqNo >> 8))
	c.Single(byte(connID))
	c.Single(byte(connID >> 8))
	c.Single(byte(otherSessionID))
	c.Single(byte(otherSessionID >> 8))
	return uint16(c)
}

// CRC32 is the SRA-CRC accumulator described in ETG.5120 ch. 6.3, a
// reflected CRC-32 (polynomial 0xEDB88320, the common IEEE 802.3 form).
// It is optional and purely functional: application parameters are not
// required to use it.
type CRC32 uint32

var crc32Table [256]uint32

func init() {
	const poly32 = 0xEDB88320
	for i := 0; i < 256; i++ {
		c := uint32(i)
		for j := 0; j < 8; j++ {
			if c&1 != 0 {
				c = (c >> 1) ^ poly32
			} else {
				c = c >> 1
			}
		}
		crc32Table[i] = c
	}
}

// SRAUpdate folds buf into crc and returns the updated value. Calling
// SRAUpdate(0, a) then SRAUpdate(result, b) is equivalent to
// SRAUpdate(0, append(a, b...)) — the update is associative over
// concatenation.
func SRAUpdate(crc uint32, buf []byte) uint32 {
	inverted := ^crc
	for _, b := range buf {
		inverted = crc32Table[byte(inverted)^b] ^ (inverted >> 8)
	}
	return ^inverted
}
