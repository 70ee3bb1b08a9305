package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCcittSingle(t *testing.T) {
	crc := CRC16(0)
	crc.Single(10)
	assert.EqualValues(t, 0xA14A, crc)
}

func TestCRC0Deterministic(t *testing.T) {
	a := CRC0(0, 0x05, [2]byte{0x01, 0x02}, 7, 0x0008, 0x1234)
	b := CRC0(0, 0x05, [2]byte{0x01, 0x02}, 7, 0x0008, 0x1234)
	assert.Equal(t, a, b)
}

func TestCRC0SensitiveToEveryInput(t *testing.T) {
	base := CRC0(0xBEEF, 0x05, [2]byte{0x01, 0x02}, 7, 0x0008, 0x1234)

	assert.NotEqual(t, base, CRC0(0xBEEE, 0x05, [2]byte{0x01, 0x02}, 7, 0x0008, 0x1234), "prevCrc")
	assert.NotEqual(t, base, CRC0(0xBEEF, 0x04, [2]byte{0x01, 0x02}, 7, 0x0008, 0x1234), "cmd")
	assert.NotEqual(t, base, CRC0(0xBEEF, 0x05, [2]byte{0x00, 0x02}, 7, 0x0008, 0x1234), "data[0]")
	assert.NotEqual(t, base, CRC0(0xBEEF, 0x05, [2]byte{0x01, 0x03}, 7, 0x0008, 0x1234), "data[1]")
	assert.NotEqual(t, base, CRC0(0xBEEF, 0x05, [2]byte{0x01, 0x02}, 6, 0x0008, 0x1234), "seqNo")
	assert.NotEqual(t, base, CRC0(0xBEEF, 0x05, [2]byte{0x01, 0x02}, 7, 0x0009, 0x1234), "connID")
	assert.NotEqual(t, base, CRC0(0xBEEF, 0x05, [2]byte{0x01, 0x02}, 7, 0x0008, 0x1235), "sessionID")
}

func TestSRAUpdateAssociative(t *testing.T) {
	a := []byte{0x01, 0x02, 0x03}
	b := []byte{0x04, 0x05}

	combined := SRAUpdate(0, append(append([]byte{}, a...), b...))
	staged := SRAUpdate(SRAUpdate(0, a), b)

	assert.Equal(t, combined, staged)
}

func TestSRAUpdateEmptyIsIdempotent(t *testing.T) {
	assert.Equal(t, uint32(0x1234), SRAUpdate(0x1234, nil))
	assert.Equal(t, uint32(0x1234), SRAUpdate(0x1234, []byte{}))
}
