package frame

import (
	"testing"

	fsoe "github.com/samsamfire/gofsoe"
	"github.com/stretchr/testify/assert"
)

func testCtx() CRCContext {
	return CRCContext{LastCrc: 0, SeqNo: 7, ConnID: 0x0008, SessionID: 0x1234}
}

func TestFrameSize(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{1, 6}, {2, 7}, {4, 11}, {6, 15}, {126, 255},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FrameSize(c.n), "n=%d", c.n)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 4, 8, 126} {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i + 1)
		}
		ctx := testCtx()
		encoded, _ := Encode(fsoe.CommandProcessData, data, ctx)
		assert.Len(t, encoded, FrameSize(n))

		cmd, decoded, _, err := Decode(encoded, n, ctx.ConnID, ctx)
		assert.NoError(t, err, "n=%d", n)
		assert.Equal(t, fsoe.CommandProcessData, cmd)
		assert.Equal(t, data, decoded)
	}
}

func TestDecodeRejectsCorruptedCRC(t *testing.T) {
	ctx := testCtx()
	data := []byte{0x01, 0x02}
	encoded, _ := Encode(fsoe.CommandProcessData, data, ctx)

	encoded[1] ^= 0x01 // flip a data bit without fixing up the CRC

	_, _, _, err := Decode(encoded, len(data), ctx.ConnID, ctx)
	assert.ErrorIs(t, err, ErrInvalidCRC)
}

func TestDecodeRejectsWrongConnID(t *testing.T) {
	ctx := testCtx()
	data := []byte{0x01, 0x02}
	encoded, _ := Encode(fsoe.CommandProcessData, data, ctx)

	_, _, _, err := Decode(encoded, len(data), ctx.ConnID+1, ctx)
	assert.ErrorIs(t, err, ErrInvalidConnID)
}

func TestDecodeRejectsUnknownCommand(t *testing.T) {
	ctx := testCtx()
	data := []byte{0x01, 0x02}
	encoded, _ := Encode(fsoe.Command(0x7F), data, ctx)

	_, _, _, err := Decode(encoded, len(data), ctx.ConnID, ctx)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestCRCChainsAcrossSubsequentFrames(t *testing.T) {
	ctx := testCtx()
	data := []byte{0x01, 0x02}

	first, lastCrc1 := Encode(fsoe.CommandProcessData, data, ctx)
	ctx.LastCrc = lastCrc1
	ctx.SeqNo++
	second, lastCrc2 := Encode(fsoe.CommandProcessData, data, ctx)

	assert.NotEqual(t, lastCrc1, lastCrc2)
	assert.NotEqual(t, first[3], second[3], "seq-dependent CRC byte should differ between frames")
}

func TestCRCSensitiveToSessionID(t *testing.T) {
	ctx := testCtx()
	data := []byte{0x01, 0x02}

	_, crcA := Encode(fsoe.CommandProcessData, data, ctx)
	ctx.SessionID++
	_, crcB := Encode(fsoe.CommandProcessData, data, ctx)

	assert.NotEqual(t, crcA, crcB)
}
