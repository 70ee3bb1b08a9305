// Package frame implements the FSoE Safety PDU codec: stateless encoding
// and decoding of the fixed-size frames exchanged between master and
// slave, including the per-data-pair CRC_0 chaining that binds every frame
// to its session.
package frame

import (
	"errors"

	fsoe "github.com/samsamfire/gofsoe"
	"github.com/samsamfire/gofsoe/internal/crc"
)

// Errors returned by Decode, classifying why a received frame was rejected.
var (
	ErrInvalidCRC     = errors.New("frame: CRC_0 mismatch")
	ErrInvalidConnID  = errors.New("frame: connection ID mismatch")
	ErrUnknownCommand = errors.New("frame: unrecognized command byte")
	ErrShortFrame     = errors.New("frame: buffer shorter than FrameSize(n)")
)

// CRCContext carries the per-session values CRC_0 chains on. Encode and
// Decode are pure with respect to it: they take the caller's current
// values and return the next LastCrc, they never retain state themselves.
type CRCContext struct {
	// LastCrc is the CRC_0 of the previous frame sent or received on this
	// connection (0 for the very first frame after a reset).
	LastCrc uint16

	// SeqNo is this frame's sequence number, tracked by the caller.
	SeqNo uint16

	// ConnID is the connection's 16 bit identifier.
	ConnID uint16

	// SessionID is the *other* side's session id (a Master passes its
	// SlaveSessionID here and vice versa).
	SessionID uint16
}

// FrameSize returns the wire length of a frame carrying n data bytes:
// max(3 + 2n, 6). The connection-id field is 1 byte wide in the minimal
// 6-byte frame (n == 1) and 2 bytes wide otherwise.
func FrameSize(n int) int {
	size := 3 + 2*n
	if size < 6 {
		return 6
	}
	return size
}

func connIDWidth(n int) int {
	if n == 1 {
		return 1
	}
	return 2
}

// Encode lays out one Safety PDU: command byte, each 2-byte data pair
// followed by its chained CRC_0, then the little-endian connection ID. For
// n == 1 the single data byte occupies the first slot zero-padded, and the
// connection ID is truncated to its low byte, both on the wire and in CRC_0.
//
// Encode is stateless: it returns the frame bytes and the final CRC_0
// (the new LastCrc the caller should pass into the next call on this
// connection).
func Encode(cmd fsoe.Command, data []byte, ctx CRCContext) ([]byte, uint16) {
	n := len(data)
	out := make([]byte, FrameSize(n))
	out[0] = byte(cmd)

	pairs := (n + 1) / 2
	if pairs == 0 {
		pairs = 1
	}
	hashConnID := ctx.ConnID
	if connIDWidth(n) == 1 {
		hashConnID &= 0xFF
	}
	runningCrc := ctx.LastCrc
	offset := 1
	for i := 0; i < pairs; i++ {
		var pair [2]byte
		lo := 2 * i
		if lo < n {
			pair[0] = data[lo]
		}
		if lo+1 < n {
			pair[1] = data[lo+1]
		}
		out[offset] = pair[0]
		out[offset+1] = pair[1]
		runningCrc = crc.CRC0(runningCrc, byte(cmd), pair, ctx.SeqNo, hashConnID, ctx.SessionID)
		out[offset+2] = byte(runningCrc)
		out[offset+3] = byte(runningCrc >> 8)
		offset += 4
	}

	if connIDWidth(n) == 1 {
		out[offset] = byte(ctx.ConnID)
	} else {
		out[offset] = byte(ctx.ConnID)
		out[offset+1] = byte(ctx.ConnID >> 8)
	}

	return out, runningCrc
}

// Decode parses a raw frame carrying n data bytes (the caller passes the
// sender's process-data size, which fixes the frame size) and verifies
// every chained CRC_0 and the connection ID. On success it
// returns the command byte, the decoded data bytes, and the new LastCrc.
func Decode(raw []byte, n int, expectedConnID uint16, ctx CRCContext) (fsoe.Command, []byte, uint16, error) {
	cmd, data, newCrc, gotConnID, err := decodeCore(raw, n, ctx)
	if err != nil {
		return 0, nil, ctx.LastCrc, err
	}
	if connIDWidth(n) == 1 {
		if gotConnID != expectedConnID&0xFF {
			return 0, nil, ctx.LastCrc, ErrInvalidConnID
		}
	} else if gotConnID != expectedConnID {
		return 0, nil, ctx.LastCrc, ErrInvalidConnID
	}
	return cmd, data, newCrc, nil
}

// DecodeUnknownConnID parses a frame the same way Decode does but without
// checking the connection ID against any expectation, returning the
// connection ID embedded in the frame alongside the usual results. A slave
// uses this for the first frame after each reset, learns its master's
// connection ID from it, and validates every later frame against that
// value with Decode.
func DecodeUnknownConnID(raw []byte, n int, ctx CRCContext) (fsoe.Command, []byte, uint16, uint16, error) {
	cmd, data, newCrc, gotConnID, err := decodeCore(raw, n, ctx)
	if err != nil {
		return 0, nil, ctx.LastCrc, 0, err
	}
	return cmd, data, newCrc, gotConnID, nil
}

// decodeCore runs the CRC_0 chain and returns the trailing connection ID
// as transmitted, without judging whether it was expected. The connection
// ID fed into the CRC hash is always the one actually embedded in the
// frame's trailing field (the same value the sender hashed with), not
// ctx.ConnID, so a receiver that has not yet learned the connection ID can
// still verify CRC_0 correctly.
func decodeCore(raw []byte, n int, ctx CRCContext) (fsoe.Command, []byte, uint16, uint16, error) {
	want := FrameSize(n)
	if len(raw) < want {
		return 0, nil, ctx.LastCrc, 0, ErrShortFrame
	}

	cmd := fsoe.Command(raw[0])
	if !knownCommandByte(cmd) {
		return 0, nil, ctx.LastCrc, 0, ErrUnknownCommand
	}

	pairs := (n + 1) / 2
	if pairs == 0 {
		pairs = 1
	}
	tailOffset := 1 + 4*pairs
	var connID uint16
	if connIDWidth(n) == 1 {
		connID = uint16(raw[tailOffset])
	} else {
		connID = uint16(raw[tailOffset]) | uint16(raw[tailOffset+1])<<8
	}

	data := make([]byte, n)
	runningCrc := ctx.LastCrc
	offset := 1
	for i := 0; i < pairs; i++ {
		var pair [2]byte
		pair[0] = raw[offset]
		pair[1] = raw[offset+1]
		runningCrc = crc.CRC0(runningCrc, byte(cmd), pair, ctx.SeqNo, connID, ctx.SessionID)
		gotCrc := uint16(raw[offset+2]) | uint16(raw[offset+3])<<8
		if gotCrc != runningCrc {
			return 0, nil, ctx.LastCrc, 0, ErrInvalidCRC
		}
		lo := 2 * i
		if lo < n {
			data[lo] = pair[0]
		}
		if lo+1 < n {
			data[lo+1] = pair[1]
		}
		offset += 4
	}

	return cmd, data, runningCrc, connID, nil
}

func knownCommandByte(c fsoe.Command) bool {
	switch c {
	case fsoe.CommandReset, fsoe.CommandSession, fsoe.CommandConnection,
		fsoe.CommandParameter, fsoe.CommandProcessData, fsoe.CommandFailSafeData:
		return true
	default:
		return false
	}
}
