package fsoe

import "encoding/binary"

// safeParaHeaderSize is the fixed part of a serialized SafePara block: one
// byte WatchdogSize tag (always 2, the width of the Watchdog field itself)
// plus the 2 byte Watchdog value plus a 2 byte AppParamSize length prefix.
const safeParaHeaderSize = 1 + 2 + 2

const watchdogFieldSize = 2

// EncodeSafePara serializes the parameter block a master sends to a slave
// during the Parameter phase: WatchdogSize(=2) | Watchdog(ms) | AppParamSize
// | AppParam[...], all little-endian.
func EncodeSafePara(watchdogTimeoutMs uint16, appParams []byte) []byte {
	buf := make([]byte, safeParaHeaderSize+len(appParams))
	buf[0] = watchdogFieldSize
	binary.LittleEndian.PutUint16(buf[1:3], watchdogTimeoutMs)
	binary.LittleEndian.PutUint16(buf[3:5], uint16(len(appParams)))
	copy(buf[5:], appParams)
	return buf
}

// DecodeSafePara parses a SafePara block produced by EncodeSafePara. It
// returns ResetInvalidComParaLen if buf is too short for its own header,
// ResetInvalidWatchdog if the WatchdogSize tag is not the expected
// constant, and ResetInvalidAppParaLen if the declared AppParamSize exceeds
// MaxAppParamSize or the bytes left in buf.
func DecodeSafePara(buf []byte) (watchdogTimeoutMs uint16, appParams []byte, reason ResetReason, ok bool) {
	if len(buf) < safeParaHeaderSize {
		return 0, nil, ResetInvalidComParaLen, false
	}
	if buf[0] != watchdogFieldSize {
		return 0, nil, ResetInvalidWatchdog, false
	}
	watchdogTimeoutMs = binary.LittleEndian.Uint16(buf[1:3])
	appParamSize := int(binary.LittleEndian.Uint16(buf[3:5]))
	if appParamSize > MaxAppParamSize || safeParaHeaderSize+appParamSize > len(buf) {
		return 0, nil, ResetInvalidAppParaLen, false
	}
	appParams = buf[5 : 5+appParamSize]
	return watchdogTimeoutMs, appParams, 0, true
}
