package fsoe

import "fmt"

// ResetReason is the code carried by a Reset frame, explaining why the
// connection was reset. Codes 0-11 are defined by ETG.5100; 0x80-0xFF are
// reserved for application-specific parameter rejection reasons returned
// by a host's VerifyParameters callback.
type ResetReason uint8

const (
	ResetLocalReset        ResetReason = 0
	ResetInvalidCommand    ResetReason = 1
	ResetUnknownCommand    ResetReason = 2
	ResetInvalidConnID     ResetReason = 3
	ResetInvalidCRC        ResetReason = 4
	ResetWatchdogExpired   ResetReason = 5
	ResetInvalidAddress    ResetReason = 6
	ResetInvalidData       ResetReason = 7
	ResetInvalidComParaLen ResetReason = 8
	ResetInvalidWatchdog   ResetReason = 9
	ResetInvalidAppParaLen ResetReason = 10
	ResetInvalidAppPara    ResetReason = 11

	// ResetAppSpecificMin is the first of the application-specific
	// rejection codes a VerifyParameters callback may return.
	ResetAppSpecificMin ResetReason = 0x80
	ResetAppSpecificMax ResetReason = 0xFF
)

var resetReasonDescriptions = map[ResetReason]string{
	ResetLocalReset:        "local reset",
	ResetInvalidCommand:    "INVALID_CMD: frame carried the wrong command for the current state",
	ResetUnknownCommand:    "UNKNOWN_CMD: frame carried an unrecognized command byte",
	ResetInvalidConnID:     "INVALID_CONNID: connection ID did not match",
	ResetInvalidCRC:        "INVALID_CRC: CRC_0 did not match",
	ResetWatchdogExpired:   "WD_EXPIRED: watchdog timed out",
	ResetInvalidAddress:    "INVALID_ADDRESS: wrong slave address in Connection frame",
	ResetInvalidData:       "INVALID_DATA: peer echoed unexpected data",
	ResetInvalidComParaLen: "wrong communication-parameter length",
	ResetInvalidWatchdog:   "incompatible watchdog value",
	ResetInvalidAppParaLen: "wrong application-parameter length",
	ResetInvalidAppPara:    "application-parameter verification failed",
}

// String describes a reset reason as a human-readable string literal, the
// Go counterpart of fsoemaster_reset_reason_description() /
// fsoeslave_reset_reason_description() in the original C stack.
func (r ResetReason) String() string {
	if desc, ok := resetReasonDescriptions[r]; ok {
		return desc
	}
	if r >= ResetAppSpecificMin {
		return fmt.Sprintf("application-specific rejection code 0x%02X", uint8(r))
	}
	return "invalid reset reason"
}

// ResetEvent classifies who initiated a connection reset, as reported in
// SyncStatus after a call to SyncWithPeer.
type ResetEvent uint8

const (
	ResetEventNone ResetEvent = iota
	ResetEventByMaster
	ResetEventBySlave
)

func (e ResetEvent) String() string {
	switch e {
	case ResetEventNone:
		return "None"
	case ResetEventByMaster:
		return "ByMaster"
	case ResetEventBySlave:
		return "BySlave"
	default:
		return "Unknown"
	}
}
