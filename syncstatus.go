package fsoe

// SyncStatus reports the outcome of one SyncWithPeer cycle. Protocol faults
// are reported here, never as a returned error — see ResetEvent/ResetReason.
type SyncStatus struct {
	// State is the state the instance is in after this cycle.
	State State

	// ResetEvent reports whether a reset was just driven by this side, by
	// the peer, or not at all this cycle.
	ResetEvent ResetEvent

	// ResetReason is meaningful only when ResetEvent != ResetEventNone.
	ResetReason ResetReason

	// IsProcessDataReceived is true when the frame just received in Data
	// state carried the ProcessData command and was accepted without
	// error; the inputs buffer passed to SyncWithPeer only holds live
	// process data when this is true.
	IsProcessDataReceived bool
}
