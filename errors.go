package fsoe

import "errors"

// Sentinel errors returned by public API functions when the host violates a
// precondition. These are never put on the wire and never recovered from
// automatically: a misused instance is corrupt until re-initialized with
// New. Wire-level faults (bad CRC, wrong command, watchdog expiry, ...) are
// reported through SyncStatus instead, see ResetReason.
var (
	ErrNullArgument      = errors.New("fsoe: required argument is nil")
	ErrUninitialized     = errors.New("fsoe: instance was not created with New")
	ErrWrongState        = errors.New("fsoe: operation is not valid in the current state")
	ErrBadConfiguration  = errors.New("fsoe: configuration is invalid")
	ErrReentrantCallback = errors.New("fsoe: host callback re-entered the instance it was called from")
)
