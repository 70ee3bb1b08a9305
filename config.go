package fsoe

// Compile-time maxima carried verbatim from the original C stack's
// FSOE_PROCESS_DATA_MAX_SIZE / FSOE_APPLICATION_PARAMETERS_MAX_SIZE, used
// to size every static buffer in master and slave instances.
const (
	MaxProcessDataSize = 126
	MaxAppParamSize    = 256
)

// validDataSize reports whether n is a legal process-data buffer size: 1,
// or an even number up to MaxProcessDataSize.
func validDataSize(n int) bool {
	if n == 1 {
		return true
	}
	return n > 0 && n%2 == 0 && n <= MaxProcessDataSize
}

// MasterConfig configures a Master instance. ConnectionID and
// WatchdogTimeoutMs are master-owned and sent to the slave during the
// Connection and Parameter phases.
type MasterConfig struct {
	// SlaveAddress is the 16 bit address of the slave this master talks
	// to, sent in the Connection frame and echoed back by the slave.
	SlaveAddress uint16

	// ConnectionID is this link's non-zero connection identifier.
	ConnectionID uint16

	// WatchdogTimeoutMs is the watchdog timeout in milliseconds, sent to
	// the slave as part of SafePara. Must be in 1..65535.
	WatchdogTimeoutMs uint16

	// ApplicationParameters is sent to the slave during the Parameter
	// phase. May be empty.
	ApplicationParameters []byte

	// InputsSize and OutputsSize are the process-data buffer sizes, each
	// either 1 or an even number up to MaxProcessDataSize.
	InputsSize  int
	OutputsSize int
}

// Validate reports ErrBadConfiguration if any field is out of range.
func (c MasterConfig) Validate() error {
	if c.ConnectionID == 0 {
		return ErrBadConfiguration
	}
	if c.WatchdogTimeoutMs == 0 {
		return ErrBadConfiguration
	}
	if len(c.ApplicationParameters) > MaxAppParamSize {
		return ErrBadConfiguration
	}
	if !validDataSize(c.InputsSize) || !validDataSize(c.OutputsSize) {
		return ErrBadConfiguration
	}
	return nil
}

// SlaveConfig configures a Slave instance. The slave receives its
// connection id, watchdog timeout, and application parameters from the
// master during the handshake, so it does not configure them itself.
type SlaveConfig struct {
	// SlaveAddress is this slave's own 16 bit address, checked against
	// the address the master sends in the Connection frame.
	SlaveAddress uint16

	// InputsSize and OutputsSize are the process-data buffer sizes, each
	// either 1 or an even number up to MaxProcessDataSize.
	InputsSize  int
	OutputsSize int
}

// Validate reports ErrBadConfiguration if either process-data size is
// invalid.
func (c SlaveConfig) Validate() error {
	if !validDataSize(c.InputsSize) || !validDataSize(c.OutputsSize) {
		return ErrBadConfiguration
	}
	return nil
}
