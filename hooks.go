package fsoe

// UserErrorKind classifies a precondition violated by the host, passed to
// Hooks.HandleUserError. These never occur from a well-formed peer; they
// signal a bug in the calling application.
type UserErrorKind uint8

const (
	ErrorNullInstance UserErrorKind = iota
	ErrorUninitializedInstance
	ErrorWrongInstanceState
	ErrorNullArgument
	ErrorBadConfiguration
)

func (k UserErrorKind) String() string {
	switch k {
	case ErrorNullInstance:
		return "NullInstance"
	case ErrorUninitializedInstance:
		return "UninitializedInstance"
	case ErrorWrongInstanceState:
		return "WrongInstanceState"
	case ErrorNullArgument:
		return "NullArgument"
	case ErrorBadConfiguration:
		return "BadConfiguration"
	default:
		return "Unknown"
	}
}

// Hooks is the set of host-implemented callbacks a Master or Slave invokes
// during SyncWithPeer. All of them must return without blocking and must
// not call back into the instance that invoked them.
type Hooks struct {
	// Send transmits one frame over the black channel. It must not block.
	Send func(frame []byte) error

	// Recv returns a new frame in buffer and its length, 0 if none is
	// available, or a repeat of the previously received frame. It must
	// not block.
	Recv func(buffer []byte) (int, error)

	// GenerateSessionID returns a 16 bit random value, reseeded across
	// power cycles. Called once per side on entering Session state.
	GenerateSessionID func() uint16

	// VerifyParameters is invoked by a Slave in Parameter state when the
	// master's first Data-phase frame arrives, with the watchdog timeout
	// and application parameters received during the Parameter phase. It
	// returns 0 to accept, or one of the defined reset-reason codes (9, 10,
	// 11, or an application-specific code in 0x80-0xFF) to reject.
	VerifyParameters func(timeoutMs uint16, appParams []byte) ResetReason

	// HandleUserError is invoked synchronously whenever the host violates
	// an operation precondition (nil instance, uninitialized instance,
	// wrong state, bad configuration, nil argument).
	HandleUserError func(kind UserErrorKind)
}

// ReportUserError calls h.HandleUserError if the host installed one. It is
// safe to call on a zero-value Hooks.
func (h Hooks) ReportUserError(kind UserErrorKind) {
	if h.HandleUserError != nil {
		h.HandleUserError(kind)
	}
}
