// Package slave implements the FSoE slave connection state machine: the
// responder that mirrors whatever phase the master orders it into, never
// advancing state on its own except into Reset on a detected error.
// Grounded on the same NMT-state-machine shape as pkg/master, simplified
// the same way (no concurrency, host-driven).
package slave

import (
	"log/slog"

	fsoe "github.com/samsamfire/gofsoe"
	"github.com/samsamfire/gofsoe/internal/chunked"
	"github.com/samsamfire/gofsoe/internal/crc"
	"github.com/samsamfire/gofsoe/pkg/blackchannel"
	"github.com/samsamfire/gofsoe/pkg/frame"
	"github.com/samsamfire/gofsoe/pkg/watchdog"
)

const initialSeqNo uint16 = 1
const connBlockSize = 4   // ConnId(2) | SlaveAddress(2)
const paramHeaderSize = 5 // WatchdogSize(1) | Watchdog(2) | AppParamSize(2)

// Slave drives one FSoE connection as the responding side. A zero-value
// Slave is not usable; construct one with New.
type Slave struct {
	cfg    fsoe.SlaveConfig
	hooks  fsoe.Hooks
	logger *slog.Logger
	bc     *blackchannel.Manager
	wd     watchdog.Watchdog

	initialized bool

	state fsoe.State

	resetRequested  bool
	announcedReset  bool
	pendingReason   fsoe.ResetReason
	pendingEvent    fsoe.ResetEvent
	commFaultReason fsoe.ResetReason

	// connID is the master's connection ID, learned from the trailing
	// field of the first frame seen this connection and fixed from then
	// on; meaningless while !connIDKnown.
	connID      uint16
	connIDKnown bool

	masterSessionID uint16
	slaveSessionID  uint16
	masterSeqNo     uint16
	slaveSeqNo      uint16
	txCrc           uint16
	rxCrc           uint16

	watchdogTimeoutMs uint16
	appParams         []byte

	sessionSend chunked.Send
	sessionRecv chunked.Recv
	connRecv    chunked.Recv
	connSend    chunked.Send
	paramRecv   chunked.Recv
	paramSend   chunked.Send

	processDataSendingEnabled bool
}

// New validates cfg and hooks and returns a Slave ready to Sync, starting
// in StateReset. Send, Recv, GenerateSessionID, and VerifyParameters must
// be non-nil.
func New(cfg fsoe.SlaveConfig, hooks fsoe.Hooks, logger *slog.Logger) (*Slave, error) {
	if hooks.Send == nil || hooks.Recv == nil || hooks.GenerateSessionID == nil || hooks.VerifyParameters == nil {
		hooks.ReportUserError(fsoe.ErrorNullArgument)
		return nil, fsoe.ErrNullArgument
	}
	if err := cfg.Validate(); err != nil {
		hooks.ReportUserError(fsoe.ErrorBadConfiguration)
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	s := &Slave{
		cfg:         cfg,
		hooks:       hooks,
		logger:      logger.With("service", "[FSOE-SLAVE]"),
		bc:          blackchannel.NewManager(hookChannel{hooks}, frame.FrameSize(cfg.InputsSize)),
		initialized: true,
		state:       fsoe.StateReset,
		slaveSeqNo:  initialSeqNo,
	}
	return s, nil
}

// State returns the connection's current phase.
func (s *Slave) State() fsoe.State {
	if s == nil {
		return fsoe.StateReset
	}
	return s.state
}

// MasterSessionID returns the peer's session id, valid once the Session
// phase has completed.
func (s *Slave) MasterSessionID() uint16 { return s.masterSessionID }

// SlaveSessionID returns this side's session id, valid from Session state
// onward.
func (s *Slave) SlaveSessionID() uint16 { return s.slaveSessionID }

// CommFaultReason returns the most recently detected fault's reason code,
// readable even before the SyncWithPeer call that reports it returns.
func (s *Slave) CommFaultReason() fsoe.ResetReason { return s.commFaultReason }

// ProcessDataSendingEnabled reports whether the host has enabled process
// data transmission in Data state.
func (s *Slave) ProcessDataSendingEnabled() bool { return s.processDataSendingEnabled }

// SetProcessDataSendingEnabled allows ProcessData frames to be sent once
// Data state is reached.
func (s *Slave) SetProcessDataSendingEnabled() { s.processDataSendingEnabled = true }

// ClearProcessDataSendingEnabled forces FailSafeData frames even in Data
// state.
func (s *Slave) ClearProcessDataSendingEnabled() { s.processDataSendingEnabled = false }

// SetResetRequested requests a local reset on the next SyncWithPeer call.
func (s *Slave) SetResetRequested() {
	if !s.initialized {
		s.hooks.ReportUserError(fsoe.ErrorUninitializedInstance)
		return
	}
	s.resetRequested = true
}

// TimeUntilTimeoutMs returns the milliseconds remaining before the
// watchdog expires, or math.MaxUint32 if it is not running.
func (s *Slave) TimeUntilTimeoutMs(nowMs uint64) uint32 {
	return s.wd.RemainingMs(nowMs)
}

// UpdateSRACRC folds data into crc using the SRA-CRC (ETG.5120 §6.3).
func (s *Slave) UpdateSRACRC(c uint32, data []byte) uint32 {
	return crc.SRAUpdate(c, data)
}

// ResetReasonDescription is a static lookup from a reset-reason code to a
// human-readable description.
func (s *Slave) ResetReasonDescription(reason fsoe.ResetReason) string {
	return reason.String()
}

type hookChannel struct {
	hooks fsoe.Hooks
}

func (h hookChannel) Send(frame []byte) error         { return h.hooks.Send(frame) }
func (h hookChannel) Recv(buffer []byte) (int, error) { return h.hooks.Recv(buffer) }

// SyncWithPeer drives one protocol cycle: receive and validate a frame
// from the master (if any), advance the state machine, and send the
// response frame appropriate to the current phase. nowMs is the host's
// monotonic tick in milliseconds, used to drive the watchdog.
func (s *Slave) SyncWithPeer(nowMs uint64, outputs, inputs []byte) (fsoe.SyncStatus, error) {
	if s == nil {
		return fsoe.SyncStatus{}, fsoe.ErrUninitialized
	}
	if !s.initialized {
		s.hooks.ReportUserError(fsoe.ErrorUninitializedInstance)
		return fsoe.SyncStatus{}, fsoe.ErrUninitialized
	}
	if len(outputs) != s.cfg.OutputsSize || len(inputs) != s.cfg.InputsSize {
		s.hooks.ReportUserError(fsoe.ErrorNullArgument)
		return fsoe.SyncStatus{State: s.state}, fsoe.ErrNullArgument
	}

	status := fsoe.SyncStatus{State: s.state}

	faulted := false
	var reason fsoe.ResetReason
	var event fsoe.ResetEvent

	if s.resetRequested {
		s.resetRequested = false
		faulted, reason, event = true, fsoe.ResetLocalReset, fsoe.ResetEventBySlave
	} else {
		faulted, reason, event = s.processCycle(nowMs, outputs, inputs, &status)
	}

	if faulted {
		s.triggerReset(reason, event, inputs)
	}

	if s.state == fsoe.StateReset {
		s.driveReset(&status, nowMs)
	}

	status.State = s.state
	return status, nil
}

// processCycle handles one cycle: receive and validate a frame, advance
// per-state logic, reply. It returns whether a fault was detected.
func (s *Slave) processCycle(nowMs uint64, outputs, inputs []byte, status *fsoe.SyncStatus) (bool, fsoe.ResetReason, fsoe.ResetEvent) {
	raw, ok, err := s.bc.Recv()
	if err != nil {
		return false, 0, fsoe.ResetEventNone
	}

	if !ok {
		if s.state != fsoe.StateReset && s.wd.IsExpired(nowMs) {
			return true, fsoe.ResetWatchdogExpired, fsoe.ResetEventBySlave
		}
		return false, 0, fsoe.ResetEventNone
	}

	var cmd fsoe.Command
	var data []byte
	var newCrc uint16

	if !s.connIDKnown {
		var learnedID uint16
		var derr error
		cmd, data, newCrc, learnedID, derr = frame.DecodeUnknownConnID(raw, s.cfg.InputsSize, s.recvCtx())
		if derr != nil {
			return true, decodeErrReason(derr), fsoe.ResetEventBySlave
		}
		s.connID = learnedID
		s.connIDKnown = true
	} else {
		var derr error
		cmd, data, newCrc, derr = frame.Decode(raw, s.cfg.InputsSize, s.connID, s.recvCtx())
		if derr != nil {
			return true, decodeErrReason(derr), fsoe.ResetEventBySlave
		}
	}
	s.rxCrc = newCrc
	s.masterSeqNo++

	if cmd == fsoe.CommandReset {
		payloadReason := fsoe.ResetReason(0)
		if len(data) > 0 {
			payloadReason = fsoe.ResetReason(data[0])
		}
		status.ResetEvent = fsoe.ResetEventByMaster
		status.ResetReason = payloadReason
		s.commFaultReason = payloadReason
		s.resetState()
		s.pendingEvent = fsoe.ResetEventNone
		return false, 0, fsoe.ResetEventNone
	}

	fault, reason := s.advance(cmd, data, inputs, status, nowMs)
	if fault {
		return true, reason, fsoe.ResetEventBySlave
	}

	s.sendReply(outputs, nowMs)
	return false, 0, fsoe.ResetEventNone
}

// advance handles a successfully decoded, non-Reset frame: cmd names the
// phase the master is driving this link into. A transition is legal only
// when it is the phase immediately following the one already completed;
// anything else is ResetInvalidCommand.
func (s *Slave) advance(cmd fsoe.Command, data []byte, inputs []byte, status *fsoe.SyncStatus, nowMs uint64) (bool, fsoe.ResetReason) {
	switch cmd {
	case fsoe.CommandSession:
		if s.state != fsoe.StateReset && s.state != fsoe.StateSession {
			return true, fsoe.ResetInvalidCommand
		}
		if s.state == fsoe.StateReset {
			s.slaveSessionID = s.hooks.GenerateSessionID()
			s.sessionSend = chunked.Send{Buf: []byte{byte(s.slaveSessionID), byte(s.slaveSessionID >> 8)}}
			s.sessionRecv = chunked.Recv{Buf: make([]byte, 2)}
			s.state = fsoe.StateSession
		}
		s.sessionRecv.Accept(data)
		if s.sessionRecv.Done() {
			s.masterSessionID = uint16(s.sessionRecv.Buf[0]) | uint16(s.sessionRecv.Buf[1])<<8
		}

	case fsoe.CommandConnection:
		if s.state != fsoe.StateConnection && (s.state != fsoe.StateSession || !s.sessionRecv.Done()) {
			return true, fsoe.ResetInvalidCommand
		}
		if len(s.connRecv.Buf) == 0 {
			s.connRecv = chunked.Recv{Buf: make([]byte, connBlockSize)}
			s.connSend = chunked.Send{Buf: s.connRecv.Buf}
			s.state = fsoe.StateConnection
		}
		s.connRecv.Accept(data)
		if s.connRecv.Done() {
			gotConnID := uint16(s.connRecv.Buf[0]) | uint16(s.connRecv.Buf[1])<<8
			gotAddr := uint16(s.connRecv.Buf[2]) | uint16(s.connRecv.Buf[3])<<8
			if gotAddr != s.cfg.SlaveAddress {
				return true, fsoe.ResetInvalidAddress
			}
			if gotConnID != s.connID {
				return true, fsoe.ResetInvalidConnID
			}
		}

	case fsoe.CommandParameter:
		if s.state != fsoe.StateParameter && (s.state != fsoe.StateConnection || !s.connRecv.Done()) {
			return true, fsoe.ResetInvalidCommand
		}
		if len(s.paramRecv.Buf) == 0 {
			s.paramRecv = chunked.Recv{Buf: make([]byte, paramHeaderSize)}
			s.state = fsoe.StateParameter
		}
		s.paramRecv.Accept(data)
		if s.paramRecv.Done() && len(s.paramRecv.Buf) == paramHeaderSize {
			appParamSize := int(s.paramRecv.Buf[3]) | int(s.paramRecv.Buf[4])<<8
			full := paramHeaderSize + appParamSize
			if full > paramHeaderSize {
				grown := make([]byte, full)
				copy(grown, s.paramRecv.Buf)
				s.paramRecv.Buf = grown
			}
		}
		s.paramSend.Buf = s.paramRecv.Buf
		// Parameters are only verified once the master orders the move to
		// Data (the next CommandProcessData/CommandFailSafeData frame);
		// until then the slave keeps echoing the Parameter-phase reply so
		// the master's own echo check can complete.

	case fsoe.CommandProcessData, fsoe.CommandFailSafeData:
		if s.state == fsoe.StateParameter {
			if !s.paramRecv.Done() {
				return true, fsoe.ResetInvalidCommand
			}
			timeoutMs, appParams, reason, paramsOk := fsoe.DecodeSafePara(s.paramRecv.Buf)
			if !paramsOk {
				return true, reason
			}
			if verifyReason := s.hooks.VerifyParameters(timeoutMs, appParams); verifyReason != 0 {
				return true, verifyReason
			}
			s.watchdogTimeoutMs = timeoutMs
			s.appParams = appParams
			s.wd.Start(nowMs, uint32(timeoutMs))
			s.state = fsoe.StateData
		}
		if s.state != fsoe.StateData {
			return true, fsoe.ResetInvalidCommand
		}
		if cmd == fsoe.CommandProcessData {
			copy(inputs, data)
			status.IsProcessDataReceived = true
		} else {
			for i := range inputs {
				inputs[i] = 0
			}
			status.IsProcessDataReceived = false
		}

	default:
		return true, fsoe.ResetUnknownCommand
	}
	return false, 0
}

// sendReply composes and transmits the frame appropriate to the current
// phase, kicking the watchdog.
func (s *Slave) sendReply(outputs []byte, nowMs uint64) {
	var cmd fsoe.Command
	var payload []byte

	switch s.state {
	case fsoe.StateSession:
		cmd = fsoe.CommandSession
		payload = s.sessionSend.NextChunk(s.cfg.OutputsSize)
	case fsoe.StateConnection:
		cmd = fsoe.CommandConnection
		s.connSend.Buf = s.connRecv.Buf
		payload = s.connSend.NextChunk(s.cfg.OutputsSize)
	case fsoe.StateParameter:
		cmd = fsoe.CommandParameter
		s.paramSend.Buf = s.paramRecv.Buf
		payload = s.paramSend.NextChunk(s.cfg.OutputsSize)
	case fsoe.StateData:
		if s.processDataSendingEnabled {
			cmd = fsoe.CommandProcessData
			payload = outputs
		} else {
			cmd = fsoe.CommandFailSafeData
			payload = make([]byte, s.cfg.OutputsSize)
		}
	default:
		return
	}

	s.send(cmd, payload, nowMs)
}

func (s *Slave) send(cmd fsoe.Command, payload []byte, nowMs uint64) {
	encoded, newCrc := frame.Encode(cmd, payload, s.sendCtx())
	s.txCrc = newCrc
	s.slaveSeqNo++
	if err := s.bc.Send(encoded); err != nil {
		s.logger.Debug("send failed", "error", err)
		return
	}
	s.wd.Kick(nowMs)
}

// triggerReset zeros process data, clears the sending-enable flag, and
// arranges for a Reset(reason) frame to be sent as this connection's next
// outgoing frame.
func (s *Slave) triggerReset(reason fsoe.ResetReason, event fsoe.ResetEvent, inputs []byte) {
	s.resetState()
	s.pendingReason = reason
	s.pendingEvent = event
	s.commFaultReason = reason
	for i := range inputs {
		inputs[i] = 0
	}
	s.logger.Warn("connection reset", "reason", reason, "event", event)
}

// resetState returns the connection to Reset, ready to relearn the
// master's connection ID on the next Session frame.
func (s *Slave) resetState() {
	s.state = fsoe.StateReset
	s.announcedReset = false
	s.processDataSendingEnabled = false
	s.connIDKnown = false
	s.masterSeqNo = initialSeqNo
	s.slaveSeqNo = initialSeqNo
	s.txCrc = 0
	s.rxCrc = 0
	s.masterSessionID = 0
	s.slaveSessionID = 0
	s.sessionSend = chunked.Send{}
	s.sessionRecv = chunked.Recv{}
	s.connRecv = chunked.Recv{}
	s.connSend = chunked.Send{}
	s.paramRecv = chunked.Recv{}
	s.paramSend = chunked.Send{}
	s.wd.Stop()
}

// driveReset sends the pending Reset announcement the one cycle a locally
// requested or detected fault puts this side in Reset state; in all other
// Reset cycles it is a no-op, since unlike Master, Slave never leaves
// Reset on its own — only a Session frame from the master advances it.
func (s *Slave) driveReset(status *fsoe.SyncStatus, nowMs uint64) {
	if s.pendingEvent == fsoe.ResetEventNone || s.announcedReset {
		return
	}
	s.announcedReset = true
	status.ResetEvent = s.pendingEvent
	status.ResetReason = s.pendingReason

	payload := make([]byte, s.cfg.OutputsSize)
	payload[0] = byte(s.pendingReason)
	s.send(fsoe.CommandReset, payload, nowMs)
	s.pendingEvent = fsoe.ResetEventNone
}

func (s *Slave) sendCtx() frame.CRCContext {
	return frame.CRCContext{LastCrc: s.txCrc, SeqNo: s.slaveSeqNo, ConnID: s.connID, SessionID: s.masterSessionID}
}

func (s *Slave) recvCtx() frame.CRCContext {
	return frame.CRCContext{LastCrc: s.rxCrc, SeqNo: s.masterSeqNo, ConnID: s.connID, SessionID: s.slaveSessionID}
}

func decodeErrReason(err error) fsoe.ResetReason {
	switch err {
	case frame.ErrInvalidCRC:
		return fsoe.ResetInvalidCRC
	case frame.ErrInvalidConnID:
		return fsoe.ResetInvalidConnID
	case frame.ErrUnknownCommand:
		return fsoe.ResetUnknownCommand
	default:
		return fsoe.ResetInvalidData
	}
}
