// Package master implements the FSoE master connection state machine: the
// initiator that drives a link through Reset, Session, Connection,
// Parameter and into cyclic Data exchange, owning the connection id and
// sequence numbers. Grounded on the teacher's NMT state-machine shape
// (pkg/nmt) with its concurrency stripped out, since the core is
// single-threaded and host-driven by construction.
package master

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

// Master drives one FSoE connection as the initiating side. A zero-value
// Master is not usable; construct one with New.
type Master struct {
	cfg    fsoe.MasterConfig
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

	masterSessionID uint16
	slaveSessionID  uint16
	masterSeqNo     uint16
	slaveSeqNo      uint16
	txCrc           uint16
	rxCrc           uint16

	sessionSend chunked.Send
	sessionRecv chunked.Recv
	connSend    chunked.Send
	connRecv    chunked.Recv
	paramSend   chunked.Send
	paramRecv   chunked.Recv

	processDataSendingEnabled bool
}

// New validates cfg and hooks and returns a Master ready to Sync, starting
// in StateReset. Send, Recv, and GenerateSessionID must be non-nil.
func New(cfg fsoe.MasterConfig, hooks fsoe.Hooks, logger *slog.Logger) (*Master, error) {
	if hooks.Send == nil || hooks.Recv == nil || hooks.GenerateSessionID == nil {
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

	m := &Master{
		cfg:           cfg,
		hooks:         hooks,
		logger:        logger.With("service", "[FSOE-MASTER]"),
		bc:            blackchannel.NewManager(hookChannel{hooks}, frame.FrameSize(cfg.InputsSize)),
		initialized:   true,
		state:         fsoe.StateReset,
		pendingReason: fsoe.ResetLocalReset,
		pendingEvent:  fsoe.ResetEventByMaster,
	}
	return m, nil
}

// State returns the connection's current phase.
func (m *Master) State() fsoe.State {
	if m == nil {
		return fsoe.StateReset
	}
	return m.state
}

// MasterSessionID returns this side's session id, valid from Session state
// onward.
func (m *Master) MasterSessionID() uint16 { return m.masterSessionID }

// SlaveSessionID returns the peer's session id, valid once the Session
// phase has completed.
func (m *Master) SlaveSessionID() uint16 { return m.slaveSessionID }

// CommFaultReason returns the most recently detected fault's reason code,
// readable even before the SyncWithPeer call that reports it returns.
func (m *Master) CommFaultReason() fsoe.ResetReason { return m.commFaultReason }

// ProcessDataSendingEnabled reports whether the host has enabled process
// data transmission in Data state.
func (m *Master) ProcessDataSendingEnabled() bool { return m.processDataSendingEnabled }

// SetProcessDataSendingEnabled allows ProcessData frames to be sent once
// Data state is reached.
func (m *Master) SetProcessDataSendingEnabled() { m.processDataSendingEnabled = true }

// ClearProcessDataSendingEnabled forces FailSafeData frames even in Data
// state.
func (m *Master) ClearProcessDataSendingEnabled() { m.processDataSendingEnabled = false }

// SetResetRequested requests a local reset on the next SyncWithPeer call.
func (m *Master) SetResetRequested() {
	if !m.initialized {
		m.hooks.ReportUserError(fsoe.ErrorUninitializedInstance)
		return
	}
	m.resetRequested = true
}

// TimeUntilTimeoutMs returns the milliseconds remaining before the
// watchdog expires, or math.MaxUint32 if it is not running.
func (m *Master) TimeUntilTimeoutMs(nowMs uint64) uint32 {
	return m.wd.RemainingMs(nowMs)
}

// UpdateSRACRC folds data into crc using the SRA-CRC (ETG.5120 §6.3).
func (m *Master) UpdateSRACRC(c uint32, data []byte) uint32 {
	return crc.SRAUpdate(c, data)
}

// ResetReasonDescription is a static lookup from a reset-reason code to a
// human-readable description.
func (m *Master) ResetReasonDescription(reason fsoe.ResetReason) string {
	return reason.String()
}

type hookChannel struct {
	hooks fsoe.Hooks
}

func (h hookChannel) Send(frame []byte) error         { return h.hooks.Send(frame) }
func (h hookChannel) Recv(buffer []byte) (int, error) { return h.hooks.Recv(buffer) }

// SyncWithPeer drives one protocol cycle: receive and validate a frame
// from the slave (if any), advance the state machine, and send the next
// frame. nowMs is the host's monotonic tick in milliseconds, used to drive
// the watchdog.
func (m *Master) SyncWithPeer(nowMs uint64, outputs, inputs []byte) (fsoe.SyncStatus, error) {
	if m == nil {
		return fsoe.SyncStatus{}, fsoe.ErrUninitialized
	}
	if !m.initialized {
		m.hooks.ReportUserError(fsoe.ErrorUninitializedInstance)
		return fsoe.SyncStatus{}, fsoe.ErrUninitialized
	}
	if len(outputs) != m.cfg.OutputsSize || len(inputs) != m.cfg.InputsSize {
		m.hooks.ReportUserError(fsoe.ErrorNullArgument)
		return fsoe.SyncStatus{State: m.state}, fsoe.ErrNullArgument
	}

	status := fsoe.SyncStatus{State: m.state}

	faulted := false
	var reason fsoe.ResetReason
	var event fsoe.ResetEvent

	switch {
	case m.resetRequested:
		m.resetRequested = false
		faulted, reason, event = true, fsoe.ResetLocalReset, fsoe.ResetEventByMaster
	case m.state == fsoe.StateReset:
		// handled uniformly below via the pending reset fields.
	default:
		faulted, reason, event = m.processCycle(nowMs, outputs, inputs, &status)
	}

	if faulted {
		m.triggerReset(reason, event, inputs)
	}

	if m.state == fsoe.StateReset {
		m.driveReset(&status, nowMs)
	}

	status.State = m.state
	return status, nil
}

// processCycle handles one cycle while not in Reset state: receive and
// validate a frame, advance per-state logic, send the next frame. It
// returns whether a fault was detected this cycle.
func (m *Master) processCycle(nowMs uint64, outputs, inputs []byte, status *fsoe.SyncStatus) (bool, fsoe.ResetReason, fsoe.ResetEvent) {
	raw, ok, err := m.bc.Recv()
	if err != nil {
		return false, 0, fsoe.ResetEventNone
	}

	if !ok {
		if m.wd.IsExpired(nowMs) {
			return true, fsoe.ResetWatchdogExpired, fsoe.ResetEventByMaster
		}
	} else {
		cmd, data, newCrc, derr := frame.Decode(raw, m.cfg.InputsSize, m.cfg.ConnectionID, m.recvCtx())
		if derr != nil {
			return true, decodeErrReason(derr), fsoe.ResetEventByMaster
		}
		m.rxCrc = newCrc
		m.slaveSeqNo++
		m.wd.Kick(nowMs)

		if cmd == fsoe.CommandReset {
			payloadReason := fsoe.ResetReason(0)
			if len(data) > 0 {
				payloadReason = fsoe.ResetReason(data[0])
			}
			return true, payloadReason, fsoe.ResetEventBySlave
		}

		fault, reason := m.advance(cmd, data, inputs, status)
		if fault {
			return true, reason, fsoe.ResetEventByMaster
		}
	}

	m.sendNext(outputs)
	return false, 0, fsoe.ResetEventNone
}

// advance processes a successfully decoded, non-Reset frame per the
// current phase, mutating state forward when its phase's requirements are
// satisfied.
func (m *Master) advance(cmd fsoe.Command, data []byte, inputs []byte, status *fsoe.SyncStatus) (bool, fsoe.ResetReason) {
	switch m.state {
	case fsoe.StateSession:
		if cmd != fsoe.CommandSession {
			return true, fsoe.ResetInvalidCommand
		}
		m.sessionRecv.Accept(data)
		if m.sessionRecv.Done() && m.sessionSend.Done() {
			m.slaveSessionID = uint16(m.sessionRecv.Buf[0]) | uint16(m.sessionRecv.Buf[1])<<8
			m.state = fsoe.StateConnection
			connBytes := make([]byte, 4)
			connBytes[0] = byte(m.cfg.ConnectionID)
			connBytes[1] = byte(m.cfg.ConnectionID >> 8)
			connBytes[2] = byte(m.cfg.SlaveAddress)
			connBytes[3] = byte(m.cfg.SlaveAddress >> 8)
			m.connSend = chunked.Send{Buf: connBytes}
			m.connRecv = chunked.Recv{Buf: make([]byte, 4)}
		}
	case fsoe.StateConnection:
		if cmd != fsoe.CommandConnection {
			return true, fsoe.ResetInvalidCommand
		}
		m.connRecv.Accept(data)
		if m.connRecv.Done() && m.connSend.Done() {
			for i, want := range m.connSend.Buf {
				if m.connRecv.Buf[i] != want {
					return true, fsoe.ResetInvalidData
				}
			}
			m.state = fsoe.StateParameter
			paramBytes := fsoe.EncodeSafePara(m.cfg.WatchdogTimeoutMs, m.cfg.ApplicationParameters)
			m.paramSend = chunked.Send{Buf: paramBytes}
			m.paramRecv = chunked.Recv{Buf: make([]byte, len(paramBytes))}
		}
	case fsoe.StateParameter:
		if cmd != fsoe.CommandParameter {
			return true, fsoe.ResetInvalidCommand
		}
		m.paramRecv.Accept(data)
		if m.paramRecv.Done() && m.paramSend.Done() {
			for i, want := range m.paramSend.Buf {
				if m.paramRecv.Buf[i] != want {
					return true, fsoe.ResetInvalidData
				}
			}
			m.state = fsoe.StateData
		}
	case fsoe.StateData:
		if cmd != fsoe.CommandProcessData && cmd != fsoe.CommandFailSafeData {
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
	}
	return false, 0
}

// sendNext composes and transmits the frame appropriate to the current
// phase.
func (m *Master) sendNext(outputs []byte) {
	var cmd fsoe.Command
	var payload []byte

	switch m.state {
	case fsoe.StateSession:
		cmd = fsoe.CommandSession
		payload = m.sessionSend.NextChunk(m.cfg.OutputsSize)
	case fsoe.StateConnection:
		cmd = fsoe.CommandConnection
		payload = m.connSend.NextChunk(m.cfg.OutputsSize)
	case fsoe.StateParameter:
		cmd = fsoe.CommandParameter
		payload = m.paramSend.NextChunk(m.cfg.OutputsSize)
	case fsoe.StateData:
		if m.processDataSendingEnabled {
			cmd = fsoe.CommandProcessData
			payload = outputs
		} else {
			cmd = fsoe.CommandFailSafeData
			payload = make([]byte, m.cfg.OutputsSize)
		}
	}

	m.send(cmd, payload)
}

func (m *Master) send(cmd fsoe.Command, payload []byte) {
	encoded, newCrc := frame.Encode(cmd, payload, m.sendCtx())
	m.txCrc = newCrc
	m.masterSeqNo++
	if err := m.bc.Send(encoded); err != nil {
		m.logger.Debug("send failed", "error", err)
	}
}

// triggerReset zeros process data, clears the sending-enable flag, and
// arranges for a Reset(reason) frame to be sent as this connection's next
// outgoing frame.
func (m *Master) triggerReset(reason fsoe.ResetReason, event fsoe.ResetEvent, inputs []byte) {
	m.state = fsoe.StateReset
	m.announcedReset = false
	m.pendingReason = reason
	m.pendingEvent = event
	m.commFaultReason = reason
	m.processDataSendingEnabled = false
	for i := range inputs {
		inputs[i] = 0
	}
	m.logger.Warn("connection reset", "reason", reason, "event", event)
}

// driveReset sends the pending Reset announcement on the first cycle in
// Reset state, then advances into Session on the next.
func (m *Master) driveReset(status *fsoe.SyncStatus, nowMs uint64) {
	if !m.announcedReset {
		m.announcedReset = true
		status.ResetEvent = m.pendingEvent
		status.ResetReason = m.pendingReason

		payload := make([]byte, m.cfg.OutputsSize)
		payload[0] = byte(m.pendingReason)
		m.send(fsoe.CommandReset, payload)
		return
	}

	m.masterSessionID = m.hooks.GenerateSessionID()
	m.masterSeqNo = initialSeqNo
	m.slaveSeqNo = initialSeqNo
	m.txCrc = 0
	m.rxCrc = 0
	m.slaveSessionID = 0

	sessionBytes := []byte{byte(m.masterSessionID), byte(m.masterSessionID >> 8)}
	m.sessionSend = chunked.Send{Buf: sessionBytes}
	m.sessionRecv = chunked.Recv{Buf: make([]byte, 2)}

	m.state = fsoe.StateSession
	status.ResetEvent = fsoe.ResetEventNone
	m.wd.Start(nowMs, uint32(m.cfg.WatchdogTimeoutMs))
	m.sendNext(make([]byte, m.cfg.OutputsSize))
}

func (m *Master) sendCtx() frame.CRCContext {
	return frame.CRCContext{LastCrc: m.txCrc, SeqNo: m.masterSeqNo, ConnID: m.cfg.ConnectionID, SessionID: m.slaveSessionID}
}

func (m *Master) recvCtx() frame.CRCContext {
	return frame.CRCContext{LastCrc: m.rxCrc, SeqNo: m.slaveSeqNo, ConnID: m.cfg.ConnectionID, SessionID: m.masterSessionID}
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
