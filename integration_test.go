package fsoe_test

import (
	"testing"

	fsoe "github.com/samsamfire/gofsoe"
	"github.com/samsamfire/gofsoe/pkg/master"
	"github.com/samsamfire/gofsoe/pkg/slave"
	"github.com/stretchr/testify/assert"
)

// queue delivers at most one frame per Recv call, in FIFO order, the shape
// a loopback black channel needs: each Send appends, each Recv pops.
type queue struct {
	frames [][]byte
}

func (q *queue) push(f []byte) error {
	q.frames = append(q.frames, append([]byte{}, f...))
	return nil
}

func (q *queue) pop(buf []byte) (int, error) {
	if len(q.frames) == 0 {
		return 0, nil
	}
	next := q.frames[0]
	q.frames = q.frames[1:]
	return copy(buf, next), nil
}

// runCycles drives m and s alternately (master first, so the slave always has
// the master's latest frame in hand before replying) for n cycles, at 1ms
// steps starting at startMs.
func runCycles(t *testing.T, m *master.Master, s *slave.Slave, n int, startMs uint64,
	masterOutputs, masterInputs, slaveOutputs, slaveInputs []byte) (mStatus, sStatus fsoe.SyncStatus) {
	t.Helper()
	for i := 0; i < n; i++ {
		now := startMs + uint64(i)
		var err error
		mStatus, err = m.SyncWithPeer(now, masterOutputs, masterInputs)
		assert.NoError(t, err)
		sStatus, err = s.SyncWithPeer(now, slaveOutputs, slaveInputs)
		assert.NoError(t, err)
	}
	return mStatus, sStatus
}

func TestMasterSlaveColdStartupReachesData(t *testing.T) {
	masterToSlave := &queue{}
	slaveToMaster := &queue{}

	cfg := struct {
		slaveAddress uint16
		connID       uint16
		watchdogMs   uint16
		inputs       int
		outputs      int
	}{slaveAddress: 0x0042, connID: 0x0008, watchdogMs: 100, inputs: 2, outputs: 2}

	m, err := master.New(fsoe.MasterConfig{
		SlaveAddress:      cfg.slaveAddress,
		ConnectionID:      cfg.connID,
		WatchdogTimeoutMs: cfg.watchdogMs,
		InputsSize:        cfg.inputs,
		OutputsSize:       cfg.outputs,
	}, fsoe.Hooks{
		Send:              masterToSlave.push,
		Recv:              slaveToMaster.pop,
		GenerateSessionID: func() uint16 { return 0xAAAA },
	}, nil)
	assert.NoError(t, err)

	s, err := slave.New(fsoe.SlaveConfig{
		SlaveAddress: cfg.slaveAddress,
		InputsSize:   cfg.inputs,
		OutputsSize:  cfg.outputs,
	}, fsoe.Hooks{
		Send:              slaveToMaster.push,
		Recv:              masterToSlave.pop,
		GenerateSessionID: func() uint16 { return 0xBBBB },
		VerifyParameters:  func(uint16, []byte) fsoe.ResetReason { return 0 },
	}, nil)
	assert.NoError(t, err)

	m.SetProcessDataSendingEnabled()
	s.SetProcessDataSendingEnabled()

	masterOutputs := []byte{0x11, 0x22}
	masterInputs := make([]byte, cfg.inputs)
	slaveOutputs := []byte{0x33, 0x44}
	slaveInputs := make([]byte, cfg.outputs)

	mStatus, sStatus := runCycles(t, m, s, 12, 0, masterOutputs, masterInputs, slaveOutputs, slaveInputs)

	assert.Equal(t, fsoe.StateData, mStatus.State)
	assert.Equal(t, fsoe.StateData, sStatus.State)
	assert.Equal(t, m.SlaveSessionID(), s.SlaveSessionID())
	assert.Equal(t, s.MasterSessionID(), m.MasterSessionID())

	// Every reset event clears the sending-enable flag (the slave's included,
	// when it receives the master's startup Reset), so the host enables
	// sending again once Data is reached. Two more cycles let process data
	// cross in both directions.
	m.SetProcessDataSendingEnabled()
	s.SetProcessDataSendingEnabled()
	mStatus, sStatus = runCycles(t, m, s, 2, 12, masterOutputs, masterInputs, slaveOutputs, slaveInputs)
	assert.Equal(t, fsoe.StateData, mStatus.State)
	assert.Equal(t, fsoe.StateData, sStatus.State)
	assert.Equal(t, slaveOutputs, masterInputs)
	assert.Equal(t, masterOutputs, slaveInputs)
}

// TestMasterSlaveAsymmetricSizesReachesData drives a full cold startup with
// InputsSize != OutputsSize on both sides (mirror images of each other, as
// ETG.5100 requires): each side's receive buffer and decode must be sized
// by its own InputsSize, the peer's transmit width, independently of its
// own OutputsSize.
func TestMasterSlaveAsymmetricSizesReachesData(t *testing.T) {
	masterToSlave := &queue{}
	slaveToMaster := &queue{}

	const slaveAddress = uint16(0x0042)
	const connID = uint16(0x0008)
	const masterInputs = 4    // == slave's OutputsSize
	const masterOutputsSz = 2 // == slave's InputsSize

	m, err := master.New(fsoe.MasterConfig{
		SlaveAddress:      slaveAddress,
		ConnectionID:      connID,
		WatchdogTimeoutMs: 100,
		InputsSize:        masterInputs,
		OutputsSize:       masterOutputsSz,
	}, fsoe.Hooks{
		Send:              masterToSlave.push,
		Recv:              slaveToMaster.pop,
		GenerateSessionID: func() uint16 { return 0xAAAA },
	}, nil)
	assert.NoError(t, err)

	s, err := slave.New(fsoe.SlaveConfig{
		SlaveAddress: slaveAddress,
		InputsSize:   masterOutputsSz,
		OutputsSize:  masterInputs,
	}, fsoe.Hooks{
		Send:              slaveToMaster.push,
		Recv:              masterToSlave.pop,
		GenerateSessionID: func() uint16 { return 0xBBBB },
		VerifyParameters:  func(uint16, []byte) fsoe.ResetReason { return 0 },
	}, nil)
	assert.NoError(t, err)

	m.SetProcessDataSendingEnabled()
	s.SetProcessDataSendingEnabled()

	masterOutputs := []byte{0x11, 0x22}
	masterInputsBuf := make([]byte, masterInputs)
	slaveOutputs := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	slaveInputsBuf := make([]byte, masterOutputsSz)

	mStatus, sStatus := runCycles(t, m, s, 12, 0, masterOutputs, masterInputsBuf, slaveOutputs, slaveInputsBuf)
	assert.Equal(t, fsoe.StateData, mStatus.State)
	assert.Equal(t, fsoe.StateData, sStatus.State)

	m.SetProcessDataSendingEnabled()
	s.SetProcessDataSendingEnabled()
	mStatus, sStatus = runCycles(t, m, s, 2, 12, masterOutputs, masterInputsBuf, slaveOutputs, slaveInputsBuf)
	assert.Equal(t, fsoe.StateData, mStatus.State)
	assert.Equal(t, fsoe.StateData, sStatus.State)
	assert.Equal(t, slaveOutputs, masterInputsBuf)
	assert.Equal(t, masterOutputs, slaveInputsBuf)
}

func TestMasterSlaveSlaveAddressMismatchRejected(t *testing.T) {
	masterToSlave := &queue{}
	slaveToMaster := &queue{}

	m, err := master.New(fsoe.MasterConfig{
		SlaveAddress:      0x0042,
		ConnectionID:      0x0008,
		WatchdogTimeoutMs: 100,
		InputsSize:        2,
		OutputsSize:       2,
	}, fsoe.Hooks{
		Send:              masterToSlave.push,
		Recv:              slaveToMaster.pop,
		GenerateSessionID: func() uint16 { return 0xAAAA },
	}, nil)
	assert.NoError(t, err)

	s, err := slave.New(fsoe.SlaveConfig{
		SlaveAddress: 0x0099, // does not match the master's configured address
		InputsSize:   2,
		OutputsSize:  2,
	}, fsoe.Hooks{
		Send:              slaveToMaster.push,
		Recv:              masterToSlave.pop,
		GenerateSessionID: func() uint16 { return 0xBBBB },
		VerifyParameters:  func(uint16, []byte) fsoe.ResetReason { return 0 },
	}, nil)
	assert.NoError(t, err)

	outputs := make([]byte, 2)
	inputs := make([]byte, 2)
	// The second Connection frame, which completes the address block the
	// slave checks, arrives on the fourth cycle; later cycles restart the
	// handshake.
	_, sStatus := runCycles(t, m, s, 4, 0, outputs, inputs, outputs, inputs)

	assert.Equal(t, fsoe.StateReset, sStatus.State)
	assert.Equal(t, fsoe.ResetInvalidAddress, sStatus.ResetReason)
}
